// Package auth verifies dashboard identities and manages their sessions.
package auth

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/aidtracker/aidtracker/internal/dispatch"
)

// Predefined auth errors.
var (
	// ErrUnauthenticated is returned when a token cannot be verified.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned when a sign-in is rejected.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAdminOnly is returned when a non-admin tries to open a dashboard session.
	ErrAdminOnly = errors.New("dashboard access is restricted to station admins")

	// ErrSessionNotFound is returned by session stores for absent or expired tokens.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAccountExists is returned when registering an email twice.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound is returned when no local account matches.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRegistrationUnsupported is returned when the provider cannot create accounts.
	ErrRegistrationUnsupported = errors.New("registration is not supported by the identity provider")
)

// DefaultSessionTTL is how long a verified token is trusted without
// asking the identity provider again.
const DefaultSessionTTL = time.Hour

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// Role is the authorization role of an identity.
type Role string

// Roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity is a verified caller.
type Identity struct {
	UserID  string           `json:"id"`
	Email   string           `json:"email"`
	Station dispatch.Station `json:"station"`
	Role    Role             `json:"role"`
}

// IsAdmin reports whether the identity is a station admin.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the identity may act on the given station.
func (i Identity) CanAccess(s dispatch.Station) bool {
	return i.Role == RoleAdmin && i.Station == s
}

// Session binds a token to an identity until ExpiresAt.
type Session struct {
	Token     string    `json:"-"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ProviderUser is the subject an identity provider vouches for.
type ProviderUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Credentials are the tokens issued by a successful sign-in.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         ProviderUser
}

// LoginResult is returned to the dashboard after a successful login.
type LoginResult struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         Identity  `json:"user"`
	RedirectURL  string    `json:"redirectUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the login request.
func (r *LoginRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required", Code: "REQUIRED"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required", Code: "REQUIRED"})
	}
	return errs
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the registration request.
func (r *RegisterRequest) Validate() []FieldError {
	var errs []FieldError
	email := strings.TrimSpace(r.Email)
	switch {
	case email == "":
		errs = append(errs, FieldError{Field: "email", Message: "email is required", Code: "REQUIRED"})
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			errs = append(errs, FieldError{Field: "email", Message: "email is not a valid address", Code: "INVALID_FORMAT"})
		}
	}
	if len(r.Password) < MinPasswordLength {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 6 characters", Code: "TOO_SHORT"})
	}
	return errs
}

// Account is a locally stored credential.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
