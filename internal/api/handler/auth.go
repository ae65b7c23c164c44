package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/api/response"
	"github.com/aidtracker/aidtracker/internal/auth"
)

const tokenCookie = "token"

// AuthHandler handles dashboard session endpoints.
type AuthHandler struct {
	authService  *auth.Service
	secureCookie bool
	logger       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the session
// cookie Secure and should be set whenever the API is served over HTTPS.
func NewAuthHandler(authService *auth.Service, secureCookie bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
		logger:       logger.With().Str("handler", "auth").Logger(),
	}
}

// Login handles POST /api/login - station admin sign-in.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", authFieldErrors(errs))
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Unauthorized(w, r, "invalid email or password")
		case errors.Is(err, auth.ErrAdminOnly):
			response.Forbidden(w, r, "access denied: station admins only")
		default:
			h.logger.Error().
				Err(err).
				Str("request_id", middleware.GetRequestID(r.Context())).
				Msg("login failed")
			response.InternalError(w, r, "login failed")
		}
		return
	}

	h.setTokenCookie(w, result.Token, result.ExpiresAt)
	response.JSON(w, r, http.StatusOK, result)
}

// VerifyToken handles POST /api/verify-token. It never fails; an unusable
// token is reported as unauthenticated.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)

	identity, ok := h.authService.CheckToken(r.Context(), token)
	if !ok {
		response.JSON(w, r, http.StatusOK, models.VerifyTokenResponse{Authenticated: false})
		return
	}

	resp := models.VerifyTokenResponse{Authenticated: true, User: identity}
	if identity.IsAdmin() {
		resp.RedirectURL = "/" + identity.Station.String()
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Logout handles POST /api/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.ExtractToken(r)); err != nil {
		h.logger.Warn().Err(err).Msg("logout failed")
	}

	h.setTokenCookie(w, "", time.Unix(0, 0))
	response.JSON(w, r, http.StatusOK, models.MessageResponse{Success: true, Message: "Logged out successfully"})
}

// Register handles POST /api/register - local account creation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", authFieldErrors(errs))
		return
	}

	identity, err := h.authService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRegistrationUnsupported):
			response.NotFound(w, r, "registration is not available")
		case errors.Is(err, auth.ErrAccountExists):
			response.Conflict(w, r, "an account with this email already exists")
		default:
			h.logger.Error().
				Err(err).
				Str("request_id", middleware.GetRequestID(r.Context())).
				Msg("registration failed")
			response.InternalError(w, r, "registration failed")
		}
		return
	}

	response.Created(w, r, "", models.RegisterResponse{Success: true, User: *identity})
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}

func authFieldErrors(errs []auth.FieldError) []models.FieldError {
	fieldErrors := make([]models.FieldError, len(errs))
	for i, e := range errs {
		fieldErrors[i] = models.FieldError{
			Field:   e.Field,
			Message: e.Message,
			Code:    e.Code,
		}
	}
	return fieldErrors
}
