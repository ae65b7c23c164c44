package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LocalConfig configures the local credential provider.
type LocalConfig struct {
	Accounts AccountRepository
	JWT      *JWTService

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// LocalProvider authenticates against a local bcrypt credential table and
// issues its own signed tokens.
type LocalProvider struct {
	accounts AccountRepository
	jwt      *JWTService
	cost     int
}

// LocalProviderName is the name used in logs.
const LocalProviderName = "local-credentials"

// NewLocalProvider creates a local provider.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{accounts: cfg.Accounts, jwt: cfg.JWT, cost: cost}
}

// Name returns the provider name.
func (p *LocalProvider) Name() string {
	return LocalProviderName
}

// Authenticate validates a locally issued token and checks the account still exists.
func (p *LocalProvider) Authenticate(ctx context.Context, token string) (*ProviderUser, error) {
	claims, err := p.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	account, err := p.accounts.FindByID(ctx, claims.Subject)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return &ProviderUser{ID: account.ID, Email: account.Email}, nil
}

// SignIn checks the password and issues a token.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	account, err := p.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, _, err := p.jwt.GenerateAccessToken(account)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		AccessToken: token,
		User:        ProviderUser{ID: account.ID, Email: account.Email},
	}, nil
}

// SignOut is a no-op; local tokens are only trusted through their session.
func (p *LocalProvider) SignOut(context.Context, string) error {
	return nil
}

// Register creates a local account.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (*ProviderUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	account := &Account{
		ID:           generateUserID(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return &ProviderUser{ID: account.ID, Email: account.Email}, nil
}

func generateUserID() string {
	return "usr_" + uuid.New().String()[:22]
}

var (
	_ Provider  = (*LocalProvider)(nil)
	_ Registrar = (*LocalProvider)(nil)
)
