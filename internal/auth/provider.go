package auth

import "context"

// Provider is an identity strategy. The service picks one at startup from
// configuration; it is never inferred from the shape of a token.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Authenticate resolves a token to the user it was issued to.
	Authenticate(ctx context.Context, token string) (*ProviderUser, error)

	// SignIn exchanges an email and password for credentials.
	SignIn(ctx context.Context, email, password string) (*Credentials, error)

	// SignOut invalidates the token with the provider, if it supports that.
	SignOut(ctx context.Context, token string) error
}

// Registrar is implemented by providers that can create accounts.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*ProviderUser, error)
}
