package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aidtracker/aidtracker/internal/provider/resilience"
)

// ExternalConfig configures a GoTrue compatible identity service.
type ExternalConfig struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co.
	BaseURL string

	// APIKey is sent as the apikey header on every call.
	APIKey string

	// Timeout bounds each call. Default: 10s.
	Timeout time.Duration

	// Registry receives call outcomes for the ops status endpoint.
	Registry *resilience.Registry

	// HTTPClient overrides the resilient client, mostly for tests.
	HTTPClient resilience.HTTPDoer
}

// ExternalProvider delegates identity to a hosted auth service.
type ExternalProvider struct {
	baseURL string
	apiKey  string
	client  resilience.HTTPDoer
}

// ExternalProviderName is the name used in logs and the provider registry.
const ExternalProviderName = "identity-provider"

// NewExternalProvider creates an external provider. Calls are never retried:
// a failed verification surfaces to the caller as unauthenticated.
func NewExternalProvider(cfg ExternalConfig) *ExternalProvider {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = resilience.NewClient(resilience.ClientConfig{
			Name:     ExternalProviderName,
			Timeout:  timeout,
			Retries:  0,
			Registry: cfg.Registry,
		})
	}

	return &ExternalProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

// Name returns the provider name.
func (p *ExternalProvider) Name() string {
	return ExternalProviderName
}

// Authenticate asks the provider who the token belongs to.
func (p *ExternalProvider) Authenticate(ctx context.Context, token string) (*ProviderUser, error) {
	req, err := p.newRequest(ctx, http.MethodGet, "/auth/v1/user", token, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var user ProviderUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding identity provider user: %w", err)
	}
	if user.Email == "" {
		return nil, ErrUnauthenticated
	}
	return &user, nil
}

type passwordGrantResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         ProviderUser `json:"user"`
}

// SignIn performs a password grant.
func (p *ExternalProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var grant passwordGrantResponse
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("decoding password grant: %w", err)
	}
	if grant.AccessToken == "" {
		return nil, ErrInvalidCredentials
	}
	if grant.User.Email == "" {
		grant.User.Email = email
	}

	return &Credentials{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		User:         grant.User,
	}, nil
}

// SignOut revokes the token with the provider.
func (p *ExternalProvider) SignOut(ctx context.Context, token string) error {
	req, err := p.newRequest(ctx, http.MethodPost, "/auth/v1/logout", token, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *ExternalProvider) newRequest(ctx context.Context, method, path, token string, body []byte) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating identity provider request: %w", err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

var _ Provider = (*ExternalProvider)(nil)
