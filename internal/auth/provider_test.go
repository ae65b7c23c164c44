package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/provider/resilience"
)

func newGoTrueServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user":
			switch r.Header.Get("Authorization") {
			case "Bearer good-token":
				_ = json.NewEncoder(w).Encode(map[string]string{"id": "sb-1", "email": "policeadmin@gmail.com"})
			case "Bearer broken":
				w.WriteHeader(http.StatusBadGateway)
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}

		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
			assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "correct" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "good-token",
				"refresh_token": "refresh-1",
				"user":          map[string]string{"id": "sb-1", "email": body["email"]},
			})

		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestExternalProvider(t *testing.T) {
	server := newGoTrueServer(t)
	defer server.Close()

	registry := resilience.NewRegistry()
	p := auth.NewExternalProvider(auth.ExternalConfig{
		BaseURL:  server.URL + "/",
		APIKey:   "anon-key",
		Timeout:  2 * time.Second,
		Registry: registry,
	})
	ctx := context.Background()

	t.Run("authenticate", func(t *testing.T) {
		user, err := p.Authenticate(ctx, "good-token")
		require.NoError(t, err)
		assert.Equal(t, auth.ProviderUser{ID: "sb-1", Email: "policeadmin@gmail.com"}, *user)
	})

	t.Run("rejected token", func(t *testing.T) {
		_, err := p.Authenticate(ctx, "bad-token")
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("provider failure", func(t *testing.T) {
		_, err := p.Authenticate(ctx, "broken")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("sign in", func(t *testing.T) {
		creds, err := p.SignIn(ctx, "policeadmin@gmail.com", "correct")
		require.NoError(t, err)
		assert.Equal(t, "good-token", creds.AccessToken)
		assert.Equal(t, "refresh-1", creds.RefreshToken)
		assert.Equal(t, "policeadmin@gmail.com", creds.User.Email)
	})

	t.Run("sign in rejected", func(t *testing.T) {
		_, err := p.SignIn(ctx, "policeadmin@gmail.com", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("sign out", func(t *testing.T) {
		assert.NoError(t, p.SignOut(ctx, "good-token"))
	})

	health := registry.Health(auth.ExternalProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestExternalProvider_ThroughService(t *testing.T) {
	server := newGoTrueServer(t)
	defer server.Close()

	svc := auth.NewService(auth.ServiceConfig{
		Provider: auth.NewExternalProvider(auth.ExternalConfig{BaseURL: server.URL, APIKey: "anon-key"}),
		Logger:   zerolog.Nop(),
	})

	result, err := svc.Login(context.Background(), "policeadmin@gmail.com", "correct")
	require.NoError(t, err)
	assert.Equal(t, "/police", result.RedirectURL)

	identity, err := svc.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.True(t, identity.CanAccess(dispatch.StationPolice))
}

func newLocalProvider() (*auth.LocalProvider, *auth.InMemoryAccountRepository) {
	accounts := auth.NewInMemoryAccountRepository()
	return auth.NewLocalProvider(auth.LocalConfig{
		Accounts:   accounts,
		JWT:        testJWTService(),
		BcryptCost: bcrypt.MinCost,
	}), accounts
}

func TestLocalProvider_RegisterSignInAuthenticate(t *testing.T) {
	p, accounts := newLocalProvider()
	ctx := context.Background()

	user, err := p.Register(ctx, "FireAdmin@gmail.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "fireadmin@gmail.com", user.Email)
	assert.Regexp(t, `^usr_`, user.ID)

	stored, err := accounts.FindByEmail(ctx, "fireadmin@gmail.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)

	_, err = p.Register(ctx, "fireadmin@gmail.com", "another")
	assert.ErrorIs(t, err, auth.ErrAccountExists)

	creds, err := p.SignIn(ctx, "fireadmin@gmail.com", "hunter22")
	require.NoError(t, err)

	authed, err := p.Authenticate(ctx, creds.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = p.SignIn(ctx, "fireadmin@gmail.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = p.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestLocalProvider_ThroughService(t *testing.T) {
	p, _ := newLocalProvider()
	svc := auth.NewService(auth.ServiceConfig{Provider: p, Logger: zerolog.Nop()})
	ctx := context.Background()

	_, err := svc.Register(ctx, "medicaladmin@gmail.com", "secret1")
	require.NoError(t, err)

	result, err := svc.Login(ctx, "medicaladmin@gmail.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "/ambulance", result.RedirectURL)

	identity, err := svc.Verify(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StationAmbulance, identity.Station)
}

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		req    auth.RegisterRequest
		fields []string
	}{
		{"valid", auth.RegisterRequest{Email: "a@b.co", Password: "123456"}, nil},
		{"missing email", auth.RegisterRequest{Password: "123456"}, []string{"email"}},
		{"bad email", auth.RegisterRequest{Email: "nope", Password: "123456"}, []string{"email"}},
		{"short password", auth.RegisterRequest{Email: "a@b.co", Password: "12345"}, []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			for _, e := range tt.req.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	req := auth.LoginRequest{}
	errs := req.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, "REQUIRED", errs[1].Code)
}
