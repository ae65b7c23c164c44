package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/dispatch"
)

// maxTokenBodySize caps how much of a request body is buffered while
// looking for a token field.
const maxTokenBodySize = 1 << 20

// identityKey is the context key for the verified identity.
type identityKey struct{}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// GuardConfig holds dependencies for the access guard.
type GuardConfig struct {
	Verifier Verifier
	Logger   zerolog.Logger
}

// Guard authenticates requests and enforces station scope. API routes get
// RFC7807 problems; dashboard pages get redirects to the login page.
type Guard struct {
	verifier Verifier
	logger   zerolog.Logger
}

// NewGuard creates a new access guard.
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{
		verifier: cfg.Verifier,
		logger:   cfg.Logger.With().Str("component", "guard").Logger(),
	}
}

// RequireIdentity rejects requests without a valid token with 401.
func (g *Guard) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := g.authenticateAPI(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireAdmin rejects requests that are not from a station admin.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := g.authenticateAPI(w, r)
		if !ok {
			return
		}
		if !identity.IsAdmin() {
			writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "station admin access required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireStation scopes an API route to the admins of the station named by
// the chi URL parameter param.
func (g *Guard) RequireStation(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			station, err := dispatch.ParseStation(chi.URLParam(r, param))
			if err != nil {
				writeProblem(w, r, models.NewNotFound(GetRequestID(r.Context()), "unknown station"))
				return
			}

			identity, ok := g.authenticateAPI(w, r)
			if !ok {
				return
			}
			if !identity.CanAccess(station) {
				g.logger.Info().
					Str("email", identity.Email).
					Str("station", station.String()).
					Msg("station access denied")
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "access denied for this station"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Page guards a dashboard page of station. Failures redirect to the login
// page, carrying the original URI so the user lands back here.
func (g *Guard) Page(station dispatch.Station) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			redirect := url.QueryEscape(r.URL.RequestURI())

			token := ExtractToken(r)
			if token == "" {
				http.Redirect(w, r, "/?redirect="+redirect, http.StatusFound)
				return
			}

			identity, err := g.verifier.Verify(r.Context(), token)
			switch {
			case errors.Is(err, auth.ErrUnauthenticated):
				http.Redirect(w, r, "/?session=expired&redirect="+redirect, http.StatusFound)
				return
			case err != nil:
				g.logger.Error().Err(err).Str("path", r.URL.Path).Msg("page authentication failed")
				http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
				return
			}

			if !identity.CanAccess(station) {
				http.Redirect(w, r, "/?error=access_denied", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (g *Guard) authenticateAPI(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	traceID := GetRequestID(r.Context())

	token := ExtractToken(r)
	if token == "" {
		writeProblem(w, r, models.NewUnauthorized(traceID, "authentication token is required"))
		return nil, false
	}

	identity, err := g.verifier.Verify(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeProblem(w, r, models.NewUnauthorized(traceID, "invalid or expired token"))
		return nil, false
	case err != nil:
		g.logger.Error().Err(err).Str("request_id", traceID).Msg("token verification failed")
		writeProblem(w, r, models.NewInternalError(traceID, "authentication failed"))
		return nil, false
	}
	return identity, true
}

// ExtractToken finds the caller's token. Sources in order: the token query
// parameter, the Authorization header, a token field in a JSON body and
// the token cookie. A body that is read is restored for the next handler.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if header := r.Header.Get("Authorization"); header != "" {
		if parts := strings.Fields(header); len(parts) >= 2 {
			return parts[1]
		}
	}

	if token := tokenFromBody(r); token != "" {
		return token
	}

	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return ""
	}

	// Only a prefix is inspected; the handler still sees the whole body.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBodySize))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
	if err != nil || len(body) == 0 {
		return ""
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Token
}

// WithIdentity returns a copy of ctx carrying identity. The identity is
// also attached to the request log line.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	annotateIdentity(ctx, identity)
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentity returns the verified identity, or nil for anonymous requests.
func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(identityKey{}).(*auth.Identity); ok {
		return identity
	}
	return nil
}

func writeProblem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}
