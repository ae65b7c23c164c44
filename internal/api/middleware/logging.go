package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/aidtracker/aidtracker/internal/auth"
)

// requestLogKey is the context key for the per-request log annotations.
type requestLogKey struct{}

// requestLog collects fields that are only known deep in the handler chain,
// such as the caller resolved by the guard.
type requestLog struct {
	mu      sync.Mutex
	email   string
	station string
}

func (l *requestLog) setIdentity(identity *auth.Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.email = identity.Email
	l.station = identity.Station.String()
}

func (l *requestLog) fields() (email, station string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.email, l.station
}

// annotateIdentity records the caller on the request log, if one is being kept.
func annotateIdentity(ctx context.Context, identity *auth.Identity) {
	if l, ok := ctx.Value(requestLogKey{}).(*requestLog); ok && identity != nil {
		l.setIdentity(identity)
	}
}

// Logger returns a middleware that logs HTTP requests. Probe endpoints log
// at debug level; token query parameters are masked.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			annotations := &requestLog{}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestLogKey{}, annotations)))

			duration := time.Since(start)
			requestID := GetRequestID(r.Context())

			spanCtx := trace.SpanContextFromContext(r.Context())
			traceID := ""
			spanID := ""
			if spanCtx.IsValid() {
				traceID = spanCtx.TraceID().String()
				spanID = spanCtx.SpanID().String()
			}

			event := log.Info()
			switch {
			case wrapped.statusCode >= 500:
				event = log.Error()
			case wrapped.statusCode >= 400:
				event = log.Warn()
			case isProbe(r.URL.Path):
				event = log.Debug()
			}

			message := "request completed"
			if wrapped.statusCode == http.StatusSwitchingProtocols {
				message = "connection upgraded"
			}

			event.
				Str("request_id", requestID).
				Str("trace_id", traceID).
				Str("span_id", spanID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", duration).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent())

			if query := redactedQuery(r); query != "" {
				event.Str("query", query)
			}
			if email, station := annotations.fields(); email != "" {
				event.Str("user", email).Str("station", station)
			}

			event.Msg(message)
		})
	}
}

func isProbe(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/api/ops/health") || strings.HasPrefix(path, "/api/ops/ready")
}
