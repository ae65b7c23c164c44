package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidtracker/aidtracker/internal/api"
	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/featureflags"
	"github.com/aidtracker/aidtracker/internal/notification"
	"github.com/aidtracker/aidtracker/internal/provider/resilience"
	"github.com/aidtracker/aidtracker/internal/report"
)

const testPassword = "correct horse battery"

// testServer wires the router to in-memory services and a local provider.
type testServer struct {
	router *chi.Mux
	auth   *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)

	provider := auth.NewLocalProvider(auth.LocalConfig{
		Accounts: auth.NewInMemoryAccountRepository(),
		JWT: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "test-secret-key-for-testing-only",
			Issuer:     "aidtracker-test",
			Audience:   "aidtracker-dashboard",
		}),
		BcryptCost: 4,
	})
	authService := auth.NewService(auth.ServiceConfig{
		Provider:  provider,
		Directory: dispatch.DefaultDirectory(),
		Logger:    logger,
	})

	notifications := notification.NewInMemoryRepository()
	inbox := notification.NewService(notification.ServiceConfig{
		Repository: notifications,
		Logger:     logger,
	})
	fanout := notification.NewFanout(notification.FanoutConfig{
		Repository: notifications,
		Directory:  dispatch.DefaultDirectory(),
		Logger:     logger,
	})
	reports := report.NewService(report.ServiceConfig{
		Repository:     report.NewInMemoryRepository(),
		Notifier:       fanout,
		PhotosDisabled: func(context.Context) bool { return true },
		Logger:         logger,
	})
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     logger,
	})

	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<h1>login</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "police.html"), []byte("<h1>police</h1>"), 0o600))

	router := api.NewRouter(api.RouterConfig{
		Version:             "test",
		BuildTime:           "now",
		Logger:              logger,
		WebDir:              webDir,
		AuthService:         authService,
		Providers:           resilience.NewRegistry(),
		ReportService:       reports,
		NotificationService: inbox,
		FeatureFlagService:  flags,
	})

	for _, email := range []string{"fireadmin@gmail.com", "policeadmin@gmail.com", "citizen@example.com"} {
		_, err := authService.Register(context.Background(), email, testPassword)
		require.NoError(t, err)
	}

	return &testServer{router: router, auth: authService}
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	result, err := s.auth.Login(context.Background(), email, testPassword)
	require.NoError(t, err)
	return result.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestRouter_HealthCheck(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/api/ops/health"} {
		rec := srv.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)

		var health models.Health
		decode(t, rec, &health)
		assert.Equal(t, models.HealthStatusOK, health.Status)
		assert.Equal(t, "test", health.Details["version"])
	}
}

func TestRouter_RequestID_Generated(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("X-Request-ID", "custom-request-id-123")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, "custom-request-id-123", rec.Header().Get("X-Request-ID"))
}

func TestRouter_NotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouter_SubmitReportRoutesToStations(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/reports", "", map[string]string{
		"reporter": "Ada",
		"type":     "Fire in building",
		"location": "Main street 4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result report.SubmitResult
	decode(t, rec, &result)
	assert.True(t, result.Success)
	assert.Equal(t, dispatch.CategoryFireAccident, result.Category)
	assert.ElementsMatch(t, []dispatch.Station{dispatch.StationFire, dispatch.StationAmbulance}, result.RoutedTo)
	assert.Equal(t, "/api/reports/"+result.Report.ID, rec.Header().Get("Location"))
	assert.Equal(t, report.StatusPending, result.Report.Status)

	rec = srv.do(t, http.MethodGet, "/api/reports/"+result.Report.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	fireToken := srv.login(t, "fireadmin@gmail.com")

	rec = srv.do(t, http.MethodGet, "/api/station/fire/reports", fireToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fireReports []report.Report
	decode(t, rec, &fireReports)
	assert.Len(t, fireReports, 1)

	rec = srv.do(t, http.MethodGet, "/api/station/fire/notifications/unread", fireToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count models.CountResponse
	decode(t, rec, &count)
	assert.Equal(t, 1, count.Count)

	rec = srv.do(t, http.MethodGet, "/api/station/fire/notifications", fireToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []notification.Notification
	decode(t, rec, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, result.Report.ID, inbox[0].ReportID)
	assert.False(t, inbox[0].Read)

	policeToken := srv.login(t, "policeadmin@gmail.com")
	rec = srv.do(t, http.MethodGet, "/api/station/police/notifications/unread", policeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &count)
	assert.Equal(t, 0, count.Count)
}

func TestRouter_StationScope(t *testing.T) {
	srv := newTestServer(t)
	fireToken := srv.login(t, "fireadmin@gmail.com")

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
	}{
		{name: "own station", path: "/api/station/fire/reports", token: fireToken, wantCode: http.StatusOK},
		{name: "other station", path: "/api/station/police/reports", token: fireToken, wantCode: http.StatusForbidden},
		{name: "unknown station", path: "/api/station/navy/reports", token: fireToken, wantCode: http.StatusNotFound},
		{name: "anonymous", path: "/api/station/fire/reports", wantCode: http.StatusUnauthorized},
		{name: "bad token", path: "/api/station/fire/reports", token: "garbage", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRouter_UpdateStatus(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "policeadmin@gmail.com")

	rec := srv.do(t, http.MethodPost, "/api/reports", "", map[string]string{"type": "car crash"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var submitted report.SubmitResult
	decode(t, rec, &submitted)
	id := submitted.Report.ID

	tests := []struct {
		name     string
		id       string
		token    string
		status   string
		wantCode int
	}{
		{name: "anonymous", id: id, status: "resolved", wantCode: http.StatusUnauthorized},
		{name: "unknown report", id: "missing", token: token, status: "resolved", wantCode: http.StatusNotFound},
		{name: "invalid status", id: id, token: token, status: "exploded", wantCode: http.StatusBadRequest},
		{name: "valid", id: id, token: token, status: "in_progress", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPut, "/api/reports/"+tt.id+"/status", tt.token, map[string]string{"status": tt.status})
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec = srv.do(t, http.MethodGet, "/api/reports/"+id, "", nil)
	var got report.Report
	decode(t, rec, &got)
	assert.Equal(t, report.StatusInProgress, got.Status)
	require.NotNil(t, got.UpdatedBy)
	assert.Equal(t, "policeadmin@gmail.com", *got.UpdatedBy)
}

func TestRouter_Login(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{name: "missing fields", body: map[string]string{}, wantCode: http.StatusBadRequest},
		{name: "wrong password", body: map[string]string{"email": "fireadmin@gmail.com", "password": "nope"}, wantCode: http.StatusUnauthorized},
		{name: "not an admin", body: map[string]string{"email": "citizen@example.com", "password": testPassword}, wantCode: http.StatusForbidden},
		{name: "station admin", body: map[string]string{"email": "fireadmin@gmail.com", "password": testPassword}, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/login", "", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode == http.StatusOK {
				var result auth.LoginResult
				decode(t, rec, &result)
				assert.NotEmpty(t, result.Token)
				assert.Equal(t, "/fire", result.RedirectURL)
				assert.Equal(t, dispatch.StationFire, result.User.Station)
				assert.Contains(t, rec.Header().Get("Set-Cookie"), "token=")
			}
		})
	}
}

func TestRouter_VerifyToken(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "policeadmin@gmail.com")

	rec := srv.do(t, http.MethodPost, "/api/verify-token", "", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.VerifyTokenResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Authenticated)
	require.NotNil(t, resp.User)
	assert.Equal(t, "policeadmin@gmail.com", resp.User.Email)
	assert.Equal(t, "/police", resp.RedirectURL)

	rec = srv.do(t, http.MethodPost, "/api/verify-token", "", map[string]string{"token": "garbage"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = models.VerifyTokenResponse{}
	decode(t, rec, &resp)
	assert.False(t, resp.Authenticated)
}

func TestRouter_DashboardPage(t *testing.T) {
	srv := newTestServer(t)
	policeToken := srv.login(t, "policeadmin@gmail.com")
	fireToken := srv.login(t, "fireadmin@gmail.com")

	rec := srv.do(t, http.MethodGet, "/police", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?redirect=%2Fpolice", rec.Header().Get("Location"))

	rec = srv.do(t, http.MethodGet, "/police?token="+fireToken, "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?error=access_denied", rec.Header().Get("Location"))

	rec = srv.do(t, http.MethodGet, "/police?token="+policeToken, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "police")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = srv.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_FeatureFlags(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.login(t, "fireadmin@gmail.com")

	rec := srv.do(t, http.MethodGet, "/api/admin/feature-flags", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/admin/feature-flags", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list featureflags.FlagList
	decode(t, rec, &list)
	assert.Len(t, list.Items, 3)

	rec = srv.do(t, http.MethodPut, "/api/admin/feature-flags", adminToken, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: "unknown_flag", Enabled: true}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/admin/feature-flags", adminToken, featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{{Key: featureflags.FlagDisableRealtimePush, Enabled: true}},
		Reason:  "websocket gateway maintenance",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/ops/status", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	decode(t, rec, &status)
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, []string{featureflags.FlagDisableRealtimePush}, status.ActiveDegradationFlags)
	assert.Equal(t, 1, status.ActiveSessions)
}

func TestRouter_RequireJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString("type=fire"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
