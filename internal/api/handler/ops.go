// Package handler provides HTTP handlers for the AidTracker API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/api/response"
	"github.com/aidtracker/aidtracker/internal/featureflags"
	"github.com/aidtracker/aidtracker/internal/provider/resilience"
)

// SessionCounter reports how many sessions are live.
type SessionCounter interface {
	SessionCount(ctx context.Context) (int, error)
}

// DependencyCheck probes one backing service, e.g. a database ping.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds dependencies for the ops handler. Every field is optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Providers *resilience.Registry
	Sessions  SessionCounter
	Flags     *featureflags.Service
	Checks    []DependencyCheck

	// Connections returns the number of open realtime connections.
	Connections func() int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /health and GET /api/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	details := map[string]interface{}{
		"version":   h.cfg.Version,
		"buildTime": h.cfg.BuildTime,
	}
	if h.cfg.Connections != nil {
		details["connections"] = h.cfg.Connections()
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// ReadinessCheck handles GET /api/ops/ready - fails while a dependency is down.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	for _, sub := range h.subsystems(r.Context()) {
		if sub.Status == models.HealthStatusFail {
			response.ServiceUnavailable(w, r, sub.Name+" is unavailable")
			return
		}
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /api/ops/status - provider circuits, subsystems
// and live sessions.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystems(r.Context()),
		Providers:  h.providers(),
	}

	if h.cfg.Sessions != nil {
		if count, err := h.cfg.Sessions.SessionCount(r.Context()); err == nil {
			status.ActiveSessions = count
		} else {
			detail := err.Error()
			status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
				Name: "sessions", Status: models.HealthStatusFail, Detail: &detail,
			})
		}
	}

	if h.cfg.Connections != nil {
		status.ActiveConnections = h.cfg.Connections()
	}
	status.ActiveDegradationFlags = h.cfg.Flags.Active(r.Context())

	for _, sub := range status.Subsystems {
		status.Status = worse(status.Status, sub.Status)
	}
	for _, p := range status.Providers {
		status.Status = worse(status.Status, p.Status)
	}
	if len(status.ActiveDegradationFlags) > 0 {
		status.Status = worse(status.Status, models.HealthStatusDegraded)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for _, check := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check.Check(checkCtx)
		cancel()

		sub := models.SubsystemStatus{Name: check.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
		}
		out = append(out, sub)
	}
	return out
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.cfg.Providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Providers.All()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, health := range all {
		p := models.ProviderStatus{
			Provider:     health.Name,
			Status:       circuitHealth(health.CircuitState),
			CircuitState: health.CircuitState.String(),
		}
		if health.LastSuccessAt != nil {
			ts := models.Timestamp(*health.LastSuccessAt)
			p.LastSuccessAt = &ts
		}
		if health.LastFailureAt != nil {
			ts := models.Timestamp(*health.LastFailureAt)
			p.LastFailureAt = &ts
		}
		if health.LastError != "" {
			msg := health.LastError
			p.Message = &msg
		}
		out = append(out, p)
	}
	return out
}

func circuitHealth(state gobreaker.State) models.HealthStatus {
	switch state {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
