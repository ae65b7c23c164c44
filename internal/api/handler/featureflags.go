package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/api/response"
	"github.com/aidtracker/aidtracker/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{
		service: service,
		logger:  logger.With().Str("handler", "featureflags").Logger(),
	}
}

// ListFeatureFlags handles GET /api/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, featureflags.FlagList{Items: h.service.List(r.Context())})
}

// UpsertFeatureFlags handles PUT /api/admin/feature-flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	var req featureflags.FlagUpdateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	flags, err := h.service.Apply(r.Context(), &req, caller.Email)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}
	response.JSON(w, r, http.StatusOK, featureflags.FlagList{Items: flags})
}

// InvalidateCache handles POST /api/admin/feature-flags/invalidate - invalidate flag cache.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
