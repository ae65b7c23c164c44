package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/api/response"
	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/report"
)

// ReportHandler handles incident report endpoints.
type ReportHandler struct {
	reports *report.Service
	logger  zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *report.Service, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger.With().Str("handler", "report").Logger(),
	}
}

// ListReports handles GET /api/reports - every report in creation order.
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		h.internalError(w, r, err, "failed to load reports")
		return
	}
	response.JSON(w, r, http.StatusOK, reports)
}

// GetReport handles GET /api/reports/{id}.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			response.NotFound(w, r, "report not found")
			return
		}
		h.internalError(w, r, err, "failed to load report")
		return
	}
	response.JSON(w, r, http.StatusOK, rep)
}

// SubmitReport handles POST /api/reports - anonymous incident submission.
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req report.SubmitRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", reportFieldErrors(errs))
		return
	}

	result, err := h.reports.Submit(r.Context(), &req)
	if err != nil {
		h.internalError(w, r, err, "failed to submit report")
		return
	}

	response.Created(w, r, "/api/reports/"+result.Report.ID, result)
}

// ListStationReports handles GET /api/station/{station}/reports - the
// reports a station is responsible for. The guard has already checked the
// station against the caller.
func (h *ReportHandler) ListStationReports(w http.ResponseWriter, r *http.Request) {
	station, err := dispatch.ParseStation(chi.URLParam(r, "station"))
	if err != nil {
		response.NotFound(w, r, "unknown station")
		return
	}

	reports, err := h.reports.ListForStation(r.Context(), station)
	if err != nil {
		h.internalError(w, r, err, "failed to load reports")
		return
	}
	response.JSON(w, r, http.StatusOK, reports)
}

// UpdateStatus handles PUT /api/reports/{id}/status.
func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	var req report.StatusUpdateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", reportFieldErrors(errs))
		return
	}

	updated, err := h.reports.UpdateStatus(r.Context(), chi.URLParam(r, "id"), report.Status(strings.TrimSpace(req.Status)), caller.Email)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrReportNotFound):
			response.NotFound(w, r, "report not found")
		case errors.Is(err, report.ErrInvalidStatus):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			h.internalError(w, r, err, "failed to update report")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  updated,
	})
}

func (h *ReportHandler) internalError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	h.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg(detail)
	response.InternalError(w, r, detail)
}

func reportFieldErrors(errs []report.FieldError) []models.FieldError {
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
