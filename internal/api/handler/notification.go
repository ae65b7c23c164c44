package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/api/response"
	"github.com/aidtracker/aidtracker/internal/notification"
)

// NotificationHandler handles the admin notification inbox.
type NotificationHandler struct {
	notifications *notification.Service
	logger        zerolog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger.With().Str("handler", "notification").Logger(),
	}
}

// ListNotifications handles GET /api/station/{station}/notifications.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	list, err := h.notifications.ListForUser(r.Context(), caller.Email)
	if err != nil {
		h.internalError(w, r, err, "failed to load notifications")
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}

// UnreadCount handles GET /api/station/{station}/notifications/unread.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), caller.Email)
	if err != nil {
		h.internalError(w, r, err, "failed to count notifications")
		return
	}
	response.JSON(w, r, http.StatusOK, models.CountResponse{Count: count})
}

// MarkAllRead handles PUT /api/station/{station}/notifications/read.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	count, err := h.notifications.MarkAllRead(r.Context(), caller.Email)
	if err != nil {
		h.internalError(w, r, err, "failed to mark notifications read")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"updated": count,
	})
}

// ClearNotifications handles DELETE /api/station/{station}/notifications.
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	count, err := h.notifications.ClearForUser(r.Context(), caller.Email)
	if err != nil {
		h.internalError(w, r, err, "failed to clear notifications")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": count,
	})
}

// MarkRead handles PUT /api/notifications/{id}/read. Any authenticated
// caller may mark any notification read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if identity(w, r) == nil {
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			response.NotFound(w, r, "notification not found")
			return
		}
		h.internalError(w, r, err, "failed to mark notification read")
		return
	}
	response.JSON(w, r, http.StatusOK, n)
}

// DeleteNotification handles DELETE /api/notifications/{id}. Only the
// addressee may delete a notification.
func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	caller := identity(w, r)
	if caller == nil {
		return
	}

	if err := h.notifications.Delete(r.Context(), caller.Email, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			response.NotFound(w, r, "notification not found")
			return
		}
		h.internalError(w, r, err, "failed to delete notification")
		return
	}
	response.JSON(w, r, http.StatusOK, models.MessageResponse{Success: true, Message: "Notification deleted"})
}

// CreateNotification handles POST /api/notifications - a manual message to
// one user or to everyone.
func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req notification.CreateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		fieldErrors := make([]models.FieldError, len(errs))
		for i, e := range errs {
			fieldErrors[i] = models.FieldError{
				Field:   e.Field,
				Message: e.Message,
				Code:    e.Code,
			}
		}
		response.BadRequest(w, r, "validation error", fieldErrors)
		return
	}

	n, err := h.notifications.Create(r.Context(), &req)
	if err != nil {
		h.internalError(w, r, err, "failed to create notification")
		return
	}
	response.Created(w, r, "", n)
}

func (h *NotificationHandler) internalError(w http.ResponseWriter, r *http.Request, err error, detail string) {
	h.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg(detail)
	response.InternalError(w, r, detail)
}
