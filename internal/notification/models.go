// Package notification persists per-admin incident notifications and fans
// them out to live connections.
package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidtracker/aidtracker/internal/dispatch"
)

// ErrNotificationNotFound is returned when no notification matches.
var ErrNotificationNotFound = errors.New("notification not found")

// Everyone addresses a notification to every user.
const Everyone = "all"

// Notification is one message addressed to a user or to Everyone.
type Notification struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	App          string            `json:"app,omitempty"`
	User         string            `json:"user"`
	Station      dispatch.Station  `json:"station,omitempty"`
	IncidentType dispatch.Category `json:"incidentType,omitempty"`
	ReportID     string            `json:"reportId,omitempty"`
	Read         bool              `json:"read"`
	ReadAt       *time.Time        `json:"readAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// VisibleTo reports whether user sees n in their inbox.
func (n *Notification) VisibleTo(user string) bool {
	return n.User == user || n.User == Everyone
}

// Incident is what the fanout needs to know about a freshly stored report.
type Incident struct {
	ReportID string
	Reporter string
	Location string
	Route    dispatch.Route
}

// Title renders the notification title, e.g. "New FIRE ACCIDENT Report".
func (i Incident) Title() string {
	return fmt.Sprintf("New %s Report", strings.ToUpper(i.Route.Category.Label()))
}

// Message renders the notification body.
func (i Incident) Message() string {
	location := i.Location
	if strings.TrimSpace(location) == "" {
		location = "Unknown location"
	}
	return fmt.Sprintf("%s reported a %s at %s", i.Reporter, i.Route.Category.Label(), location)
}

// DeliveryResult tells whether a notification reached a live connection.
type DeliveryResult string

// Delivery results.
const (
	Delivered DeliveryResult = "delivered"
	Queued    DeliveryResult = "queued"
)

// Deliverer pushes a notification to the live connection of user, or to
// every connection when user is Everyone.
type Deliverer interface {
	Deliver(user string, n Notification) DeliveryResult
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CreateRequest is the body of POST /api/notifications.
type CreateRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	User    string `json:"user"`
	App     string `json:"app"`
}

// Validate validates the create request.
func (r *CreateRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "title is required", Code: "REQUIRED"})
	}
	if strings.TrimSpace(r.Message) == "" {
		errs = append(errs, FieldError{Field: "message", Message: "message is required", Code: "REQUIRED"})
	}
	return errs
}

func newID() string {
	return "ntf_" + uuid.New().String()
}
