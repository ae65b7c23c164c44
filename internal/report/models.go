// Package report stores citizen incident reports and drives classification
// and notification fanout when one arrives.
package report

import (
	"errors"
	"strings"
	"time"

	"github.com/aidtracker/aidtracker/internal/dispatch"
)

// Report errors.
var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidStatus  = errors.New("invalid report status")
)

// DefaultReporter is recorded when a submission names no reporter.
const DefaultReporter = "Unknown"

// Status is the handling state of a report.
type Status string

// Report statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Report is a citizen-submitted incident.
type Report struct {
	ID          string     `json:"id"`
	Reporter    string     `json:"reporter"`
	Type        string     `json:"type"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Photo       *string    `json:"photo"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy   *string    `json:"updatedBy,omitempty"`
}

// Route classifies the report type.
func (r *Report) Route() dispatch.Route {
	return dispatch.Classify(r.Type)
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	maxTextLength = 500

	// MaxPhotoLength caps the encoded photo. Larger photos are dropped and
	// the report is stored without one.
	MaxPhotoLength = 15 << 20
)

// SubmitRequest is the body of POST /api/reports. Every field is optional;
// an empty type classifies as a motor accident.
type SubmitRequest struct {
	Reporter    string `json:"reporter"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Photo       string `json:"photo"`
}

// Validate validates the submission.
func (r *SubmitRequest) Validate() []FieldError {
	var errs []FieldError
	for field, value := range map[string]string{
		"reporter": r.Reporter,
		"type":     r.Type,
		"location": r.Location,
	} {
		if len(value) > maxTextLength {
			errs = append(errs, FieldError{Field: field, Message: field + " is too long", Code: "TOO_LONG"})
		}
	}
	if len(r.Description) > 4*maxTextLength {
		errs = append(errs, FieldError{Field: "description", Message: "description is too long", Code: "TOO_LONG"})
	}
	return errs
}

// StatusUpdateRequest is the body of PUT /api/reports/{id}/status.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// Validate validates the status update.
func (r *StatusUpdateRequest) Validate() []FieldError {
	status := Status(strings.TrimSpace(r.Status))
	switch {
	case status == "":
		return []FieldError{{Field: "status", Message: "status is required", Code: "REQUIRED"}}
	case !status.Valid():
		return []FieldError{{Field: "status", Message: "status must be one of pending, in_progress, resolved, rejected", Code: "INVALID_VALUE"}}
	}
	return nil
}

// SubmitResult is returned to the submitting client.
type SubmitResult struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Report   *Report            `json:"report"`
	Category dispatch.Category  `json:"category"`
	RoutedTo []dispatch.Station `json:"routedTo"`
}

// StatusChange is broadcast after a status update.
type StatusChange struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	UpdatedBy string `json:"updatedBy"`
}

func cloneReport(r *Report) *Report {
	cp := *r
	if r.Photo != nil {
		photo := *r.Photo
		cp.Photo = &photo
	}
	if r.UpdatedAt != nil {
		at := *r.UpdatedAt
		cp.UpdatedAt = &at
	}
	if r.UpdatedBy != nil {
		by := *r.UpdatedBy
		cp.UpdatedBy = &by
	}
	return &cp
}
