package models

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 error response.
// This is used for all API error responses with Content-Type: application/problem+json.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request trace identifier for debugging.
	TraceID string `json:"traceId"`

	// Errors contains structured field validation errors.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemType constants for standard error types.
const (
	ProblemTypeValidation       = "https://aidtracker.dev/problems/validation-error"
	ProblemTypeUnauthorized     = "https://aidtracker.dev/problems/unauthorized"
	ProblemTypeForbidden        = "https://aidtracker.dev/problems/forbidden"
	ProblemTypeNotFound         = "https://aidtracker.dev/problems/not-found"
	ProblemTypeConflict         = "https://aidtracker.dev/problems/conflict"
	ProblemTypeUnsupportedMedia = "https://aidtracker.dev/problems/unsupported-media-type"
	ProblemTypePayloadTooLarge  = "https://aidtracker.dev/problems/payload-too-large"
	ProblemTypeTooManyRequests  = "https://aidtracker.dev/problems/too-many-requests"
	ProblemTypeTLSRequired      = "https://aidtracker.dev/problems/tls-required"
	ProblemTypeInternal         = "https://aidtracker.dev/problems/internal-error"
	ProblemTypeUnavailable      = "https://aidtracker.dev/problems/service-unavailable"
)

// NewProblem creates a new Problem with the given parameters.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail adds a detail message to the Problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance adds the request instance URI to the Problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// detailed builds a problem whose title is the standard status text.
func detailed(problemType string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, http.StatusText(status), status, traceID)
	p.Detail = detail
	return p
}

// NewBadRequest creates a 400 problem carrying per-field validation errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := detailed(ProblemTypeValidation, http.StatusBadRequest, traceID, detail)
	p.Title = "Validation error"
	p.Errors = errors
	return p
}

func NewUnauthorized(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnauthorized, http.StatusUnauthorized, traceID, detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return detailed(ProblemTypeForbidden, http.StatusForbidden, traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return detailed(ProblemTypeNotFound, http.StatusNotFound, traceID, detail)
}

func NewConflict(traceID, detail string) *Problem {
	return detailed(ProblemTypeConflict, http.StatusConflict, traceID, detail)
}

func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnsupportedMedia, http.StatusUnsupportedMediaType, traceID, detail)
}

// NewPayloadTooLarge is returned when a body exceeds the decoder limit,
// usually because of an oversized photo.
func NewPayloadTooLarge(traceID, detail string) *Problem {
	return detailed(ProblemTypePayloadTooLarge, http.StatusRequestEntityTooLarge, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return detailed(ProblemTypeTooManyRequests, http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500 problem. detail reaches the client.
func NewInternalError(traceID, detail string) *Problem {
	return detailed(ProblemTypeInternal, http.StatusInternalServerError, traceID, detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnavailable, http.StatusServiceUnavailable, traceID, detail)
}
