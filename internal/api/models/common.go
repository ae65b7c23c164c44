// Package models provides request and response models for the AidTracker API
// that are not owned by a domain package.
package models

import (
	"time"

	"github.com/aidtracker/aidtracker/internal/auth"
)

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a helper type for time.Time with custom JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	// Remove quotes
	s := string(data[1 : len(data)-1])
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// MessageResponse acknowledges a request that has no other payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CountResponse carries a single count, e.g. unread notifications.
type CountResponse struct {
	Count int `json:"count"`
}

// VerifyTokenResponse is the body of POST /api/verify-token.
type VerifyTokenResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *auth.Identity `json:"user,omitempty"`
	RedirectURL   string         `json:"redirectUrl,omitempty"`
}

// RegisterResponse is the body of a successful POST /api/register.
type RegisterResponse struct {
	Success bool          `json:"success"`
	User    auth.Identity `json:"user"`
}
