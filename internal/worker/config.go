// Package worker runs background jobs for AidTracker: the session sweep and
// the report intake subscription.
package worker

import (
	"time"
)

// DefaultSweepSchedule runs the sweep at the top of every hour. The
// expression includes a seconds field.
const DefaultSweepSchedule = "0 0 * * * *"

// SweepConfig holds configuration for the session sweep job.
type SweepConfig struct {
	// Schedule is a six-field cron expression.
	// Default: DefaultSweepSchedule
	Schedule string

	// Timeout bounds one sweep.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Schedule: DefaultSweepSchedule,
		Timeout:  30 * time.Second,
	}
}

func (c SweepConfig) withDefaults() SweepConfig {
	d := DefaultSweepConfig()
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// IntakeConfig holds configuration for the report intake subscription.
type IntakeConfig struct {
	ProjectID        string
	SubscriptionName string

	// MaxOutstanding caps concurrently processed messages.
	// Default: 10
	MaxOutstanding int
}
