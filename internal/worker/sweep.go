package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper removes expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepJob periodically drops expired sessions from the session store.
type SweepJob struct {
	config   SweepConfig
	sessions Sweeper
	logger   zerolog.Logger
	cron     *cron.Cron

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	FailedRuns      int64
	SessionsRemoved int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastError       string
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config   SweepConfig
	Sessions Sweeper
	Logger   zerolog.Logger
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:   cfg.Config.withDefaults(),
		sessions: cfg.Sessions,
		logger:   cfg.Logger.With().Str("component", "session-sweep").Logger(),
		cron:     cron.New(cron.WithSeconds()),
		metrics:  &SweepMetrics{},
	}
}

// SweepResult contains the result of one sweep.
type SweepResult struct {
	StartTime time.Time
	Duration  time.Duration
	Removed   int
	Err       error
}

// Run sweeps once.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result := &SweepResult{StartTime: time.Now()}
	result.Removed, result.Err = j.sessions.Sweep(ctx)
	result.Duration = time.Since(result.StartTime)

	j.updateMetrics(result)

	if result.Err != nil {
		j.logger.Error().Err(result.Err).Dur("duration", result.Duration).Msg("session sweep failed")
		return result
	}

	j.logger.Info().
		Int("removed", result.Removed).
		Dur("duration", result.Duration).
		Msg("session sweep completed")

	return result
}

// Start schedules the sweep. It returns an error for an invalid schedule.
func (j *SweepJob) Start() error {
	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		j.Run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling session sweep %q: %w", j.config.Schedule, err)
	}

	j.cron.Start()
	j.logger.Info().Str("schedule", j.config.Schedule).Msg("session sweep scheduled")
	return nil
}

// Stop stops scheduling and waits for a running sweep up to ctx.
func (j *SweepJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		j.logger.Warn().Msg("session sweep still running at shutdown")
	}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.StartTime
	j.metrics.LastRunDuration = result.Duration
	if result.Err != nil {
		j.metrics.FailedRuns++
		j.metrics.LastError = result.Err.Error()
		return
	}
	j.metrics.SessionsRemoved += int64(result.Removed)
	j.metrics.LastError = ""
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		FailedRuns:      j.metrics.FailedRuns,
		SessionsRemoved: j.metrics.SessionsRemoved,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		LastError:       j.metrics.LastError,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"failed_runs":       m.FailedRuns,
		"sessions_removed":  m.SessionsRemoved,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"last_error":        m.LastError,
	}
}
