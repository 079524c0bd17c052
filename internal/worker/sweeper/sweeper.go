// Package sweeper periodically deletes sessions past their expiry.  Expired
// sessions already fail validation; the sweep only keeps the table small.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/proctored-exam/internal/metrics"
)

// Store is the slice of the session repository the job needs.
type Store interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Job removes expired sessions.
type Job struct {
	store    Store
	logger   *slog.Logger
	metrics  metrics.Recorder
	Interval time.Duration
	Now      func() time.Time
}

// NewJob returns a Job running every interval.
func NewJob(store Store, interval time.Duration, logger *slog.Logger, m metrics.Recorder) *Job {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		store:    store,
		logger:   logger,
		metrics:  m,
		Interval: interval,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one sweep.
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	n, err := j.store.DeleteExpired(ctx, j.Now())
	if err != nil {
		j.logger.Error("session sweep failed", slog.String("error", err.Error()))
		return err
	}
	j.metrics.RecordSessionsSwept(n)
	j.logger.Info("session sweep completed",
		slog.Int64("deleted_count", n),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (j *Job) Start(ctx context.Context) {
	_ = j.Run(ctx)
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
