// Package scheduler runs the periodic sweep of idle intake sessions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"submit_bot/internal/storage"
)

// DefaultSchedule runs the sweep every minute.
const DefaultSchedule = "@every 1m"

// Scheduler deletes sessions that have been idle longer than the timeout.
type Scheduler struct {
	store    storage.Storage
	log      *slog.Logger
	timeout  time.Duration
	schedule cron.Schedule
	spec     string
	now      func() time.Time
}

// New creates a Scheduler. spec is a standard cron expression or a
// descriptor such as "@every 30s"; empty means DefaultSchedule.
func New(store storage.Storage, timeout time.Duration, spec string, log *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("session timeout must be positive, got %s", timeout)
	}
	return &Scheduler{
		store:    store,
		log:      log,
		timeout:  timeout,
		schedule: sched,
		spec:     spec,
		now:      time.Now,
	}, nil
}

// Run sweeps once, then on every tick of the schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.sweep(ctx) }))
	c.Start()
	s.log.Debug("sweep scheduled", "schedule", s.spec, "timeout", s.timeout)

	<-ctx.Done()
	<-c.Stop().Done()
}

// Sweep deletes every session whose last activity is older than the timeout,
// regardless of state, and returns how many were removed.
func (s *Scheduler) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.timeout)
	n, err := s.store.DeleteIdleSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return n, nil
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep idle sessions", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("expired idle sessions", "count", n)
	}
}
