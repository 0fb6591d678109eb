// Package jobs schedules the background maintenance tasks: purging expired
// sessions and terminal verification codes on a jittered interval.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Cleaner is a batched purge operation; both the session and verification
// engines implement it.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Scheduler owns the gocron scheduler and the registered cleanup tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler returns a stopped scheduler; call Start after registering
// tasks.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler, logger: logger}, nil
}

// AddCleanup registers a cleanup task. The interval is jittered by up to 10%
// so multiple processes do not hammer the store in lockstep, and singleton
// mode keeps a slow run from overlapping the next one.
func (s *Scheduler) AddCleanup(name string, every time.Duration, cleaner Cleaner) error {
	if every <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	jitter := every / 10
	if jitter <= 0 {
		jitter = time.Second
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationRandomJob(every, every+jitter),
		gocron.NewTask(func(ctx context.Context) {
			purged, err := cleaner.Cleanup(ctx)
			if err != nil {
				s.logger.Error("cleanup run failed", "job", name, "purged", purged, "error", err)
				return
			}
			if purged > 0 {
				s.logger.Info("cleanup run finished", "job", name, "purged", purged)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register cleanup job %q: %w", name, err)
	}
	return nil
}

// Start begins running registered tasks.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running tasks.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
