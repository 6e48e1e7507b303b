// Package scheduler runs the periodic maintenance jobs: provider health
// probes and the idle session sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Prober checks every configured provider and returns the per-provider error.
type Prober interface {
	Probe(ctx context.Context, timeout time.Duration) map[string]error
}

// Sweeper drops sessions idle for longer than the given duration.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) (int, error)
}

const (
	JobHealthProbe  = "provider-health-probe"
	JobSessionSweep = "idle-session-sweep"
)

// Scheduler owns a gocron scheduler and the jobs registered on it.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(newZapLogger(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: cron, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Every registers fn to run every interval. Runs of the same job never
// overlap.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive", name)
	}

	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { fn(s.ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}

	s.logger.Info("job scheduled",
		zap.String("name", name),
		zap.Duration("interval", interval),
	)
	return nil
}

// AddHealthProbe probes providers every interval and logs the failures.
func (s *Scheduler) AddHealthProbe(p Prober, interval, timeout time.Duration) error {
	return s.Every(JobHealthProbe, interval, func(ctx context.Context) {
		RunHealthProbe(ctx, p, timeout, s.logger)
	})
}

// AddSessionSweep drops sessions idle for longer than idle every interval.
func (s *Scheduler) AddSessionSweep(sw Sweeper, interval, idle time.Duration) error {
	if idle <= 0 {
		return fmt.Errorf("job %q: idle ttl must be positive", JobSessionSweep)
	}
	return s.Every(JobSessionSweep, interval, func(ctx context.Context) {
		RunSessionSweep(ctx, sw, idle, s.logger)
	})
}

// RunHealthProbe runs one probe round and reports how many providers failed.
func RunHealthProbe(ctx context.Context, p Prober, timeout time.Duration, logger *zap.Logger) int {
	failed := 0
	for name, err := range p.Probe(ctx, timeout) {
		if err != nil {
			failed++
			logger.Warn("provider probe failed",
				zap.String("provider", name),
				zap.Error(err),
			)
		}
	}
	return failed
}

// RunSessionSweep runs one sweep and returns the number of sessions removed.
func RunSessionSweep(ctx context.Context, sw Sweeper, idle time.Duration, logger *zap.Logger) int {
	removed, err := sw.Sweep(ctx, idle)
	if err != nil {
		logger.Error("session sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		logger.Info("swept idle sessions",
			zap.Int("removed", removed),
			zap.Duration("idle_ttl", idle),
		)
	}
	return removed
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	jobs := s.cron.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
