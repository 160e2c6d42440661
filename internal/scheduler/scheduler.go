package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relayhub/relay-gateway/internal/metrics"
)

// HealthChecker is the probe target; the provider client implements it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Scheduler runs the periodic upstream health probe.
type Scheduler struct {
	cron   *cron.Cron
	target HealthChecker
	logger *slog.Logger
}

// New creates a scheduler probing target on the given cron schedule.
func New(target HealthChecker, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{cron: cron.New(), target: target, logger: logger}
	if _, err := s.cron.AddFunc(schedule, s.probe); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running probe to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.target.Health(ctx); err != nil {
		s.logger.Warn("upstream health probe failed", "error", err)
		metrics.ProbeFailures.Inc()
		return
	}
	s.logger.Debug("upstream health probe ok")
}
