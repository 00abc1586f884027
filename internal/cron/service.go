package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs the registered maintenance jobs once per interval on whichever
// replica holds the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// CycleReport is the outcome of one cycle.
type CycleReport struct {
	// Skipped is set when another worker held the lock.
	Skipped bool
	Rows    map[string]int64
	Failed  map[string]error
}

// Err combines the job failures.
func (r *CycleReport) Err() error {
	if r == nil {
		return nil
	}
	var err error
	for name, jobErr := range r.Failed {
		err = multierr.Append(err, fmt.Errorf("%s: %w", name, jobErr))
	}
	return err
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := params.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: timeout,
		now:        time.Now,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.logg.Error(ctx, "maintenance cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle runs the named jobs, or all of them, under the lock. A failing job
// does not stop the ones after it; the error return covers the lock only.
func (s *Service) RunCycle(ctx context.Context, names ...string) (*CycleReport, error) {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return nil, err
	}
	release, err := s.lock.Acquire(ctx)
	if errors.Is(err, ErrLockHeld) {
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "cron lock held elsewhere; skipping cycle")
		return &CycleReport{Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	report := &CycleReport{Rows: map[string]int64{}, Failed: map[string]error{}}
	for _, job := range jobs {
		rows, err := s.runJob(ctx, job)
		report.Rows[job.Name()] = rows
		if err != nil {
			report.Failed[job.Name()] = err
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":   len(jobs),
		"failed": len(report.Failed),
	}), "maintenance cycle complete")
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) (int64, error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	jobCtx = s.logg.WithField(jobCtx, "job", job.Name())

	start := s.now()
	rows, err := job.Run(jobCtx)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveRun(job.Name(), elapsed, rows, err)

	logCtx := s.logg.WithFields(jobCtx, map[string]any{
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if err != nil {
		s.logg.Error(logCtx, "job failed", err)
		return rows, err
	}
	s.logg.Info(logCtx, "job done")
	return rows, nil
}
