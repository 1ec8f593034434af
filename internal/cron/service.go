package cron

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run; it must stay below the lock TTL.
	JobTimeout time.Duration
}

// Service runs the registered jobs once per interval while holding the
// cluster-wide lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.JobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	case params.Registry == nil:
		return nil, errors.New("registry required")
	}
	return &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   cmp.Or(max(params.Interval, 0), defaultInterval),
		jobTimeout: cmp.Or(max(params.JobTimeout, 0), defaultJobTimeout),
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns lock errors and the combined failures of the jobs it ran.
// A failing job never stops the jobs after it.
func (s *Service) runCycle(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("lock acquire: %w", err)
	case !held:
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "cron lock held elsewhere, cycle skipped")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	ctx = s.logg.WithField(ctx, "cycle_id", uuid.NewString())
	var failures error
	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			failures = multierr.Append(failures, err)
			break
		}
		failures = multierr.Append(failures, s.runJob(ctx, job))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(s.registry.Jobs()),
		"failed_jobs": len(multierr.Errors(failures)),
	}), "cron cycle finished")
	return failures
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	ctx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", name), s.jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
		took := time.Since(start)
		s.metrics.ObserveRun(name, took, err)
		logCtx := s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
		if err == nil {
			s.logg.Info(logCtx, "cron job finished")
			return
		}
		s.logg.Error(logCtx, "cron job failed", err)
		err = fmt.Errorf("%s: %w", name, err)
	}()
	return job.Run(ctx)
}
