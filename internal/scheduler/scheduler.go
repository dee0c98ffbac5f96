// Package scheduler triggers fetch cycles on a cron schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is the unit of work the scheduler triggers.
type Job func(ctx context.Context) error

// Config holds scheduler settings.
type Config struct {
	// CronSpec is the standard five-field cron expression, evaluated in UTC.
	CronSpec string

	// StartupRun triggers one run when the scheduler starts, before the
	// first cron tick.
	StartupRun bool

	// StartupDelay postpones the startup run, giving dependencies time to
	// come up.
	StartupDelay time.Duration
}

// Scheduler runs a job on a cron schedule, with an optional delayed run at
// startup. Runs never overlap: a tick that fires while the previous run is
// still in flight is skipped.
type Scheduler struct {
	cfg    Config
	job    Job
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	running bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a scheduler for the given job.
func New(cfg Config, job Job, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		job:    job,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the cron entry and begins scheduling. The ctx bounds every
// triggered run; cancelling it stops in-flight work.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if _, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		s.trigger(runCtx, "cron")
	}); err != nil {
		cancel()
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("cron_spec", s.cfg.CronSpec).
		Bool("startup_run", s.cfg.StartupRun).
		Msg("scheduler started")

	if s.cfg.StartupRun {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.startupRun(runCtx)
		}()
	}

	return nil
}

// Stop halts scheduling and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// startupRun waits out the configured delay, then triggers one run unless
// the context was cancelled first.
func (s *Scheduler) startupRun(ctx context.Context) {
	if s.cfg.StartupDelay > 0 {
		timer := time.NewTimer(s.cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	s.trigger(ctx, "startup")
}

// trigger runs the job once, skipping the tick if a run is already in flight.
func (s *Scheduler) trigger(ctx context.Context, cause string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Str("cause", cause).Msg("previous run still in flight, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}

	s.logger.Info().Str("cause", cause).Msg("triggering run")
	if err := s.job(ctx); err != nil {
		s.logger.Error().Err(err).Str("cause", cause).Msg("run failed")
	}
}
