// internal/syncer/scheduler.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
)

const releaseTimeout = 5 * time.Second

// TickOutcome describes what a scheduler tick did.
type TickOutcome string

const (
	OutcomeLocked     TickOutcome = "locked"
	OutcomeDisabled   TickOutcome = "disabled"
	OutcomeTooSoon    TickOutcome = "too_soon"
	OutcomeNoUsername TickOutcome = "no_username"
	OutcomeSynced     TickOutcome = "synced"
	OutcomeFailed     TickOutcome = "failed"
)

// Defaults are the process-wide fallbacks for values missing from the stored config.
type Defaults struct {
	Username      string
	IncludeTopics bool
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	LockKey      string
	TickInterval time.Duration
	RunTimeout   time.Duration
	Defaults     Defaults
}

// Scheduler periodically imports new repositories as drafts. Only the replica holding
// the named lock runs an import, and runs are spaced by the configured interval.
type Scheduler struct {
	configs  ConfigStore
	importer DraftImporter
	locker   Locker
	logger   *slog.Logger
	opts     SchedulerOptions
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewScheduler creates a new Scheduler instance. It does not start the timer.
func NewScheduler(configs ConfigStore, importer DraftImporter, locker Locker, logger *slog.Logger, opts SchedulerOptions) *Scheduler {
	if opts.TickInterval < time.Second {
		opts.TickInterval = time.Minute
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 5 * time.Minute
	}
	return &Scheduler{
		configs:  configs,
		importer: importer,
		locker:   locker,
		logger:   logger.With("component", "scheduler"),
		opts:     opts,
		now:      time.Now,
	}
}

// Start begins ticking every TickInterval and runs one tick right away.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	// Ticks outlive cancellation of ctx; Stop ends the timer and in-flight ticks finish on their own.
	base := context.WithoutCancel(ctx)
	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id := c.Schedule(cron.Every(s.opts.TickInterval), cron.FuncJob(func() {
		tctx, cancel := context.WithTimeout(base, s.opts.RunTimeout)
		defer cancel()
		s.Tick(tctx)
	}))
	c.Start()
	s.cron = c

	s.logger.Info("Starting scheduler", "interval", s.opts.TickInterval.String(), "lock_key", s.opts.LockKey)

	// Run the first tick through the wrapped job so it cannot overlap with a scheduled one.
	job := c.Entry(id).WrappedJob
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()
}

// Stop cancels the timer and waits for an in-flight tick to finish.
// Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.cron = nil
	s.logger.Info("Scheduler stopped")
}

// Running reports whether the timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Tick runs one scheduling pass: take the lock, check the config and the interval,
// import, and record the result. Errors are logged, never returned.
func (s *Scheduler) Tick(ctx context.Context) TickOutcome {
	acquired, err := s.locker.TryAcquire(ctx, s.opts.LockKey)
	if err != nil {
		s.logger.Error("Failed to acquire sync lock", "error", err)
		return OutcomeFailed
	}
	if !acquired {
		s.logger.Debug("Sync lock held elsewhere, skipping tick")
		return OutcomeLocked
	}
	defer s.release(ctx)

	outcome, result, err := s.runLocked(ctx, false)
	if err != nil {
		s.logger.Error("Repository sync failed", "error", err)
		return OutcomeFailed
	}
	if outcome == OutcomeSynced {
		s.logger.Info("Repository sync finished", "created", result.Created, "failed", result.Failed)
	} else {
		s.logger.Debug("Tick skipped", "outcome", string(outcome))
	}
	return outcome
}

// RunNow runs an import immediately, ignoring the interval.
// It returns ErrSyncInProgress if another run holds the lock and ErrSyncDisabled if sync is switched off.
func (s *Scheduler) RunNow(ctx context.Context) (model.SyncResult, error) {
	acquired, err := s.locker.TryAcquire(ctx, s.opts.LockKey)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !acquired {
		return model.SyncResult{}, custom_errors.ErrSyncInProgress
	}
	defer s.release(ctx)

	outcome, result, err := s.runLocked(ctx, true)
	if err != nil {
		return model.SyncResult{}, err
	}
	switch outcome {
	case OutcomeDisabled:
		return model.SyncResult{}, custom_errors.ErrSyncDisabled
	case OutcomeNoUsername:
		return model.SyncResult{}, custom_errors.ErrNoUsername
	}
	s.logger.Info("Manual repository sync finished", "created", result.Created, "failed", result.Failed)
	return result, nil
}

// runLocked does the work of a run while the lock is held. skipInterval bypasses the interval check.
func (s *Scheduler) runLocked(ctx context.Context, skipInterval bool) (TickOutcome, model.SyncResult, error) {
	if err := s.configs.EnsureExists(ctx); err != nil {
		return OutcomeFailed, model.SyncResult{}, fmt.Errorf("ensuring sync config: %w", err)
	}

	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return OutcomeFailed, model.SyncResult{}, fmt.Errorf("reading sync config: %w", err)
	}

	if !cfg.Enabled {
		return OutcomeDisabled, model.SyncResult{}, nil
	}
	if !skipInterval && !s.due(cfg) {
		return OutcomeTooSoon, model.SyncResult{}, nil
	}

	username := s.opts.Defaults.Username
	if cfg.Username != nil && *cfg.Username != "" {
		username = *cfg.Username
	}
	if username == "" {
		return OutcomeNoUsername, model.SyncResult{}, nil
	}

	includeTopics := s.opts.Defaults.IncludeTopics
	if cfg.IncludeTopics != nil {
		includeTopics = *cfg.IncludeTopics
	}

	result, err := s.importer.SyncNewReposAsDraft(ctx, model.SyncRequest{
		Username:      username,
		IncludeTopics: includeTopics,
	})
	if err != nil {
		return OutcomeFailed, model.SyncResult{}, err
	}

	now := s.now()
	if _, err := s.configs.Upsert(ctx, model.SyncConfigPatch{LastRunAt: &now, LastResult: &result}); err != nil {
		return OutcomeFailed, result, fmt.Errorf("recording sync result: %w", err)
	}
	return OutcomeSynced, result, nil
}

// due reports whether at least IntervalMinutes have passed since the last run.
func (s *Scheduler) due(cfg model.SyncConfig) bool {
	if cfg.LastRunAt == nil {
		return true
	}
	elapsed := s.now().Sub(*cfg.LastRunAt)
	return elapsed.Minutes() >= float64(model.CoerceInterval(cfg.IntervalMinutes))
}

func (s *Scheduler) release(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.locker.Release(rctx, s.opts.LockKey); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Failed to release sync lock", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
