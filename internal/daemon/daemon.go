package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"gavel/internal/api"
	"gavel/internal/config"
	"gavel/internal/hearings"
	"gavel/internal/logging"
	"gavel/internal/orchestrator"
	"gavel/internal/review"
	"gavel/internal/scheduler"
	"gavel/internal/stagerun"
)

// Components bundles the subsystems the daemon coordinates.
type Components struct {
	Pipeline  *orchestrator.Manager
	Runner    *stagerun.Runner
	Review    *review.Queue
	Scheduler *scheduler.Manager
	Schedules *scheduler.Store
}

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *hearings.Store

	pipeline   *orchestrator.Manager
	runner     *stagerun.Runner
	schedTimer *scheduler.Manager

	hearingSvc  *api.HearingService
	reviewSvc   *api.ReviewService
	pipelineSvc *api.PipelineService
	scheduleSvc *api.ScheduleService

	lockPath string
	lock     *flock.Flock

	apiSrv *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *hearings.Store, logger *slog.Logger, parts Components) (*Daemon, error) {
	if cfg == nil || store == nil || parts.Pipeline == nil {
		return nil, errors.New("daemon requires config, store, and pipeline manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		pipeline:    parts.Pipeline,
		runner:      parts.Runner,
		schedTimer:  parts.Scheduler,
		hearingSvc:  api.NewHearingService(store),
		reviewSvc:   api.NewReviewService(parts.Review),
		pipelineSvc: api.NewPipelineService(parts.Pipeline, store, parts.Runner),
		scheduleSvc: api.NewScheduleService(parts.Schedules),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the instance lock, reclaims interrupted work, and launches
// the schedule timer and control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gavel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.reclaim(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("reclaim interrupted work: %w", err)
	}

	if d.schedTimer != nil && d.cfg.Scheduler.Enabled {
		d.schedTimer.Start(d.ctx)
	}
	if d.apiSrv != nil {
		if err := d.apiSrv.start(d.ctx); err != nil {
			if d.schedTimer != nil {
				d.schedTimer.Stop()
			}
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("gavel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// reclaim returns hearings stranded in running back to pending and closes
// any run record left open by a previous process.
func (d *Daemon) reclaim(ctx context.Context) error {
	reset, err := d.store.ResetStuckRunning(ctx)
	if err != nil {
		return err
	}
	orphaned, err := d.store.FailOrphanedRuns(ctx)
	if err != nil {
		return err
	}
	if reset > 0 || orphaned > 0 {
		d.logger.Info("reclaimed interrupted work",
			logging.Int("hearings_reset", reset),
			logging.Int("runs_closed", orphaned))
	}
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.schedTimer != nil {
		d.schedTimer.Stop()
	}
	if d.pipeline != nil && d.pipeline.Busy() {
		_ = d.pipeline.Stop()
		d.pipeline.Wait()
	}
	if d.apiSrv != nil {
		d.apiSrv.stop()
	}
	if d.running.Load() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
		d.logger.Info("gavel daemon stopped")
	}
	d.ctx = nil
	d.running.Store(false)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status aggregates daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Pipeline:     d.pipelineSvc.Status(ctx),
	}
	if health, err := d.hearingSvc.Health(ctx); err == nil {
		status.Hearings = health
	} else {
		d.logger.Warn("hearing health unavailable", logging.Error(err))
	}
	if pending, err := d.reviewSvc.PendingTotal(ctx); err == nil {
		status.PendingReview = pending
	}
	return status
}

// Hearings exposes the hearing service for control channels.
func (d *Daemon) Hearings() *api.HearingService { return d.hearingSvc }

// Review exposes the review service for control channels.
func (d *Daemon) Review() *api.ReviewService { return d.reviewSvc }

// Pipeline exposes the pipeline service for control channels.
func (d *Daemon) Pipeline() *api.PipelineService { return d.pipelineSvc }

// Schedules exposes the schedule service for control channels.
func (d *Daemon) Schedules() *api.ScheduleService { return d.scheduleSvc }
