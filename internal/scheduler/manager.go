package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gavel/internal/config"
	"gavel/internal/hearings"
	"gavel/internal/logging"
	"gavel/internal/orchestrator"
)

// Pipeline is the orchestrator surface the scheduler drives.
type Pipeline interface {
	Busy() bool
	Start(ctx context.Context, opts orchestrator.StartOptions) (*hearings.PipelineRun, error)
}

// Manager ticks over the stored schedules and fires due ones.
type Manager struct {
	cfg      *config.Config
	store    *Store
	pipeline Pipeline
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	// awaiting holds interval schedules whose run is still in flight; their
	// next firing is pushed back once the pipeline returns to idle.
	awaiting map[int64]struct{}
}

// NewManager constructs a stopped scheduler.
func NewManager(cfg *config.Config, store *Store, pipeline Pipeline, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		awaiting: make(map[int64]struct{}),
	}
}

// Start begins the background tick loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)

	interval := time.Duration(m.cfg.Scheduler.TickSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case now := <-ticker.C:
				if err := m.Tick(tickCtx, now); err != nil {
					m.logger.WarnContext(tickCtx, "scheduler tick failed", logging.Error(err))
				}
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Tick settles completed interval runs, then fires every schedule due at
// the given instant.
func (m *Manager) Tick(ctx context.Context, now time.Time) error {
	m.settleCompleted(ctx, now)
	due, err := m.store.Due(ctx, now)
	if err != nil {
		return err
	}
	for _, schedule := range due {
		m.fire(ctx, schedule, now)
	}
	return nil
}

// settleCompleted pushes back the next firing of interval schedules whose
// run has finished, so the interval is measured from completion rather than
// from the start of the run.
func (m *Manager) settleCompleted(ctx context.Context, now time.Time) {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.awaiting))
	for id := range m.awaiting {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	if len(ids) == 0 || m.pipeline.Busy() {
		return
	}

	for _, id := range ids {
		schedule, err := m.store.GetByID(ctx, id)
		if err == nil && schedule != nil {
			err = m.store.Reschedule(ctx, schedule, now)
		}
		if err != nil {
			m.logger.WarnContext(ctx, "failed to reschedule after completion",
				logging.Int64("schedule_id", id), logging.Error(err))
		}
		m.mu.Lock()
		delete(m.awaiting, id)
		m.mu.Unlock()
	}
}

// fire starts the schedule's target unless the orchestrator is busy, in
// which case the conflict is recorded as a skip. Schedules never queue.
func (m *Manager) fire(ctx context.Context, schedule *Schedule, now time.Time) {
	log := m.logger.With(
		logging.String("schedule", schedule.Name),
		logging.String("trigger", string(schedule.Trigger)))

	if m.pipeline.Busy() {
		if err := m.store.RecordFiring(ctx, schedule, now, OutcomeSkipped); err != nil {
			log.WarnContext(ctx, "failed to record skipped firing", logging.Error(err))
			return
		}
		log.InfoContext(ctx, "schedule skipped, pipeline busy")
		return
	}

	opts := orchestrator.StartOptions{
		States:       schedule.StateScope,
		MaxCost:      schedule.MaxCost,
		MaxHearings:  schedule.MaxHearings,
		DiscoverOnly: schedule.Target == TargetScraper,
	}
	outcome := OutcomeOK
	if _, err := m.pipeline.Start(ctx, opts); err != nil {
		outcome = OutcomeError
		log.WarnContext(ctx, "schedule failed to start pipeline", logging.Error(err))
	} else {
		log.InfoContext(ctx, "schedule fired")
		if schedule.Trigger == TriggerInterval {
			m.mu.Lock()
			m.awaiting[schedule.ID] = struct{}{}
			m.mu.Unlock()
		}
	}
	if err := m.store.RecordFiring(ctx, schedule, now, outcome); err != nil {
		log.WarnContext(ctx, "failed to record firing", logging.Error(err))
	}
}
