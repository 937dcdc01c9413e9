package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gavel/internal/config"
	"gavel/internal/hearings"
	"gavel/internal/logging"
	"gavel/internal/stage"
	"gavel/internal/stagerun"
	"gavel/internal/workers"
)

// Status is the orchestrator's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopping Status = "stopping"
)

// StartOptions scope one pipeline run. Zero-valued ceilings fall back to the
// configured defaults; a zero default means no ceiling.
type StartOptions struct {
	// States limits discovery and stage sweeps to these state codes.
	States []string
	// MaxCost stops the run gracefully once total spend reaches it.
	MaxCost float64
	// MaxHearings stops the run gracefully after this many hearings.
	MaxHearings int
	// OnlyStage restricts the run to a single stage op and skips discovery.
	OnlyStage string
	// HearingIDs narrows a single-stage run to these hearings.
	HearingIDs []int64
	// DiscoverOnly runs discovery and skips the stage sweeps.
	DiscoverOnly bool
}

// Manager owns the single-flight pipeline run.
type Manager struct {
	cfg    *config.Config
	store  *hearings.Store
	runner *stagerun.Runner
	logger *slog.Logger

	mu      sync.RWMutex
	status  Status
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	paused  chan struct{}
	run     *hearings.PipelineRun
	lastErr error
}

// NewManager constructs an idle orchestrator.
func NewManager(cfg *config.Config, store *hearings.Store, runner *stagerun.Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "orchestrator"),
		status: StatusIdle,
	}
}

// Start launches a pipeline run in the background. Starting while a run is
// in flight is a conflict.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*hearings.PipelineRun, error) {
	var ops []stage.Op
	if opts.OnlyStage != "" {
		op, ok := stage.OpByName(opts.OnlyStage)
		if !ok {
			return nil, fmt.Errorf("%w: unknown stage %q", workers.ErrValidation, opts.OnlyStage)
		}
		ops = []stage.Op{op}
	} else {
		if len(opts.HearingIDs) > 0 {
			return nil, fmt.Errorf("%w: hearing ids require a single stage", workers.ErrValidation)
		}
		ops = stage.Ops()
	}

	m.mu.Lock()
	if m.status != StatusIdle {
		status := m.status
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: orchestrator is %s", workers.ErrConflict, status)
	}

	run, err := m.store.StartRun(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.status = StatusRunning
	m.cancel = cancel
	m.paused = nil
	m.run = run
	m.lastErr = nil
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.execute(workers.WithRunID(runCtx, run.ID), run, ops, opts)
	}()

	m.logger.InfoContext(ctx, "pipeline run started",
		logging.Int64(logging.FieldRunID, run.ID),
		logging.String("only_stage", opts.OnlyStage),
		logging.String("states", strings.Join(opts.States, ",")))
	return run, nil
}

// Stop requests a cooperative stop. The run closes out with a stop reason
// once the hearing in flight finishes.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusIdle {
		return fmt.Errorf("%w: no run in flight", workers.ErrConflict)
	}
	if m.status == StatusStopping {
		return nil
	}
	if m.paused != nil {
		close(m.paused)
		m.paused = nil
	}
	m.status = StatusStopping
	m.cancel()
	return nil
}

// Pause holds the run between hearings without closing it.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning {
		return fmt.Errorf("%w: orchestrator is %s, only a running pipeline can pause", workers.ErrConflict, m.status)
	}
	m.status = StatusPaused
	m.paused = make(chan struct{})
	return nil
}

// Resume releases a paused run.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusPaused {
		return fmt.Errorf("%w: orchestrator is %s, only a paused pipeline can resume", workers.ErrConflict, m.status)
	}
	m.status = StatusRunning
	close(m.paused)
	m.paused = nil
	return nil
}

// Wait blocks until the current run, if any, has closed out.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Busy reports whether a run is in flight.
func (m *Manager) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status != StatusIdle
}

// Summary is the orchestrator's externally visible state.
type Summary struct {
	Status    Status
	Run       *hearings.PipelineRun
	LastError string
}

// Status reports the current lifecycle state and active run snapshot.
func (m *Manager) Status() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{Status: m.status}
	if m.run != nil {
		copied := *m.run
		copied.CostByStage = make(map[string]float64, len(m.run.CostByStage))
		for k, v := range m.run.CostByStage {
			copied.CostByStage[k] = v
		}
		summary.Run = &copied
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	return summary
}

// updateRun applies a mutation to the active run under the state lock so a
// concurrent Status snapshot never observes a partial write.
func (m *Manager) updateRun(run *hearings.PipelineRun, fn func(*hearings.PipelineRun)) {
	m.mu.Lock()
	fn(run)
	m.mu.Unlock()
}

func (m *Manager) setIdle(err error) {
	m.mu.Lock()
	m.status = StatusIdle
	m.cancel = nil
	m.paused = nil
	m.lastErr = err
	m.mu.Unlock()
}

// holdWhilePaused blocks while the run is paused. It returns false when the
// run should stop instead of continuing.
func (m *Manager) holdWhilePaused(ctx context.Context) bool {
	for {
		m.mu.RLock()
		pause := m.paused
		m.mu.RUnlock()
		if pause == nil {
			return ctx.Err() == nil
		}
		select {
		case <-ctx.Done():
			return false
		case <-pause:
		}
	}
}
