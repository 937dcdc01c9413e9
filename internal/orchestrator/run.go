package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gavel/internal/hearings"
	"gavel/internal/logging"
	"gavel/internal/stage"
	"gavel/internal/stagerun"
	"gavel/internal/workers"
)

// ceilings are the effective limits for one run. A non-positive limit means
// no ceiling.
type ceilings struct {
	maxCost     float64
	maxHearings int
}

func (m *Manager) effectiveCeilings(opts StartOptions) ceilings {
	c := ceilings{maxCost: opts.MaxCost, maxHearings: opts.MaxHearings}
	if c.maxCost <= 0 {
		c.maxCost = m.cfg.Pipeline.MaxCost
	}
	if c.maxHearings <= 0 {
		c.maxHearings = m.cfg.Pipeline.MaxHearings
	}
	return c
}

// execute drives one run to completion, then returns the manager to idle.
func (m *Manager) execute(ctx context.Context, run *hearings.PipelineRun, ops []stage.Op, opts StartOptions) {
	limits := m.effectiveCeilings(opts)
	log := logging.WithContext(ctx, m.logger)

	status, reason, runErr := m.sweep(ctx, run, ops, opts, limits, log)

	// FinishRun rewrites the run record in place, so keep Status readers out
	// while it does.
	finishCtx := context.WithoutCancel(ctx)
	m.mu.Lock()
	err := m.store.FinishRun(finishCtx, run, status, reason)
	m.mu.Unlock()
	if err != nil {
		log.ErrorContext(finishCtx, "failed to close out run", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	log.InfoContext(finishCtx, "pipeline run finished",
		logging.Int64(logging.FieldRunID, run.ID),
		logging.String("status", string(status)),
		logging.String("reason", reason),
		logging.Int("processed", run.Processed),
		logging.Int("errors", run.ErrorCount),
		logging.Float64("cost", run.TotalCost()))
	m.setIdle(runErr)
}

// sweep performs discovery and the ordered stage sweeps, honoring pause,
// stop, and ceilings between hearings.
func (m *Manager) sweep(ctx context.Context, run *hearings.PipelineRun, ops []stage.Op, opts StartOptions, limits ceilings, log *slog.Logger) (hearings.RunStatus, string, error) {
	if opts.OnlyStage != "" {
		return m.runSingleStage(ctx, run, ops[0], opts, limits)
	}

	if stopped, reason := m.discover(ctx, run, opts); stopped {
		return hearings.RunStopped, reason, nil
	}
	if opts.DiscoverOnly {
		return hearings.RunCompleted, "", nil
	}

	// Processed counts distinct hearings, so a hearing moving through
	// several stages in one run only spends the ceiling once.
	processed := make(map[int64]struct{})

	for _, op := range ops {
		eligible, err := m.store.EligibleForStage(ctx, op.From, 0)
		if err != nil {
			return hearings.RunFailed, err.Error(), err
		}
		eligible = filterStates(eligible, opts.States)

		for _, hearing := range eligible {
			if !m.holdWhilePaused(ctx) {
				return hearings.RunStopped, hearings.ReasonStopRequested, nil
			}
			if limits.maxCost > 0 && run.TotalCost() >= limits.maxCost {
				return hearings.RunStopped, hearings.ReasonCostCeiling, nil
			}
			if _, seen := processed[hearing.ID]; !seen && limits.maxHearings > 0 && run.Processed >= limits.maxHearings {
				return hearings.RunStopped, hearings.ReasonHearingCeiling, nil
			}

			cost, procErr := m.runner.ProcessHearing(ctx, op, hearing)
			if procErr != nil {
				if errors.Is(procErr, context.Canceled) {
					m.updateRun(run, func(r *hearings.PipelineRun) {
						r.CostByStage[op.Name] += cost
					})
					return hearings.RunStopped, hearings.ReasonStopRequested, nil
				}
				m.updateRun(run, func(r *hearings.PipelineRun) {
					r.CostByStage[op.Name] += cost
					r.ErrorCount++
				})
				log.WarnContext(ctx, "hearing failed during sweep",
					logging.Int64(logging.FieldHearingID, hearing.ID),
					logging.String(logging.FieldStage, op.Name),
					logging.Error(procErr))
			} else {
				_, seen := processed[hearing.ID]
				processed[hearing.ID] = struct{}{}
				m.updateRun(run, func(r *hearings.PipelineRun) {
					r.CostByStage[op.Name] += cost
					if !seen {
						r.Processed++
					}
				})
			}

			if err := m.store.UpdateRunProgress(ctx, run); err != nil {
				return hearings.RunFailed, err.Error(), err
			}
		}

		select {
		case <-ctx.Done():
			return hearings.RunStopped, hearings.ReasonStopRequested, nil
		default:
		}
	}

	return hearings.RunCompleted, "", nil
}

// Gate errors that stop a single-stage sweep without failing the run.
var (
	errPauseInterrupted = errors.New("pause interrupted")
	errCostCeiling      = errors.New("cost ceiling reached")
	errHearingCeiling   = errors.New("hearing ceiling reached")
)

// runSingleStage delegates a single-stage run to the stage runner, optionally
// narrowed to an explicit hearing set. The gate mirrors sweep progress into
// the run record between hearings and enforces pause, stop, and ceilings.
func (m *Manager) runSingleStage(ctx context.Context, run *hearings.PipelineRun, op stage.Op, opts StartOptions, limits ceilings) (hearings.RunStatus, string, error) {
	var applied stagerun.Outcome
	mirror := func(progress stagerun.Outcome) {
		m.updateRun(run, func(r *hearings.PipelineRun) {
			r.CostByStage[op.Name] += progress.Cost - applied.Cost
			r.Processed += progress.Processed - applied.Processed
			r.ErrorCount += progress.Failed - applied.Failed
		})
		applied = progress
	}

	gate := func(progress stagerun.Outcome) error {
		mirror(progress)
		if err := m.store.UpdateRunProgress(ctx, run); err != nil {
			return err
		}
		if !m.holdWhilePaused(ctx) {
			return errPauseInterrupted
		}
		if limits.maxCost > 0 && run.TotalCost() >= limits.maxCost {
			return errCostCeiling
		}
		if limits.maxHearings > 0 && run.Processed >= limits.maxHearings {
			return errHearingCeiling
		}
		return nil
	}

	outcome, err := m.runner.RunStage(ctx, op, opts.HearingIDs, opts.States, 0, gate)
	if outcome != nil {
		mirror(*outcome)
		if progressErr := m.store.UpdateRunProgress(ctx, run); progressErr != nil {
			return hearings.RunFailed, progressErr.Error(), progressErr
		}
	}
	switch {
	case err == nil:
		return hearings.RunCompleted, "", nil
	case errors.Is(err, context.Canceled), errors.Is(err, errPauseInterrupted):
		return hearings.RunStopped, hearings.ReasonStopRequested, nil
	case errors.Is(err, errCostCeiling):
		return hearings.RunStopped, hearings.ReasonCostCeiling, nil
	case errors.Is(err, errHearingCeiling):
		return hearings.RunStopped, hearings.ReasonHearingCeiling, nil
	}
	return hearings.RunFailed, err.Error(), err
}

// discover runs the discovery worker across the scoped states and records
// new hearings on the run. A discovery failure fails only discovery; stage
// sweeps still run over the existing backlog.
func (m *Manager) discover(ctx context.Context, run *hearings.PipelineRun, opts StartOptions) (stopped bool, reason string) {
	states := opts.States
	if len(states) == 0 {
		states = []string{""}
	}

	sources, created, cost, err := m.runner.Discover(ctx, states)
	m.updateRun(run, func(r *hearings.PipelineRun) {
		r.SourcesChecked += sources
		r.Discovered += created
		r.CostByStage[stage.OpDiscover] += cost
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true, hearings.ReasonStopRequested
		}
		m.updateRun(run, func(r *hearings.PipelineRun) { r.ErrorCount++ })
		m.logger.WarnContext(ctx, "discovery failed",
			logging.Int64(logging.FieldRunID, run.ID),
			logging.Error(err),
			logging.Bool("retryable", workers.IsRetryable(err)))
	}
	if err := m.store.UpdateRunProgress(ctx, run); err != nil {
		m.logger.WarnContext(ctx, "failed to persist run progress", logging.Error(err))
	}
	return false, ""
}

func filterStates(eligible []*hearings.Hearing, states []string) []*hearings.Hearing {
	if len(states) == 0 {
		return eligible
	}
	allowed := make(map[string]struct{}, len(states))
	for _, state := range states {
		allowed[strings.ToUpper(strings.TrimSpace(state))] = struct{}{}
	}
	filtered := eligible[:0]
	for _, hearing := range eligible {
		if _, ok := allowed[hearing.StateCode]; ok {
			filtered = append(filtered, hearing)
		}
	}
	return filtered
}
