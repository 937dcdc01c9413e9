package api

import (
	"context"

	"gavel/internal/hearings"
	"gavel/internal/orchestrator"
	"gavel/internal/stagerun"
)

// PipelineService exposes orchestrator control and run history as API DTOs.
type PipelineService struct {
	manager *orchestrator.Manager
	store   *hearings.Store
	runner  *stagerun.Runner
}

// NewPipelineService constructs a PipelineService.
func NewPipelineService(manager *orchestrator.Manager, store *hearings.Store, runner *stagerun.Runner) *PipelineService {
	if manager == nil || store == nil {
		return nil
	}
	return &PipelineService{manager: manager, store: store, runner: runner}
}

// Status reports orchestrator state and worker readiness.
func (s *PipelineService) Status(ctx context.Context) PipelineStatus {
	if s == nil || s.manager == nil {
		return PipelineStatus{}
	}
	summary := s.manager.Status()
	if s.runner == nil {
		return FromSummary(summary, nil)
	}
	return FromSummary(summary, s.runner.Health(ctx))
}

// Start launches a pipeline run with the requested overrides.
func (s *PipelineService) Start(ctx context.Context, req StartPipelineRequest) (*RunSummary, error) {
	run, err := s.manager.Start(ctx, orchestrator.StartOptions{
		States:       req.States,
		MaxCost:      req.MaxCost,
		MaxHearings:  req.MaxHearings,
		OnlyStage:    req.OnlyStage,
		HearingIDs:   req.HearingIDs,
		DiscoverOnly: req.DiscoverOnly,
	})
	if err != nil {
		return nil, err
	}
	summary := FromRun(run)
	return &summary, nil
}

// Stop requests a graceful stop of the active run.
func (s *PipelineService) Stop() error {
	return s.manager.Stop()
}

// Pause suspends the active run between hearings.
func (s *PipelineService) Pause() error {
	return s.manager.Pause()
}

// Resume continues a paused run.
func (s *PipelineService) Resume() error {
	return s.manager.Resume()
}

// Busy reports whether a run is in flight.
func (s *PipelineService) Busy() bool {
	if s == nil || s.manager == nil {
		return false
	}
	return s.manager.Busy()
}

// Runs returns run history, most recent first.
func (s *PipelineService) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}

// DescribeRun fetches a single run record.
func (s *PipelineService) DescribeRun(ctx context.Context, id int64) (*RunSummary, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil || run == nil {
		return nil, err
	}
	summary := FromRun(run)
	return &summary, nil
}
