package api

import (
	"context"
	"fmt"

	"gavel/internal/scheduler"
	"gavel/internal/workers"
)

// ScheduleService exposes schedule CRUD returning API DTOs.
type ScheduleService struct {
	store *scheduler.Store
}

// NewScheduleService constructs a ScheduleService around the provided store.
func NewScheduleService(store *scheduler.Store) *ScheduleService {
	if store == nil {
		return nil
	}
	return &ScheduleService{store: store}
}

// List returns every stored schedule.
func (s *ScheduleService) List(ctx context.Context) ([]ScheduleItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	schedules, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromSchedules(schedules), nil
}

// Describe fetches a single schedule.
func (s *ScheduleService) Describe(ctx context.Context, id int64) (*ScheduleItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	schedule, err := s.store.GetByID(ctx, id)
	if err != nil || schedule == nil {
		return nil, err
	}
	dto := FromSchedule(schedule)
	return &dto, nil
}

// Create validates and stores a new schedule. Schedules are enabled unless
// the request says otherwise.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (*ScheduleItem, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	schedule := &scheduler.Schedule{
		Name:        req.Name,
		Trigger:     scheduler.TriggerType(req.Trigger),
		Value:       req.Value,
		Target:      scheduler.Target(req.Target),
		Enabled:     enabled,
		MaxCost:     req.MaxCost,
		MaxHearings: req.MaxHearings,
		StateScope:  req.StateScope,
	}
	created, err := s.store.Create(ctx, schedule)
	if err != nil {
		return nil, err
	}
	dto := FromSchedule(created)
	return &dto, nil
}

// Update applies non-empty request fields to an existing schedule and
// recomputes its next firing time.
func (s *ScheduleService) Update(ctx context.Context, id int64, req ScheduleRequest) (*ScheduleItem, error) {
	schedule, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: schedule %d", workers.ErrNotFound, id)
	}
	if req.Name != "" {
		schedule.Name = req.Name
	}
	if req.Trigger != "" {
		schedule.Trigger = scheduler.TriggerType(req.Trigger)
	}
	if req.Value != "" {
		schedule.Value = req.Value
	}
	if req.Target != "" {
		schedule.Target = scheduler.Target(req.Target)
	}
	if req.Enabled != nil {
		schedule.Enabled = *req.Enabled
	}
	if req.MaxCost != 0 {
		schedule.MaxCost = req.MaxCost
	}
	if req.MaxHearings != 0 {
		schedule.MaxHearings = req.MaxHearings
	}
	if req.StateScope != nil {
		schedule.StateScope = req.StateScope
	}
	if err := s.store.Update(ctx, schedule); err != nil {
		return nil, err
	}
	dto := FromSchedule(schedule)
	return &dto, nil
}

// SetEnabled toggles a schedule.
func (s *ScheduleService) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.store.SetEnabled(ctx, id, enabled)
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}
