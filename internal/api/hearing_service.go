package api

import (
	"context"
	"fmt"

	"gavel/internal/hearings"
	"gavel/internal/workers"
)

// HearingFilter narrows hearing listings by string-valued selectors.
type HearingFilter struct {
	Stage     string
	Status    string
	StateCode string
	Limit     int
}

// HearingService exposes hearing queries and lifecycle transitions as API DTOs.
type HearingService struct {
	store *hearings.Store
}

// NewHearingService constructs a HearingService around the provided store.
func NewHearingService(store *hearings.Store) *HearingService {
	if store == nil {
		return nil
	}
	return &HearingService{store: store}
}

// List returns hearings matching the filter.
func (s *HearingService) List(ctx context.Context, filter HearingFilter) ([]HearingItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	storeFilter := hearings.ListFilter{StateCode: filter.StateCode, Limit: filter.Limit}
	if filter.Stage != "" {
		parsed, ok := hearings.ParseStage(filter.Stage)
		if !ok {
			return nil, fmt.Errorf("%w: unknown stage %q", workers.ErrValidation, filter.Stage)
		}
		storeFilter.Stage = parsed
	}
	if filter.Status != "" {
		parsed, ok := hearings.ParseStatus(filter.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", workers.ErrValidation, filter.Status)
		}
		storeFilter.Status = parsed
	}
	items, err := s.store.List(ctx, storeFilter)
	if err != nil {
		return nil, err
	}
	return FromHearings(items), nil
}

// Describe fetches a single hearing.
func (s *HearingService) Describe(ctx context.Context, id int64) (*HearingItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	hearing, err := s.store.GetByID(ctx, id)
	if err != nil || hearing == nil {
		return nil, err
	}
	dto := FromHearing(hearing)
	return &dto, nil
}

// Retry resets an errored hearing back to pending.
func (s *HearingService) Retry(ctx context.Context, id int64) error {
	return s.store.Retry(ctx, id)
}

// RetryAll resets every errored hearing and reports how many changed.
func (s *HearingService) RetryAll(ctx context.Context) (int, error) {
	return s.store.RetryAll(ctx)
}

// Skip excludes a hearing from further processing.
func (s *HearingService) Skip(ctx context.Context, id int64) error {
	return s.store.Skip(ctx, id)
}

// Restore returns a skipped hearing to its pre-skip state.
func (s *HearingService) Restore(ctx context.Context, id int64) error {
	return s.store.Restore(ctx, id)
}

// Health returns aggregate hearing counts by status and stage.
func (s *HearingService) Health(ctx context.Context) (HearingHealth, error) {
	if s == nil || s.store == nil {
		return HearingHealth{}, nil
	}
	summary, err := s.store.Health(ctx)
	if err != nil {
		return HearingHealth{}, err
	}
	stages, err := s.store.StageCounts(ctx)
	if err != nil {
		return HearingHealth{}, err
	}
	return FromHealth(summary, stages), nil
}
