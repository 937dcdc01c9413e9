package api

import (
	"context"
	"fmt"

	"gavel/internal/registry"
	"gavel/internal/review"
	"gavel/internal/workers"
)

// ReviewService exposes review queue operations returning API DTOs.
type ReviewService struct {
	queue *review.Queue
}

// NewReviewService constructs a ReviewService around the provided queue.
func NewReviewService(queue *review.Queue) *ReviewService {
	if queue == nil {
		return nil
	}
	return &ReviewService{queue: queue}
}

// Pending lists unresolved candidates, lowest confidence first.
func (s *ReviewService) Pending(ctx context.Context, entityType string, limit int) ([]ReviewCandidate, error) {
	if s == nil || s.queue == nil {
		return nil, nil
	}
	parsed, err := parseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	candidates, err := s.queue.Store().ListPending(ctx, 0, parsed, limit)
	if err != nil {
		return nil, err
	}
	return FromCandidates(candidates), nil
}

// Describe fetches a single candidate.
func (s *ReviewService) Describe(ctx context.Context, id int64) (*ReviewCandidate, error) {
	if s == nil || s.queue == nil {
		return nil, nil
	}
	candidate, err := s.queue.Store().GetByID(ctx, id)
	if err != nil || candidate == nil {
		return nil, err
	}
	dto := FromCandidate(candidate)
	return &dto, nil
}

// ByHearing lists every candidate attached to a hearing.
func (s *ReviewService) ByHearing(ctx context.Context, hearingID int64) ([]ReviewCandidate, error) {
	if s == nil || s.queue == nil {
		return nil, nil
	}
	candidates, err := s.queue.Store().ListByHearing(ctx, hearingID)
	if err != nil {
		return nil, err
	}
	return FromCandidates(candidates), nil
}

// Act applies a reviewer decision to one candidate.
func (s *ReviewService) Act(ctx context.Context, id int64, req ReviewActionRequest) (*ReviewCandidate, error) {
	action, ok := review.ParseAction(req.Action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown review action %q", workers.ErrValidation, req.Action)
	}
	candidate, err := s.queue.Act(ctx, id, action, review.ActionArgs{
		EntityID:      req.EntityID,
		CorrectedText: req.CorrectedText,
		DisplayName:   req.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	dto := FromCandidate(candidate)
	return &dto, nil
}

// Bulk applies a batch action to one hearing's pending candidates and reports
// how many it resolved.
func (s *ReviewService) Bulk(ctx context.Context, req ReviewBulkRequest) (int, error) {
	action, ok := review.ParseBulkAction(req.Action)
	if !ok {
		return 0, fmt.Errorf("%w: unknown bulk action %q", workers.ErrValidation, req.Action)
	}
	parsed, err := parseEntityType(req.EntityType)
	if err != nil {
		return 0, err
	}
	return s.queue.Bulk(ctx, req.HearingID, action, parsed, req.Threshold)
}

// Hearings summarizes hearings that still hold pending candidates.
func (s *ReviewService) Hearings(ctx context.Context) ([]ReviewHearingSummary, error) {
	if s == nil || s.queue == nil {
		return nil, nil
	}
	summaries, err := s.queue.Store().HearingsWithPending(ctx)
	if err != nil {
		return nil, err
	}
	return FromPendingSummaries(summaries), nil
}

// PendingTotal counts unresolved candidates across all hearings.
func (s *ReviewService) PendingTotal(ctx context.Context) (int, error) {
	if s == nil || s.queue == nil {
		return 0, nil
	}
	summaries, err := s.queue.Store().HearingsWithPending(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, summary := range summaries {
		total += summary.Total
	}
	return total, nil
}

func parseEntityType(value string) (registry.EntityType, error) {
	if value == "" {
		return "", nil
	}
	parsed, ok := registry.ParseEntityType(value)
	if !ok {
		return "", fmt.Errorf("%w: unknown entity type %q", workers.ErrValidation, value)
	}
	return parsed, nil
}
