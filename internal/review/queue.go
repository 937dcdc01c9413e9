package review

import (
	"context"
	"fmt"
	"log/slog"

	"gavel/internal/hearings"
	"gavel/internal/logging"
	"gavel/internal/matching"
	"gavel/internal/registry"
	"gavel/internal/workers"
)

// Queue applies reviewer actions to candidates and advances hearings once
// their candidates are all resolved.
type Queue struct {
	store    *Store
	hearings *hearings.Store
	registry *registry.Store
	policy   *matching.Policy
	logger   *slog.Logger
}

// NewQueue wires the review queue over the shared stores. The policy supplies
// the default confidence cutoff for bulk approvals.
func NewQueue(store *Store, hearingStore *hearings.Store, registryStore *registry.Store, policy *matching.Policy, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		store:    store,
		hearings: hearingStore,
		registry: registryStore,
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "review"),
	}
}

// Store exposes the underlying candidate store for read paths.
func (q *Queue) Store() *Store {
	return q.store
}

// Act applies one reviewer action to a pending candidate and returns the
// resolved record. Terminal candidates return a conflict.
func (q *Queue) Act(ctx context.Context, candidateID int64, action Action, args ActionArgs) (*Candidate, error) {
	candidate, err := q.store.GetByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: candidate %d", workers.ErrNotFound, candidateID)
	}
	if candidate.IsTerminal() {
		return nil, fmt.Errorf("%w: candidate %d is already %s", workers.ErrConflict, candidateID, candidate.Status)
	}

	switch action {
	case ActionApprove:
		err = q.approve(ctx, candidate)
	case ActionAcceptSuggestion, ActionLink:
		err = q.link(ctx, candidate, args.EntityID)
	case ActionReject:
		err = q.store.resolve(ctx, candidate.ID, CandidateRejected, 0, "", "")
	case ActionCorrect:
		err = q.correct(ctx, candidate, args)
	default:
		return nil, fmt.Errorf("%w: unknown review action %q", workers.ErrValidation, action)
	}
	if err != nil {
		return nil, err
	}

	if err := q.maybeAdvance(ctx, candidate.HearingID); err != nil {
		return nil, err
	}

	resolved, err := q.store.GetByID(ctx, candidate.ID)
	if err != nil {
		return nil, err
	}
	q.logger.InfoContext(ctx, "candidate resolved",
		logging.Int64("candidate_id", candidate.ID),
		logging.Int64(logging.FieldHearingID, candidate.HearingID),
		logging.String("action", string(action)),
		logging.String("status", string(resolved.Status)))
	return resolved, nil
}

// approve accepts the match as scored. Exact and fuzzy candidates link to
// the top suggestion; unmatched candidates register a new canonical entity
// from the normalized mention.
func (q *Queue) approve(ctx context.Context, candidate *Candidate) error {
	if top := candidate.TopSuggestion(); top != nil {
		return q.link(ctx, candidate, top.EntityID)
	}

	identifier := candidate.Normalized
	if identifier == "" {
		identifier = matching.Normalize(candidate.EntityType, candidate.RawText)
	}
	if identifier == "" {
		return fmt.Errorf("%w: candidate %d has no usable identifier", workers.ErrValidation, candidate.ID)
	}
	entity, created, err := q.registry.GetOrCreate(ctx, candidate.EntityType, identifier, matching.DisplayName(candidate.RawText))
	if err != nil {
		return err
	}
	if created {
		q.logger.InfoContext(ctx, "registered new entity",
			logging.Int64("entity_id", entity.ID),
			logging.String("entity_type", string(entity.Type)),
			logging.String("identifier", entity.Identifier))
	}
	if err := q.store.resolve(ctx, candidate.ID, CandidateApproved, entity.ID, "", ""); err != nil {
		return err
	}
	return q.registry.IncrementMention(ctx, entity.ID)
}

// link resolves the candidate against an explicit registry entity.
func (q *Queue) link(ctx context.Context, candidate *Candidate, entityID int64) error {
	if entityID == 0 {
		return fmt.Errorf("%w: an entity id is required", workers.ErrValidation)
	}
	entity, err := q.registry.GetByID(ctx, entityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("%w: entity %d", workers.ErrNotFound, entityID)
	}
	if entity.Type != candidate.EntityType {
		return fmt.Errorf("%w: entity %d is a %s, candidate is a %s",
			workers.ErrValidation, entityID, entity.Type, candidate.EntityType)
	}
	if err := q.store.resolve(ctx, candidate.ID, CandidateApproved, entity.ID, "", ""); err != nil {
		return err
	}
	return q.registry.IncrementMention(ctx, entity.ID)
}

// correct replaces the mention text and links or creates the matching
// canonical entity in one step.
func (q *Queue) correct(ctx context.Context, candidate *Candidate, args ActionArgs) error {
	corrected := args.CorrectedText
	if corrected == "" {
		return fmt.Errorf("%w: corrected text is required", workers.ErrValidation)
	}
	identifier := matching.Normalize(candidate.EntityType, corrected)
	if identifier == "" {
		return fmt.Errorf("%w: corrected text %q normalizes to nothing", workers.ErrValidation, corrected)
	}

	displayName := args.DisplayName
	if displayName == "" {
		displayName = matching.DisplayName(corrected)
	}
	entity, created, err := q.registry.GetOrCreate(ctx, candidate.EntityType, identifier, displayName)
	if err != nil {
		return err
	}
	if created {
		q.logger.InfoContext(ctx, "registered new entity",
			logging.Int64("entity_id", entity.ID),
			logging.String("entity_type", string(entity.Type)),
			logging.String("identifier", entity.Identifier))
	}
	if err := q.store.resolve(ctx, candidate.ID, CandidateCorrected, entity.ID, corrected, identifier); err != nil {
		return err
	}
	return q.registry.IncrementMention(ctx, entity.ID)
}

// BulkAction names a batch review operation.
type BulkAction string

const (
	BulkApproveAll            BulkAction = "approve_all"
	BulkApproveHighConfidence BulkAction = "approve_high_confidence"
	BulkRejectAll             BulkAction = "reject_all"
)

// ParseBulkAction converts a string into a known BulkAction.
func ParseBulkAction(value string) (BulkAction, bool) {
	switch BulkAction(value) {
	case BulkApproveAll, BulkApproveHighConfidence, BulkRejectAll:
		return BulkAction(value), true
	}
	return "", false
}

// Bulk applies a batch action to one hearing's pending candidates, optionally
// narrowed to an entity type. It reports how many candidates were resolved.
// A high-confidence approval with no explicit threshold uses the configured
// auto-accept cutoff.
func (q *Queue) Bulk(ctx context.Context, hearingID int64, action BulkAction, entityType registry.EntityType, threshold int) (int, error) {
	if _, ok := ParseBulkAction(string(action)); !ok {
		return 0, fmt.Errorf("%w: unknown bulk action %q", workers.ErrValidation, action)
	}
	if hearingID <= 0 {
		return 0, fmt.Errorf("%w: a hearing id is required", workers.ErrValidation)
	}
	if action == BulkApproveHighConfidence && threshold <= 0 {
		if q.policy == nil {
			return 0, fmt.Errorf("%w: a confidence threshold is required", workers.ErrValidation)
		}
		threshold = q.policy.AutoAcceptThreshold()
	}

	pending, err := q.store.ListPending(ctx, hearingID, entityType, 0)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, candidate := range pending {
		switch action {
		case BulkApproveAll:
			err = q.approve(ctx, candidate)
		case BulkApproveHighConfidence:
			if candidate.Confidence < threshold {
				continue
			}
			err = q.approve(ctx, candidate)
		case BulkRejectAll:
			err = q.store.resolve(ctx, candidate.ID, CandidateRejected, 0, "", "")
		}
		if err != nil {
			return resolved, err
		}
		resolved++
	}
	if resolved > 0 {
		if err := q.maybeAdvance(ctx, hearingID); err != nil {
			return resolved, err
		}
	}
	q.logger.InfoContext(ctx, "bulk review applied",
		logging.Int64(logging.FieldHearingID, hearingID),
		logging.String("action", string(action)),
		logging.Int("resolved", resolved))
	return resolved, nil
}

// MaybeAdvance re-evaluates the gate for a hearing. Exposed for the stage
// runner, which calls it after analysis and extraction in case every
// candidate auto-resolved.
func (q *Queue) MaybeAdvance(ctx context.Context, hearingID int64) error {
	return q.maybeAdvance(ctx, hearingID)
}

// maybeAdvance moves a hearing past its review checkpoint once no pending
// candidates remain. Applies after analysis (into review) and after
// extraction (into complete).
func (q *Queue) maybeAdvance(ctx context.Context, hearingID int64) error {
	hearing, err := q.hearings.GetByID(ctx, hearingID)
	if err != nil {
		return err
	}
	if hearing == nil || hearing.Status != hearings.StatusPending {
		return nil
	}
	if hearing.Stage != hearings.StageAnalyzed && hearing.Stage != hearings.StageExtracted {
		return nil
	}

	count, err := q.store.PendingCount(ctx, hearingID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hearing.Stage = hearing.Stage.Next()
	if hearing.Stage == hearings.StageComplete {
		hearing.Status = hearings.StatusComplete
	}
	if err := q.hearings.Update(ctx, hearing); err != nil {
		return err
	}
	q.logger.InfoContext(ctx, "hearing advanced past review gate",
		logging.Int64(logging.FieldHearingID, hearingID),
		logging.String(logging.FieldStage, string(hearing.Stage)))
	return nil
}
