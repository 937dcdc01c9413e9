package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gavel/internal/matching"
	"gavel/internal/registry"
	"gavel/internal/workers"
)

// Store persists entity candidates on the shared database handle.
type Store struct {
	db *sql.DB
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const candidateColumns = `id, hearing_id, entity_type, raw_text, normalized, classification,
confidence, suggestions_json, review_reason, status, entity_id, created_at, updated_at`

func scanCandidate(scanner interface{ Scan(...any) error }) (*Candidate, error) {
	var (
		c               Candidate
		entityType      string
		normalized      sql.NullString
		classification  string
		suggestionsJSON sql.NullString
		reviewReason    sql.NullString
		status          string
		entityID        sql.NullInt64
		createdAt       string
		updatedAt       string
	)

	err := scanner.Scan(
		&c.ID, &c.HearingID, &entityType, &c.RawText, &normalized, &classification,
		&c.Confidence, &suggestionsJSON, &reviewReason, &status, &entityID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.EntityType = registry.EntityType(entityType)
	c.Normalized = normalized.String
	c.Classification = matching.Classification(classification)
	c.ReviewReason = reviewReason.String
	c.Status = CandidateStatus(status)
	c.EntityID = entityID.Int64
	if suggestionsJSON.Valid && suggestionsJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(suggestionsJSON.String), &c.Suggestions); jsonErr != nil {
			return nil, fmt.Errorf("decode candidate %d suggestions: %w", c.ID, jsonErr)
		}
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		c.CreatedAt = parsed
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		c.UpdatedAt = parsed
	}

	return &c, nil
}

// Create inserts a candidate and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, candidate *Candidate) (*Candidate, error) {
	if candidate == nil {
		return nil, fmt.Errorf("%w: candidate is nil", workers.ErrValidation)
	}
	if candidate.HearingID == 0 {
		return nil, fmt.Errorf("%w: candidate requires a hearing", workers.ErrValidation)
	}
	if candidate.RawText == "" {
		return nil, fmt.Errorf("%w: candidate requires raw text", workers.ErrValidation)
	}
	if candidate.Status == "" {
		candidate.Status = CandidatePending
	}

	suggestionsJSON, err := json.Marshal(candidate.Suggestions)
	if err != nil {
		return nil, fmt.Errorf("encode candidate suggestions: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO entity_candidates
(hearing_id, entity_type, raw_text, normalized, classification, confidence,
suggestions_json, review_reason, status, entity_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		candidate.HearingID, string(candidate.EntityType), candidate.RawText,
		nullable(candidate.Normalized), string(candidate.Classification), candidate.Confidence,
		string(suggestionsJSON), nullable(candidate.ReviewReason), string(candidate.Status),
		nullableID(candidate.EntityID), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert candidate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert candidate: last insert id: %w", err)
	}

	candidate.ID = id
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	return candidate, nil
}

// GetByID returns the candidate with the given id, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM entity_candidates WHERE id = ?", candidateColumns), id)
	candidate, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate %d: %w", id, err)
	}
	return candidate, nil
}

// ListPending returns unresolved candidates, least confident first so the
// mentions most in need of human judgment surface at the top. A non-zero
// hearing id or entity type narrows the result.
func (s *Store) ListPending(ctx context.Context, hearingID int64, entityType registry.EntityType, limit int) ([]*Candidate, error) {
	query := fmt.Sprintf("SELECT %s FROM entity_candidates WHERE status = ?", candidateColumns)
	args := []any{string(CandidatePending)}
	if hearingID > 0 {
		query += " AND hearing_id = ?"
		args = append(args, hearingID)
	}
	if entityType != "" {
		query += " AND entity_type = ?"
		args = append(args, string(entityType))
	}
	query += " ORDER BY confidence ASC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// ListByHearing returns every candidate recorded for a hearing.
func (s *Store) ListByHearing(ctx context.Context, hearingID int64) ([]*Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM entity_candidates WHERE hearing_id = ? ORDER BY id ASC", candidateColumns),
		hearingID)
	if err != nil {
		return nil, fmt.Errorf("list candidates for hearing %d: %w", hearingID, err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// PendingCount returns the number of unresolved candidates for a hearing.
func (s *Store) PendingCount(ctx context.Context, hearingID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM entity_candidates WHERE hearing_id = ? AND status = ?",
		hearingID, string(CandidatePending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending count for hearing %d: %w", hearingID, err)
	}
	return count, nil
}

// HearingsWithPending summarizes unresolved candidates per hearing, grouped
// by entity type.
func (s *Store) HearingsWithPending(ctx context.Context) ([]*PendingSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.hearing_id, h.title, h.state_code, c.entity_type, COUNT(1)
FROM entity_candidates c
JOIN hearings h ON h.id = c.hearing_id
WHERE c.status = ?
GROUP BY c.hearing_id, c.entity_type
ORDER BY c.hearing_id ASC`, string(CandidatePending))
	if err != nil {
		return nil, fmt.Errorf("hearings with pending candidates: %w", err)
	}
	defer rows.Close()

	var (
		summaries []*PendingSummary
		byHearing = make(map[int64]*PendingSummary)
	)
	for rows.Next() {
		var (
			hearingID  int64
			title      sql.NullString
			stateCode  string
			entityType string
			count      int
		)
		if scanErr := rows.Scan(&hearingID, &title, &stateCode, &entityType, &count); scanErr != nil {
			return nil, fmt.Errorf("scan pending summary: %w", scanErr)
		}
		summary, ok := byHearing[hearingID]
		if !ok {
			summary = &PendingSummary{
				HearingID:    hearingID,
				HearingTitle: title.String,
				StateCode:    stateCode,
				CountsByType: make(map[registry.EntityType]int),
			}
			byHearing[hearingID] = summary
			summaries = append(summaries, summary)
		}
		summary.CountsByType[registry.EntityType(entityType)] = count
		summary.Total += count
	}
	return summaries, rows.Err()
}

// resolve moves a pending candidate to a terminal status. The update is
// conditional on the candidate still being pending, so concurrent reviewers
// cannot double-resolve; the loser gets a conflict.
func (s *Store) resolve(ctx context.Context, id int64, status CandidateStatus, entityID int64, rawText, normalized string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE entity_candidates
SET status = ?, entity_id = ?, raw_text = COALESCE(?, raw_text),
    normalized = COALESCE(?, normalized), updated_at = ?
WHERE id = ? AND status = ?`,
		string(status), nullableID(entityID), nullable(rawText), nullable(normalized), now,
		id, string(CandidatePending))
	if err != nil {
		return fmt.Errorf("resolve candidate %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve candidate %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		existing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("%w: candidate %d", workers.ErrNotFound, id)
		}
		return fmt.Errorf("%w: candidate %d is already %s", workers.ErrConflict, id, existing.Status)
	}
	return nil
}

func collectCandidates(rows *sql.Rows) ([]*Candidate, error) {
	var candidates []*Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
