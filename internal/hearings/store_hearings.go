package hearings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gavel/internal/workers"
)

const hearingColumns = `id, state_code, title, hearing_date, source_url, stage, status,
retry_count, last_error, cost, prev_status, created_at, updated_at`

func scanHearing(scanner interface{ Scan(...any) error }) (*Hearing, error) {
	var (
		h           Hearing
		title       sql.NullString
		hearingDate sql.NullString
		lastError   sql.NullString
		prevStatus  sql.NullString
		stage       string
		status      string
		createdAt   string
		updatedAt   string
	)

	err := scanner.Scan(
		&h.ID, &h.StateCode, &title, &hearingDate, &h.SourceURL, &stage, &status,
		&h.RetryCount, &lastError, &h.Cost, &prevStatus, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Title = title.String
	h.HearingDate = hearingDate.String
	h.LastError = lastError.String
	h.Stage = Stage(stage)
	h.Status = Status(status)
	h.PrevStatus = Status(prevStatus.String)

	if parsed, parseErr := parseTimeString(createdAt); parseErr == nil {
		h.CreatedAt = parsed
	}
	if parsed, parseErr := parseTimeString(updatedAt); parseErr == nil {
		h.UpdatedAt = parsed
	}

	return &h, nil
}

// NewHearing inserts a newly discovered hearing. Re-discovery of an already
// tracked source URL returns the existing record with created=false.
func (s *Store) NewHearing(ctx context.Context, stateCode, title, hearingDate, sourceURL string) (*Hearing, bool, error) {
	ctx = ensureContext(ctx)
	stateCode = strings.ToUpper(strings.TrimSpace(stateCode))
	sourceURL = strings.TrimSpace(sourceURL)
	if stateCode == "" {
		return nil, false, fmt.Errorf("%w: state code is required", workers.ErrValidation)
	}
	if sourceURL == "" {
		return nil, false, fmt.Errorf("%w: source url is required", workers.ErrValidation)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
INSERT INTO hearings (state_code, title, hearing_date, source_url, stage, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_url) DO NOTHING`,
		stateCode, nullableString(title), nullableString(hearingDate), sourceURL,
		string(StageDiscovered), string(StatusPending), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert hearing: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert hearing: rows affected: %w", err)
	}

	existing, err := s.FindBySourceURL(ctx, sourceURL)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("hearing for %s vanished after insert", sourceURL)
	}
	return existing, affected > 0, nil
}

// GetByID returns the hearing with the given id, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Hearing, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM hearings WHERE id = ?", hearingColumns), id)
	hearing, err := scanHearing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get hearing %d: %w", id, err)
	}
	return hearing, nil
}

// FindBySourceURL returns the hearing tracked for sourceURL, or nil.
func (s *Store) FindBySourceURL(ctx context.Context, sourceURL string) (*Hearing, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM hearings WHERE source_url = ?", hearingColumns), sourceURL)
	hearing, err := scanHearing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find hearing by source url: %w", err)
	}
	return hearing, nil
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Stage     Stage
	Status    Status
	StateCode string
	Limit     int
}

// List returns hearings matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Hearing, error) {
	ctx = ensureContext(ctx)

	query := fmt.Sprintf("SELECT %s FROM hearings", hearingColumns)
	var (
		clauses []string
		args    []any
	)
	if filter.Stage != "" {
		clauses = append(clauses, "stage = ?")
		args = append(args, string(filter.Stage))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.StateCode != "" {
		clauses = append(clauses, "state_code = ?")
		args = append(args, strings.ToUpper(filter.StateCode))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hearings: %w", err)
	}
	defer rows.Close()

	var hearings []*Hearing
	for rows.Next() {
		hearing, scanErr := scanHearing(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan hearing: %w", scanErr)
		}
		hearings = append(hearings, hearing)
	}
	return hearings, rows.Err()
}

// EligibleForStage selects hearings ready to run the worker that consumes
// fromStage, oldest first so earlier discoveries progress before new ones.
func (s *Store) EligibleForStage(ctx context.Context, fromStage Stage, limit int) ([]*Hearing, error) {
	ctx = ensureContext(ctx)

	query := fmt.Sprintf(
		"SELECT %s FROM hearings WHERE stage = ? AND status = ? ORDER BY id ASC", hearingColumns)
	args := []any{string(fromStage), string(StatusPending)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select eligible hearings: %w", err)
	}
	defer rows.Close()

	var hearings []*Hearing
	for rows.Next() {
		hearing, scanErr := scanHearing(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan hearing: %w", scanErr)
		}
		hearings = append(hearings, hearing)
	}
	return hearings, rows.Err()
}

// Update persists the mutable fields of a hearing.
func (s *Store) Update(ctx context.Context, hearing *Hearing) error {
	if hearing == nil {
		return fmt.Errorf("%w: hearing is nil", workers.ErrValidation)
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	res, err := s.execWithRetry(ctx, `
UPDATE hearings
SET state_code = ?, title = ?, hearing_date = ?, stage = ?, status = ?,
    retry_count = ?, last_error = ?, cost = ?, prev_status = ?, updated_at = ?
WHERE id = ?`,
		hearing.StateCode, nullableString(hearing.Title), nullableString(hearing.HearingDate),
		string(hearing.Stage), string(hearing.Status),
		hearing.RetryCount, nullableString(hearing.LastError), hearing.Cost,
		nullableString(string(hearing.PrevStatus)), now.Format(time.RFC3339Nano),
		hearing.ID)
	if err != nil {
		return fmt.Errorf("update hearing %d: %w", hearing.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update hearing %d: rows affected: %w", hearing.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: hearing %d", workers.ErrNotFound, hearing.ID)
	}
	hearing.UpdatedAt = now
	return nil
}

// Health aggregates hearing counts by lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM hearings GROUP BY status")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health counts: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return HealthSummary{}, fmt.Errorf("scan health count: %w", scanErr)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending += count
		case StatusRunning:
			summary.Running += count
		case StatusError:
			summary.Errored += count
		case StatusSkipped:
			summary.Skipped += count
		case StatusComplete:
			summary.Complete += count
		}
	}
	return summary, rows.Err()
}

// StageCounts returns hearing counts keyed by stage.
func (s *Store) StageCounts(ctx context.Context) (map[Stage]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT stage, COUNT(1) FROM hearings GROUP BY stage")
	if err != nil {
		return nil, fmt.Errorf("stage counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Stage]int)
	for rows.Next() {
		var (
			stage string
			count int
		)
		if scanErr := rows.Scan(&stage, &count); scanErr != nil {
			return nil, fmt.Errorf("scan stage count: %w", scanErr)
		}
		counts[Stage(stage)] = count
	}
	return counts, rows.Err()
}
