package hearings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gavel/internal/workers"
)

const runColumns = `id, started_at, finished_at, status, reason,
sources_checked, discovered, processed, error_count, cost_by_stage`

func scanRun(scanner interface{ Scan(...any) error }) (*PipelineRun, error) {
	var (
		run         PipelineRun
		startedAt   string
		finishedAt  sql.NullString
		status      string
		reason      sql.NullString
		costByStage sql.NullString
	)

	err := scanner.Scan(
		&run.ID, &startedAt, &finishedAt, &status, &reason,
		&run.SourcesChecked, &run.Discovered, &run.Processed, &run.ErrorCount, &costByStage,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.Reason = reason.String
	if parsed, parseErr := parseTimeString(startedAt); parseErr == nil {
		run.StartedAt = parsed
	}
	if finishedAt.Valid {
		if parsed, parseErr := parseTimeString(finishedAt.String); parseErr == nil {
			run.FinishedAt = &parsed
		}
	}
	run.CostByStage = make(map[string]float64)
	if costByStage.Valid && costByStage.String != "" {
		if jsonErr := json.Unmarshal([]byte(costByStage.String), &run.CostByStage); jsonErr != nil {
			return nil, fmt.Errorf("decode run %d cost breakdown: %w", run.ID, jsonErr)
		}
	}

	return &run, nil
}

// StartRun records the beginning of a pipeline run. Only one run may be
// active at a time; starting while another is running is a conflict.
func (s *Store) StartRun(ctx context.Context) (*PipelineRun, error) {
	ctx = ensureContext(ctx)

	active, err := s.ActiveRun(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: run %d is already active", workers.ErrConflict, active.ID)
	}

	startedAt := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		"INSERT INTO pipeline_runs (started_at, status) VALUES (?, ?)",
		startedAt.Format(time.RFC3339Nano), string(RunRunning))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("start run: last insert id: %w", err)
	}

	return &PipelineRun{
		ID:          id,
		StartedAt:   startedAt,
		Status:      RunRunning,
		CostByStage: make(map[string]float64),
	}, nil
}

// ActiveRun returns the currently running pipeline run, or nil.
func (s *Store) ActiveRun(ctx context.Context) (*PipelineRun, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM pipeline_runs WHERE status = ? ORDER BY id DESC LIMIT 1", runColumns),
		string(RunRunning))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	return run, nil
}

// GetRun returns the run with the given id, or nil when absent.
func (s *Store) GetRun(ctx context.Context, id int64) (*PipelineRun, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM pipeline_runs WHERE id = ?", runColumns), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return run, nil
}

// UpdateRunProgress persists the counters of an in-flight run.
func (s *Store) UpdateRunProgress(ctx context.Context, run *PipelineRun) error {
	if run == nil {
		return fmt.Errorf("%w: run is nil", workers.ErrValidation)
	}
	ctx = ensureContext(ctx)

	costJSON, err := json.Marshal(run.CostByStage)
	if err != nil {
		return fmt.Errorf("encode run %d cost breakdown: %w", run.ID, err)
	}

	res, err := s.execWithRetry(ctx, `
UPDATE pipeline_runs
SET sources_checked = ?, discovered = ?, processed = ?, error_count = ?, cost_by_stage = ?
WHERE id = ?`,
		run.SourcesChecked, run.Discovered, run.Processed, run.ErrorCount, string(costJSON), run.ID)
	if err != nil {
		return fmt.Errorf("update run %d: %w", run.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %d: rows affected: %w", run.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %d", workers.ErrNotFound, run.ID)
	}
	return nil
}

// FinishRun closes out a run with its final status and reason.
func (s *Store) FinishRun(ctx context.Context, run *PipelineRun, status RunStatus, reason string) error {
	if run == nil {
		return fmt.Errorf("%w: run is nil", workers.ErrValidation)
	}
	ctx = ensureContext(ctx)

	costJSON, err := json.Marshal(run.CostByStage)
	if err != nil {
		return fmt.Errorf("encode run %d cost breakdown: %w", run.ID, err)
	}
	finishedAt := time.Now().UTC()

	res, err := s.execWithRetry(ctx, `
UPDATE pipeline_runs
SET finished_at = ?, status = ?, reason = ?,
    sources_checked = ?, discovered = ?, processed = ?, error_count = ?, cost_by_stage = ?
WHERE id = ? AND status = ?`,
		finishedAt.Format(time.RFC3339Nano), string(status), nullableString(reason),
		run.SourcesChecked, run.Discovered, run.Processed, run.ErrorCount, string(costJSON),
		run.ID, string(RunRunning))
	if err != nil {
		return fmt.Errorf("finish run %d: %w", run.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %d: rows affected: %w", run.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %d is not active", workers.ErrConflict, run.ID)
	}

	run.Status = status
	run.Reason = reason
	run.FinishedAt = &finishedAt
	return nil
}

// ListRuns returns run history, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*PipelineRun, error) {
	ctx = ensureContext(ctx)

	query := fmt.Sprintf("SELECT %s FROM pipeline_runs ORDER BY id DESC", runColumns)
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*PipelineRun
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FailOrphanedRuns marks runs left active by an unclean shutdown as failed.
// Called once during daemon startup.
func (s *Store) FailOrphanedRuns(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
UPDATE pipeline_runs SET status = ?, reason = ?, finished_at = ?
WHERE status = ?`,
		string(RunFailed), "interrupted by shutdown", now, string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("fail orphaned runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail orphaned runs: rows affected: %w", err)
	}
	return int(affected), nil
}
