package hearings

import (
	"context"
	"fmt"
	"time"

	"gavel/internal/workers"
)

// Retry returns an errored hearing to pending at its current stage. The
// cumulative retry count is preserved.
func (s *Store) Retry(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
UPDATE hearings SET status = ?, last_error = NULL, updated_at = ?
WHERE id = ? AND status = ?`,
		string(StatusPending), now, id, string(StatusError))
	if err != nil {
		return fmt.Errorf("retry hearing %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry hearing %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		hearing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if hearing == nil {
			return fmt.Errorf("%w: hearing %d", workers.ErrNotFound, id)
		}
		return fmt.Errorf("%w: hearing %d is %s, only errored hearings can be retried",
			workers.ErrConflict, id, hearing.Status)
	}
	return nil
}

// RetryAll returns every errored hearing to pending and reports how many
// were reset.
func (s *Store) RetryAll(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
UPDATE hearings SET status = ?, last_error = NULL, updated_at = ?
WHERE status = ?`,
		string(StatusPending), now, string(StatusError))
	if err != nil {
		return 0, fmt.Errorf("retry all hearings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retry all hearings: rows affected: %w", err)
	}
	return int(affected), nil
}

// Skip excludes a hearing from processing. The stage is left untouched and
// the prior status is recorded so Restore can undo the skip.
func (s *Store) Skip(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	hearing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if hearing == nil {
		return fmt.Errorf("%w: hearing %d", workers.ErrNotFound, id)
	}
	if hearing.Status == StatusSkipped {
		return fmt.Errorf("%w: hearing %d is already skipped", workers.ErrConflict, id)
	}
	if hearing.Status == StatusRunning {
		return fmt.Errorf("%w: hearing %d is running, stop the pipeline first", workers.ErrConflict, id)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE hearings SET status = ?, prev_status = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		string(StatusSkipped), string(hearing.Status), now, id, string(hearing.Status))
	if err != nil {
		return fmt.Errorf("skip hearing %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("skip hearing %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: hearing %d changed status during skip", workers.ErrConflict, id)
	}
	return nil
}

// Restore undoes a skip, returning the hearing to the status it held before.
// Hearings skipped without a recorded prior status resume as pending.
func (s *Store) Restore(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	hearing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if hearing == nil {
		return fmt.Errorf("%w: hearing %d", workers.ErrNotFound, id)
	}
	if hearing.Status != StatusSkipped {
		return fmt.Errorf("%w: hearing %d is %s, only skipped hearings can be restored",
			workers.ErrConflict, id, hearing.Status)
	}

	restored := hearing.PrevStatus
	if restored == "" || restored == StatusSkipped || restored == StatusRunning {
		restored = StatusPending
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
UPDATE hearings SET status = ?, prev_status = NULL, updated_at = ?
WHERE id = ? AND status = ?`,
		string(restored), now, id, string(StatusSkipped))
	if err != nil {
		return fmt.Errorf("restore hearing %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restore hearing %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: hearing %d changed status during restore", workers.ErrConflict, id)
	}
	return nil
}

// ResetStuckRunning returns hearings left in the running status by an
// unclean shutdown to pending. Called once during daemon startup.
func (s *Store) ResetStuckRunning(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
UPDATE hearings SET status = ?, updated_at = ?
WHERE status = ?`,
		string(StatusPending), now, string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("reset stuck hearings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stuck hearings: rows affected: %w", err)
	}
	return int(affected), nil
}

// AddCost accumulates worker spend onto a hearing.
func (s *Store) AddCost(ctx context.Context, id int64, amount float64) error {
	if amount <= 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx,
		"UPDATE hearings SET cost = cost + ?, updated_at = ? WHERE id = ?",
		amount, now, id)
	if err != nil {
		return fmt.Errorf("add cost to hearing %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add cost to hearing %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: hearing %d", workers.ErrNotFound, id)
	}
	return nil
}
