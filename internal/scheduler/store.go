package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gavel/internal/workers"
)

// Store persists schedules on the shared database handle.
type Store struct {
	db *sql.DB
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const scheduleColumns = `id, name, trigger_type, trigger_value, target, enabled, max_cost,
max_hearings, state_scope, last_run_at, next_run_at, last_run_status, created_at, updated_at`

func scanSchedule(scanner interface{ Scan(...any) error }) (*Schedule, error) {
	var (
		s             Schedule
		trigger       string
		target        string
		enabled       int
		stateScope    sql.NullString
		lastRunAt     sql.NullString
		nextRunAt     sql.NullString
		lastRunStatus sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := scanner.Scan(
		&s.ID, &s.Name, &trigger, &s.Value, &target, &enabled, &s.MaxCost,
		&s.MaxHearings, &stateScope, &lastRunAt, &nextRunAt, &lastRunStatus, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Trigger = TriggerType(trigger)
	s.Target = Target(target)
	s.Enabled = enabled != 0
	s.LastRunStatus = lastRunStatus.String
	if stateScope.Valid && stateScope.String != "" {
		s.StateScope = strings.Split(stateScope.String, ",")
	}
	if lastRunAt.Valid {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, lastRunAt.String); parseErr == nil {
			s.LastRunAt = &parsed
		}
	}
	if nextRunAt.Valid {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, nextRunAt.String); parseErr == nil {
			s.NextRunAt = &parsed
		}
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		s.CreatedAt = parsed
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		s.UpdatedAt = parsed
	}

	return &s, nil
}

// Create validates and inserts a schedule, seeding its first firing time.
func (st *Store) Create(ctx context.Context, schedule *Schedule) (*Schedule, error) {
	if schedule == nil {
		return nil, fmt.Errorf("%w: schedule is nil", workers.ErrValidation)
	}
	if schedule.Target == "" {
		schedule.Target = TargetPipeline
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	existing, err := st.GetByName(ctx, schedule.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: schedule %q already exists", workers.ErrConflict, schedule.Name)
	}

	now := time.Now().UTC()
	next, err := schedule.NextAfter(now)
	if err != nil {
		return nil, err
	}
	schedule.NextRunAt = &next

	res, err := st.db.ExecContext(ctx, `
INSERT INTO schedules (name, trigger_type, trigger_value, target, enabled, max_cost,
max_hearings, state_scope, next_run_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.Name, string(schedule.Trigger), schedule.Value, string(schedule.Target),
		boolToInt(schedule.Enabled), schedule.MaxCost, schedule.MaxHearings,
		nullableScope(schedule.StateScope), next.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert schedule: last insert id: %w", err)
	}

	schedule.ID = id
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	return schedule, nil
}

// GetByID returns the schedule with the given id, or nil when absent.
func (st *Store) GetByID(ctx context.Context, id int64) (*Schedule, error) {
	row := st.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM schedules WHERE id = ?", scheduleColumns), id)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %d: %w", id, err)
	}
	return schedule, nil
}

// GetByName returns the schedule with the given name, or nil when absent.
func (st *Store) GetByName(ctx context.Context, name string) (*Schedule, error) {
	row := st.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM schedules WHERE name = ?", scheduleColumns), strings.TrimSpace(name))
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %q: %w", name, err)
	}
	return schedule, nil
}

// List returns every schedule, by name.
func (st *Store) List(ctx context.Context) ([]*Schedule, error) {
	rows, err := st.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM schedules ORDER BY name ASC", scheduleColumns))
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		schedule, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan schedule: %w", scanErr)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// Due returns the enabled schedules whose firing time has arrived.
func (st *Store) Due(ctx context.Context, now time.Time) ([]*Schedule, error) {
	rows, err := st.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM schedules WHERE enabled = 1 AND next_run_at <= ? ORDER BY next_run_at ASC", scheduleColumns),
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		schedule, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan schedule: %w", scanErr)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// Update validates and persists schedule changes, recomputing the next
// firing time from the new trigger.
func (st *Store) Update(ctx context.Context, schedule *Schedule) error {
	if schedule == nil {
		return fmt.Errorf("%w: schedule is nil", workers.ErrValidation)
	}
	if err := schedule.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	next, err := schedule.NextAfter(now)
	if err != nil {
		return err
	}
	schedule.NextRunAt = &next

	res, err := st.db.ExecContext(ctx, `
UPDATE schedules
SET name = ?, trigger_type = ?, trigger_value = ?, target = ?, enabled = ?,
    max_cost = ?, max_hearings = ?, state_scope = ?, next_run_at = ?, updated_at = ?
WHERE id = ?`,
		schedule.Name, string(schedule.Trigger), schedule.Value, string(schedule.Target),
		boolToInt(schedule.Enabled), schedule.MaxCost, schedule.MaxHearings,
		nullableScope(schedule.StateScope), next.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano), schedule.ID)
	if err != nil {
		return fmt.Errorf("update schedule %d: %w", schedule.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule %d: rows affected: %w", schedule.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", workers.ErrNotFound, schedule.ID)
	}
	return nil
}

// SetEnabled toggles a schedule without touching its trigger.
func (st *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := st.db.ExecContext(ctx,
		"UPDATE schedules SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), now, id)
	if err != nil {
		return fmt.Errorf("toggle schedule %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle schedule %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", workers.ErrNotFound, id)
	}
	return nil
}

// Delete removes a schedule.
func (st *Store) Delete(ctx context.Context, id int64) error {
	res, err := st.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete schedule %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", workers.ErrNotFound, id)
	}
	return nil
}

// RecordFiring stamps the outcome of a firing and schedules the next one.
func (st *Store) RecordFiring(ctx context.Context, schedule *Schedule, at time.Time, outcome string) error {
	next, err := schedule.NextAfter(at)
	if err != nil {
		return err
	}

	res, err := st.db.ExecContext(ctx, `
UPDATE schedules SET last_run_at = ?, next_run_at = ?, last_run_status = ?, updated_at = ?
WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), next.UTC().Format(time.RFC3339Nano), outcome,
		time.Now().UTC().Format(time.RFC3339Nano), schedule.ID)
	if err != nil {
		return fmt.Errorf("record firing for schedule %d: %w", schedule.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record firing for schedule %d: rows affected: %w", schedule.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", workers.ErrNotFound, schedule.ID)
	}

	schedule.LastRunAt = &at
	schedule.NextRunAt = &next
	schedule.LastRunStatus = outcome
	return nil
}

// Reschedule moves a schedule's next firing to follow the given reference
// time. Interval schedules use it so the gap is measured from the run's
// completion rather than from the firing instant.
func (st *Store) Reschedule(ctx context.Context, schedule *Schedule, ref time.Time) error {
	next, err := schedule.NextAfter(ref)
	if err != nil {
		return err
	}

	res, err := st.db.ExecContext(ctx,
		"UPDATE schedules SET next_run_at = ?, updated_at = ? WHERE id = ?",
		next.UTC().Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano), schedule.ID)
	if err != nil {
		return fmt.Errorf("reschedule %d: %w", schedule.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reschedule %d: rows affected: %w", schedule.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schedule %d", workers.ErrNotFound, schedule.ID)
	}

	schedule.NextRunAt = &next
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableScope(scope []string) any {
	if len(scope) == 0 {
		return nil
	}
	return strings.Join(scope, ",")
}
