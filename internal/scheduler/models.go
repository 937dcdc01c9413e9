package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"gavel/internal/workers"
)

// TriggerType is how a schedule decides when to fire.
type TriggerType string

const (
	TriggerInterval TriggerType = "interval"
	TriggerDaily    TriggerType = "daily"
	TriggerCron     TriggerType = "cron"
)

// Target selects what a schedule starts.
type Target string

const (
	TargetPipeline Target = "pipeline"
	TargetScraper  Target = "scraper"
	TargetAll      Target = "all"
)

// Run outcomes recorded on last_run_status.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Schedule is one stored automation timer.
type Schedule struct {
	ID            int64
	Name          string
	Trigger       TriggerType
	Value         string
	Target        Target
	Enabled       bool
	MaxCost       float64
	MaxHearings   int
	StateScope    []string
	LastRunAt     *time.Time
	NextRunAt     *time.Time
	LastRunStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the trigger definition and target.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: schedule name is required", workers.ErrValidation)
	}
	switch s.Target {
	case TargetPipeline, TargetScraper, TargetAll:
	default:
		return fmt.Errorf("%w: unknown schedule target %q", workers.ErrValidation, s.Target)
	}
	if strings.TrimSpace(s.Value) == "" {
		return fmt.Errorf("%w: schedule trigger value is required", workers.ErrValidation)
	}

	switch s.Trigger {
	case TriggerInterval:
		interval, err := time.ParseDuration(s.Value)
		if err != nil {
			return fmt.Errorf("%w: bad interval %q: %v", workers.ErrValidation, s.Value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("%w: interval must be positive, got %q", workers.ErrValidation, s.Value)
		}
	case TriggerDaily:
		if _, err := time.Parse("15:04", s.Value); err != nil {
			return fmt.Errorf("%w: bad daily time %q, want HH:MM", workers.ErrValidation, s.Value)
		}
	case TriggerCron:
		if _, err := cron.ParseStandard(s.Value); err != nil {
			return fmt.Errorf("%w: bad cron expression %q: %v", workers.ErrValidation, s.Value, err)
		}
	default:
		return fmt.Errorf("%w: unknown trigger type %q", workers.ErrValidation, s.Trigger)
	}
	return nil
}

// NextAfter computes the next firing time strictly after the reference time.
// For interval triggers the reference is the last completion; a schedule
// that has never run fires one interval from now.
func (s *Schedule) NextAfter(ref time.Time) (time.Time, error) {
	switch s.Trigger {
	case TriggerInterval:
		interval, err := time.ParseDuration(s.Value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad interval %q: %v", workers.ErrValidation, s.Value, err)
		}
		return ref.Add(interval), nil
	case TriggerDaily:
		at, err := time.Parse("15:04", s.Value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad daily time %q", workers.ErrValidation, s.Value)
		}
		next := time.Date(ref.Year(), ref.Month(), ref.Day(), at.Hour(), at.Minute(), 0, 0, ref.Location())
		if !next.After(ref) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil
	case TriggerCron:
		expr, err := cron.ParseStandard(s.Value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad cron expression %q: %v", workers.ErrValidation, s.Value, err)
		}
		return expr.Next(ref), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown trigger type %q", workers.ErrValidation, s.Trigger)
}

// Due reports whether the schedule should fire now.
func (s *Schedule) Due(now time.Time) bool {
	return s.Enabled && s.NextRunAt != nil && !s.NextRunAt.After(now)
}

// ParseTriggerType converts a string into a known TriggerType.
func ParseTriggerType(value string) (TriggerType, bool) {
	normalized := TriggerType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TriggerInterval, TriggerDaily, TriggerCron:
		return normalized, true
	}
	return "", false
}

// ParseTarget converts a string into a known Target.
func ParseTarget(value string) (Target, bool) {
	normalized := Target(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TargetPipeline, TargetScraper, TargetAll:
		return normalized, true
	}
	return "", false
}
