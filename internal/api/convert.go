package api

import (
	"time"

	"gavel/internal/hearings"
	"gavel/internal/matching"
	"gavel/internal/orchestrator"
	"gavel/internal/review"
	"gavel/internal/scheduler"
	"gavel/internal/stage"
)

// FromHearing converts a hearing record to its API representation.
func FromHearing(hearing *hearings.Hearing) HearingItem {
	if hearing == nil {
		return HearingItem{}
	}
	item := HearingItem{
		ID:          hearing.ID,
		StateCode:   hearing.StateCode,
		Title:       hearing.Title,
		HearingDate: hearing.HearingDate,
		SourceURL:   hearing.SourceURL,
		Stage:       string(hearing.Stage),
		Status:      string(hearing.Status),
		RetryCount:  hearing.RetryCount,
		LastError:   hearing.LastError,
		Cost:        hearing.Cost,
	}
	item.CreatedAt = formatTime(hearing.CreatedAt)
	item.UpdatedAt = formatTime(hearing.UpdatedAt)
	return item
}

// FromHearings converts a slice of hearing records into API DTOs.
func FromHearings(items []*hearings.Hearing) []HearingItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]HearingItem, 0, len(items))
	for _, hearing := range items {
		out = append(out, FromHearing(hearing))
	}
	return out
}

// FromRun converts a pipeline run record to its API representation.
func FromRun(run *hearings.PipelineRun) RunSummary {
	if run == nil {
		return RunSummary{}
	}
	summary := RunSummary{
		ID:             run.ID,
		StartedAt:      formatTime(run.StartedAt),
		Status:         string(run.Status),
		Reason:         run.Reason,
		SourcesChecked: run.SourcesChecked,
		Discovered:     run.Discovered,
		Processed:      run.Processed,
		ErrorCount:     run.ErrorCount,
		TotalCost:      run.TotalCost(),
	}
	if run.FinishedAt != nil {
		summary.FinishedAt = formatTime(*run.FinishedAt)
	}
	if len(run.CostByStage) > 0 {
		summary.CostByStage = make(map[string]float64, len(run.CostByStage))
		for name, cost := range run.CostByStage {
			summary.CostByStage[name] = cost
		}
	}
	return summary
}

// FromRuns converts pipeline run history into API DTOs.
func FromRuns(runs []*hearings.PipelineRun) []RunSummary {
	if len(runs) == 0 {
		return nil
	}
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromSummary converts orchestrator state plus worker readiness into an API payload.
func FromSummary(summary orchestrator.Summary, health []stage.Health) PipelineStatus {
	status := PipelineStatus{
		Status:    string(summary.Status),
		LastError: summary.LastError,
	}
	if summary.Run != nil {
		run := FromRun(summary.Run)
		status.Run = &run
	}
	if len(health) > 0 {
		status.StageHealth = make([]StageHealth, 0, len(health))
		for _, h := range health {
			status.StageHealth = append(status.StageHealth, StageHealth{
				Name:     h.Name,
				Endpoint: h.Endpoint,
				Ready:    h.Ready,
				Detail:   h.Detail,
			})
		}
	}
	return status
}

// FromHealth converts hearing health counts plus per-stage totals.
func FromHealth(summary hearings.HealthSummary, stages map[hearings.Stage]int) HearingHealth {
	health := HearingHealth{
		Total:    summary.Total,
		Pending:  summary.Pending,
		Running:  summary.Running,
		Errored:  summary.Errored,
		Skipped:  summary.Skipped,
		Complete: summary.Complete,
	}
	if len(stages) > 0 {
		health.ByStage = make(map[string]int, len(stages))
		for name, count := range stages {
			health.ByStage[string(name)] = count
		}
	}
	return health
}

// FromCandidate converts a review candidate to its API representation.
func FromCandidate(candidate *review.Candidate) ReviewCandidate {
	if candidate == nil {
		return ReviewCandidate{}
	}
	dto := ReviewCandidate{
		ID:             candidate.ID,
		HearingID:      candidate.HearingID,
		EntityType:     string(candidate.EntityType),
		RawText:        candidate.RawText,
		Normalized:     candidate.Normalized,
		Classification: string(candidate.Classification),
		Confidence:     candidate.Confidence,
		ReviewReason:   candidate.ReviewReason,
		Status:         string(candidate.Status),
		EntityID:       candidate.EntityID,
		CreatedAt:      formatTime(candidate.CreatedAt),
		UpdatedAt:      formatTime(candidate.UpdatedAt),
	}
	dto.Suggestions = fromSuggestions(candidate.Suggestions)
	return dto
}

// FromCandidates converts review candidates into API DTOs.
func FromCandidates(candidates []*review.Candidate) []ReviewCandidate {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]ReviewCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, FromCandidate(candidate))
	}
	return out
}

func fromSuggestions(suggestions []matching.Suggestion) []Suggestion {
	if len(suggestions) == 0 {
		return nil
	}
	out := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, Suggestion{
			EntityID:    s.EntityID,
			DisplayName: s.DisplayName,
			Score:       s.Score,
		})
	}
	return out
}

// FromPendingSummary converts per-hearing pending counts to an API payload.
func FromPendingSummary(summary *review.PendingSummary) ReviewHearingSummary {
	if summary == nil {
		return ReviewHearingSummary{}
	}
	dto := ReviewHearingSummary{
		HearingID:    summary.HearingID,
		HearingTitle: summary.HearingTitle,
		StateCode:    summary.StateCode,
		Total:        summary.Total,
	}
	if len(summary.CountsByType) > 0 {
		dto.CountsByType = make(map[string]int, len(summary.CountsByType))
		for entityType, count := range summary.CountsByType {
			dto.CountsByType[string(entityType)] = count
		}
	}
	return dto
}

// FromPendingSummaries converts pending review summaries into API DTOs.
func FromPendingSummaries(summaries []*review.PendingSummary) []ReviewHearingSummary {
	if len(summaries) == 0 {
		return nil
	}
	out := make([]ReviewHearingSummary, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, FromPendingSummary(summary))
	}
	return out
}

// FromSchedule converts a schedule record to its API representation.
func FromSchedule(schedule *scheduler.Schedule) ScheduleItem {
	if schedule == nil {
		return ScheduleItem{}
	}
	item := ScheduleItem{
		ID:            schedule.ID,
		Name:          schedule.Name,
		Trigger:       string(schedule.Trigger),
		Value:         schedule.Value,
		Target:        string(schedule.Target),
		Enabled:       schedule.Enabled,
		MaxCost:       schedule.MaxCost,
		MaxHearings:   schedule.MaxHearings,
		StateScope:    append([]string(nil), schedule.StateScope...),
		LastRunStatus: schedule.LastRunStatus,
		CreatedAt:     formatTime(schedule.CreatedAt),
		UpdatedAt:     formatTime(schedule.UpdatedAt),
	}
	if schedule.LastRunAt != nil {
		item.LastRunAt = formatTime(*schedule.LastRunAt)
	}
	if schedule.NextRunAt != nil {
		item.NextRunAt = formatTime(*schedule.NextRunAt)
	}
	return item
}

// FromSchedules converts schedule records into API DTOs.
func FromSchedules(schedules []*scheduler.Schedule) []ScheduleItem {
	if len(schedules) == 0 {
		return nil
	}
	out := make([]ScheduleItem, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, FromSchedule(schedule))
	}
	return out
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
