package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gavel/internal/api"
)

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func formatCost(value float64) string {
	if value == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", value)
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

func buildHearingRows(items []api.HearingItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.StateCode,
			truncate(item.Title, 48),
			item.Stage,
			formatStatusLabel(item.Status),
			formatCost(item.Cost),
			formatDisplayTime(item.UpdatedAt),
		})
	}
	return rows
}

func buildReviewRows(candidates []api.ReviewCandidate) [][]string {
	rows := make([][]string, 0, len(candidates))
	for _, candidate := range candidates {
		suggestion := "-"
		if len(candidate.Suggestions) > 0 {
			top := candidate.Suggestions[0]
			suggestion = fmt.Sprintf("%s (%d)", top.DisplayName, top.Score)
		}
		rows = append(rows, []string{
			strconv.FormatInt(candidate.ID, 10),
			strconv.FormatInt(candidate.HearingID, 10),
			candidate.EntityType,
			truncate(candidate.RawText, 36),
			strconv.Itoa(candidate.Confidence),
			candidate.Classification,
			truncate(suggestion, 40),
		})
	}
	return rows
}

func buildRunRows(runs []api.RunSummary) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		reason := run.Reason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			formatDisplayTime(run.StartedAt),
			formatDisplayTime(run.FinishedAt),
			formatStatusLabel(run.Status),
			strconv.Itoa(run.Processed),
			strconv.Itoa(run.ErrorCount),
			formatCost(run.TotalCost),
			reason,
		})
	}
	return rows
}

func buildScheduleRows(schedules []api.ScheduleItem) [][]string {
	rows := make([][]string, 0, len(schedules))
	for _, schedule := range schedules {
		enabled := "no"
		if schedule.Enabled {
			enabled = "yes"
		}
		scope := strings.Join(schedule.StateScope, ",")
		if scope == "" {
			scope = "all"
		}
		rows = append(rows, []string{
			strconv.FormatInt(schedule.ID, 10),
			schedule.Name,
			fmt.Sprintf("%s %s", schedule.Trigger, schedule.Value),
			schedule.Target,
			enabled,
			scope,
			formatDisplayTime(schedule.NextRunAt),
			schedule.LastRunStatus,
		})
	}
	return rows
}

func buildStageCountRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(counts[key])})
	}
	return rows
}
