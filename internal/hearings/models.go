package hearings

import (
	"strings"
	"time"
)

// Stage is the last processing checkpoint a hearing has passed.
type Stage string

const (
	StageDiscovered  Stage = "discovered"
	StageDownloaded  Stage = "downloaded"
	StageTranscribed Stage = "transcribed"
	StageAnalyzed    Stage = "analyzed"
	StageReview      Stage = "review"
	StageExtracted   Stage = "extracted"
	StageComplete    Stage = "complete"
)

// stageOrder fixes the forward progression of the pipeline.
var stageOrder = []Stage{
	StageDiscovered,
	StageDownloaded,
	StageTranscribed,
	StageAnalyzed,
	StageReview,
	StageExtracted,
	StageComplete,
}

var stageIndex = func() map[Stage]int {
	idx := make(map[Stage]int, len(stageOrder))
	for i, stage := range stageOrder {
		idx[stage] = i
	}
	return idx
}()

// Stages returns the ordered list of pipeline stages.
func Stages() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageIndex[normalized]
	return normalized, ok
}

// Next returns the stage following s, or s itself when s is terminal.
func (s Stage) Next() Stage {
	idx, ok := stageIndex[s]
	if !ok || idx == len(stageOrder)-1 {
		return s
	}
	return stageOrder[idx+1]
}

// Before reports whether s precedes other in the pipeline ordering.
func (s Stage) Before(other Stage) bool {
	a, okA := stageIndex[s]
	b, okB := stageIndex[other]
	return okA && okB && a < b
}

// Status is the operational state of a hearing within its current stage.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
	StatusSkipped  Status = "skipped"
	StatusComplete Status = "complete"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusError,
	StatusSkipped,
	StatusComplete,
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Hearing is one recorded proceeding tracked through the pipeline.
type Hearing struct {
	ID          int64
	StateCode   string
	Title       string
	HearingDate string
	SourceURL   string
	Stage       Stage
	Status      Status
	RetryCount  int
	LastError   string
	Cost        float64
	// PrevStatus records the status a skip replaced so Restore can undo it.
	PrevStatus Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsTerminal reports whether the hearing can no longer progress.
func (h *Hearing) IsTerminal() bool {
	if h == nil {
		return false
	}
	return h.Status == StatusSkipped || h.Status == StatusComplete || h.Stage == StageComplete
}

// Eligible reports whether the hearing can be selected for a stage run.
func (h *Hearing) Eligible() bool {
	if h == nil || h.IsTerminal() {
		return false
	}
	return h.Status == StatusPending
}

// SetFailed marks the hearing errored with the given message and bumps the
// cumulative retry counter.
func (h *Hearing) SetFailed(message string) {
	h.Status = StatusError
	h.LastError = message
	h.RetryCount++
}

// RunStatus is the lifecycle of a pipeline run record.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// Stop reasons recorded on gracefully stopped runs.
const (
	ReasonCostCeiling    = "cost ceiling reached"
	ReasonHearingCeiling = "hearing ceiling reached"
	ReasonStopRequested  = "stop requested"
)

// PipelineRun is one execution window of the orchestrator. Immutable once
// finished; kept for audit history.
type PipelineRun struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         RunStatus
	Reason         string
	SourcesChecked int
	Discovered     int
	Processed      int
	ErrorCount     int
	CostByStage    map[string]float64
}

// TotalCost sums the per-stage cost breakdown.
func (r *PipelineRun) TotalCost() float64 {
	var total float64
	for _, cost := range r.CostByStage {
		total += cost
	}
	return total
}

// HealthSummary describes aggregated hearing counts per key lifecycle states.
type HealthSummary struct {
	Total    int
	Pending  int
	Running  int
	Errored  int
	Skipped  int
	Complete int
}
