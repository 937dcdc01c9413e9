package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// HearingItem describes a tracked hearing in a transport-friendly format.
type HearingItem struct {
	ID          int64   `json:"id"`
	StateCode   string  `json:"stateCode"`
	Title       string  `json:"title"`
	HearingDate string  `json:"hearingDate,omitempty"`
	SourceURL   string  `json:"sourceUrl"`
	Stage       string  `json:"stage"`
	Status      string  `json:"status"`
	RetryCount  int     `json:"retryCount,omitempty"`
	LastError   string  `json:"lastError,omitempty"`
	Cost        float64 `json:"cost"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// HearingListResponse wraps a collection of hearings for API responses.
type HearingListResponse struct {
	Items []HearingItem `json:"items"`
}

// HearingItemResponse wraps a single hearing.
type HearingItemResponse struct {
	Item HearingItem `json:"item"`
}

// HearingHealth aggregates hearing counts by status and stage.
type HearingHealth struct {
	Total    int            `json:"total"`
	Pending  int            `json:"pending"`
	Running  int            `json:"running"`
	Errored  int            `json:"errored"`
	Skipped  int            `json:"skipped"`
	Complete int            `json:"complete"`
	ByStage  map[string]int `json:"byStage"`
}

// RunSummary describes one pipeline run in a transport-friendly format.
type RunSummary struct {
	ID             int64              `json:"id"`
	StartedAt      string             `json:"startedAt"`
	FinishedAt     string             `json:"finishedAt,omitempty"`
	Status         string             `json:"status"`
	Reason         string             `json:"reason,omitempty"`
	SourcesChecked int                `json:"sourcesChecked"`
	Discovered     int                `json:"discovered"`
	Processed      int                `json:"processed"`
	ErrorCount     int                `json:"errorCount"`
	CostByStage    map[string]float64 `json:"costByStage,omitempty"`
	TotalCost      float64            `json:"totalCost"`
}

// RunListResponse wraps pipeline run history.
type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

// StageHealth mirrors worker readiness reporting for pipeline stages.
type StageHealth struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint,omitempty"`
	Ready    bool   `json:"ready"`
	Detail   string `json:"detail,omitempty"`
}

// PipelineStatus summarizes orchestrator execution state.
type PipelineStatus struct {
	Status      string        `json:"status"`
	Run         *RunSummary   `json:"run,omitempty"`
	LastError   string        `json:"lastError,omitempty"`
	StageHealth []StageHealth `json:"stageHealth,omitempty"`
}

// StartPipelineRequest carries optional overrides for a pipeline run.
// HearingIDs only applies together with OnlyStage.
type StartPipelineRequest struct {
	States       []string `json:"states,omitempty"`
	MaxCost      float64  `json:"maxCost,omitempty"`
	MaxHearings  int      `json:"maxHearings,omitempty"`
	OnlyStage    string   `json:"onlyStage,omitempty"`
	HearingIDs   []int64  `json:"hearingIds,omitempty"`
	DiscoverOnly bool     `json:"discoverOnly,omitempty"`
}

// Suggestion is one ranked registry candidate for a review item.
type Suggestion struct {
	EntityID    int64  `json:"entityId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// ReviewCandidate describes an entity mention pending or past resolution.
type ReviewCandidate struct {
	ID             int64        `json:"id"`
	HearingID      int64        `json:"hearingId"`
	EntityType     string       `json:"entityType"`
	RawText        string       `json:"rawText"`
	Normalized     string       `json:"normalized"`
	Classification string       `json:"classification"`
	Confidence     int          `json:"confidence"`
	Suggestions    []Suggestion `json:"suggestions,omitempty"`
	ReviewReason   string       `json:"reviewReason,omitempty"`
	Status         string       `json:"status"`
	EntityID       int64        `json:"entityId,omitempty"`
	CreatedAt      string       `json:"createdAt,omitempty"`
	UpdatedAt      string       `json:"updatedAt,omitempty"`
}

// ReviewListResponse wraps review queue entries.
type ReviewListResponse struct {
	Candidates []ReviewCandidate `json:"candidates"`
}

// ReviewCandidateResponse wraps a single review queue entry.
type ReviewCandidateResponse struct {
	Candidate ReviewCandidate `json:"candidate"`
}

// ReviewActionRequest carries a reviewer decision for one candidate.
type ReviewActionRequest struct {
	Action        string `json:"action"`
	EntityID      int64  `json:"entityId,omitempty"`
	CorrectedText string `json:"correctedText,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
}

// ReviewBulkRequest carries a bulk reviewer decision for one hearing.
type ReviewBulkRequest struct {
	HearingID  int64  `json:"hearingId"`
	Action     string `json:"action"`
	EntityType string `json:"entityType,omitempty"`
	Threshold  int    `json:"threshold,omitempty"`
}

// ReviewBulkResponse reports how many candidates a bulk action resolved.
type ReviewBulkResponse struct {
	Resolved int `json:"resolved"`
}

// ReviewHearingSummary counts a hearing's unresolved candidates by entity type.
type ReviewHearingSummary struct {
	HearingID    int64          `json:"hearingId"`
	HearingTitle string         `json:"hearingTitle"`
	StateCode    string         `json:"stateCode"`
	CountsByType map[string]int `json:"countsByType"`
	Total        int            `json:"total"`
}

// ReviewHearingsResponse wraps per-hearing pending review summaries.
type ReviewHearingsResponse struct {
	Hearings []ReviewHearingSummary `json:"hearings"`
}

// ScheduleItem describes a stored automation timer.
type ScheduleItem struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Trigger       string   `json:"trigger"`
	Value         string   `json:"value"`
	Target        string   `json:"target"`
	Enabled       bool     `json:"enabled"`
	MaxCost       float64  `json:"maxCost,omitempty"`
	MaxHearings   int      `json:"maxHearings,omitempty"`
	StateScope    []string `json:"stateScope,omitempty"`
	LastRunAt     string   `json:"lastRunAt,omitempty"`
	NextRunAt     string   `json:"nextRunAt,omitempty"`
	LastRunStatus string   `json:"lastRunStatus,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

// ScheduleListResponse wraps stored schedules.
type ScheduleListResponse struct {
	Schedules []ScheduleItem `json:"schedules"`
}

// ScheduleItemResponse wraps a single schedule.
type ScheduleItemResponse struct {
	Schedule ScheduleItem `json:"schedule"`
}

// ScheduleRequest carries fields for creating or updating a schedule.
type ScheduleRequest struct {
	Name        string   `json:"name"`
	Trigger     string   `json:"trigger"`
	Value       string   `json:"value"`
	Target      string   `json:"target,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
	MaxCost     float64  `json:"maxCost,omitempty"`
	MaxHearings int      `json:"maxHearings,omitempty"`
	StateScope  []string `json:"stateScope,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath"`
	Pipeline      PipelineStatus `json:"pipeline"`
	Hearings      HearingHealth  `json:"hearings"`
	PendingReview int            `json:"pendingReview"`
}
