package ipc

import "gavel/internal/api"

// HearingItem mirrors the HTTP API hearing DTO for internal IPC callers.
type HearingItem = api.HearingItem

// RunSummary mirrors the HTTP API run DTO.
type RunSummary = api.RunSummary

// ReviewCandidate mirrors the HTTP API review DTO.
type ReviewCandidate = api.ReviewCandidate

// ScheduleItem mirrors the HTTP API schedule DTO.
type ScheduleItem = api.ScheduleItem

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// PipelineStartRequest launches a pipeline run with optional overrides.
type PipelineStartRequest struct {
	Options api.StartPipelineRequest `json:"options"`
}

// PipelineStartResponse reports the run that was started.
type PipelineStartResponse struct {
	Started bool        `json:"started"`
	Run     *RunSummary `json:"run,omitempty"`
	Message string      `json:"message,omitempty"`
}

// PipelineControlRequest targets the active pipeline run.
type PipelineControlRequest struct{}

// PipelineControlResponse reports a stop/pause/resume outcome.
type PipelineControlResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// HearingListRequest filters hearing listings.
type HearingListRequest struct {
	Stage  string `json:"stage,omitempty"`
	Status string `json:"status,omitempty"`
	State  string `json:"state,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// HearingListResponse contains hearing entries.
type HearingListResponse struct {
	Items []HearingItem `json:"items"`
}

// HearingRequest addresses a single hearing by id.
type HearingRequest struct {
	ID int64 `json:"id"`
}

// HearingResponse contains a single hearing entry.
type HearingResponse struct {
	Item HearingItem `json:"item"`
}

// HearingRetryAllRequest resets every errored hearing.
type HearingRetryAllRequest struct{}

// HearingRetryAllResponse reports how many hearings were reset.
type HearingRetryAllResponse struct {
	Updated int `json:"updated"`
}

// RunListRequest bounds run history.
type RunListRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RunListResponse contains pipeline run history.
type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

// ReviewListRequest filters the pending review queue.
type ReviewListRequest struct {
	EntityType string `json:"entity_type,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ReviewListResponse contains pending candidates.
type ReviewListResponse struct {
	Candidates []ReviewCandidate `json:"candidates"`
}

// ReviewDescribeRequest fetches one candidate by id.
type ReviewDescribeRequest struct {
	ID int64 `json:"id"`
}

// ReviewDescribeResponse contains a single candidate.
type ReviewDescribeResponse struct {
	Candidate ReviewCandidate `json:"candidate"`
}

// ReviewActRequest applies a reviewer decision to one candidate.
type ReviewActRequest struct {
	ID     int64                   `json:"id"`
	Action api.ReviewActionRequest `json:"action"`
}

// ReviewActResponse contains the resolved candidate.
type ReviewActResponse struct {
	Candidate ReviewCandidate `json:"candidate"`
}

// ReviewBulkRequest applies a batch decision to one hearing's candidates.
type ReviewBulkRequest struct {
	Request api.ReviewBulkRequest `json:"request"`
}

// ReviewBulkResponse reports how many candidates were resolved.
type ReviewBulkResponse struct {
	Resolved int `json:"resolved"`
}

// ReviewHearingsRequest summarizes hearings awaiting review.
type ReviewHearingsRequest struct{}

// ReviewHearingsResponse contains per-hearing pending counts.
type ReviewHearingsResponse struct {
	Hearings []api.ReviewHearingSummary `json:"hearings"`
}

// ScheduleListRequest fetches all schedules.
type ScheduleListRequest struct{}

// ScheduleListResponse contains stored schedules.
type ScheduleListResponse struct {
	Schedules []ScheduleItem `json:"schedules"`
}

// ScheduleCreateRequest stores a new schedule.
type ScheduleCreateRequest struct {
	Schedule api.ScheduleRequest `json:"schedule"`
}

// ScheduleUpdateRequest changes an existing schedule.
type ScheduleUpdateRequest struct {
	ID       int64               `json:"id"`
	Schedule api.ScheduleRequest `json:"schedule"`
}

// ScheduleResponse contains a single schedule.
type ScheduleResponse struct {
	Schedule ScheduleItem `json:"schedule"`
}

// ScheduleEnableRequest toggles a schedule.
type ScheduleEnableRequest struct {
	ID      int64 `json:"id"`
	Enabled bool  `json:"enabled"`
}

// ScheduleEnableResponse confirms the toggle.
type ScheduleEnableResponse struct {
	Enabled bool `json:"enabled"`
}

// ScheduleDeleteRequest removes a schedule.
type ScheduleDeleteRequest struct {
	ID int64 `json:"id"`
}

// ScheduleDeleteResponse confirms removal.
type ScheduleDeleteResponse struct {
	Deleted bool `json:"deleted"`
}
