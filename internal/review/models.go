package review

import (
	"strings"
	"time"

	"gavel/internal/matching"
	"gavel/internal/registry"
)

// CandidateStatus tracks a candidate through review.
type CandidateStatus string

const (
	CandidatePending   CandidateStatus = "pending"
	CandidateApproved  CandidateStatus = "approved"
	CandidateRejected  CandidateStatus = "rejected"
	CandidateCorrected CandidateStatus = "corrected"
)

// Candidate is one raw entity mention awaiting or past resolution.
type Candidate struct {
	ID             int64
	HearingID      int64
	EntityType     registry.EntityType
	RawText        string
	Normalized     string
	Classification matching.Classification
	Confidence     int
	Suggestions    []matching.Suggestion
	ReviewReason   string
	Status         CandidateStatus
	EntityID       int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the candidate has been resolved.
func (c *Candidate) IsTerminal() bool {
	return c != nil && c.Status != CandidatePending
}

// TopSuggestion returns the best-scored registry suggestion, or nil.
func (c *Candidate) TopSuggestion() *matching.Suggestion {
	if c == nil || len(c.Suggestions) == 0 {
		return nil
	}
	return &c.Suggestions[0]
}

// Action is one reviewer operation on a candidate.
type Action string

const (
	ActionApprove          Action = "approve"
	ActionAcceptSuggestion Action = "accept_suggestion"
	ActionReject           Action = "reject"
	ActionCorrect          Action = "correct"
	ActionLink             Action = "link"
)

var actionAliases = map[string]Action{
	"approve":           ActionApprove,
	"accept":            ActionApprove,
	"accept_suggestion": ActionAcceptSuggestion,
	"reject":            ActionReject,
	"invalid":           ActionReject,
	"correct":           ActionCorrect,
	"link":              ActionLink,
}

// ParseAction converts a string, including CLI aliases, to a known Action.
func ParseAction(value string) (Action, bool) {
	action, ok := actionAliases[strings.ToLower(strings.TrimSpace(value))]
	return action, ok
}

// ActionArgs carries the optional parameters review actions take.
type ActionArgs struct {
	// EntityID selects a registry entity for link and accept_suggestion.
	EntityID int64
	// CorrectedText replaces the raw mention for correct actions.
	CorrectedText string
	// DisplayName labels a newly coined entity, defaulting to the
	// title-cased corrected text.
	DisplayName string
}

// PendingSummary counts a hearing's unresolved candidates by entity type.
type PendingSummary struct {
	HearingID    int64
	HearingTitle string
	StateCode    string
	CountsByType map[registry.EntityType]int
	Total        int
}
