package matching

import (
	"fmt"

	"gavel/internal/config"
	"gavel/internal/registry"
)

// Decision routes a scored candidate.
type Decision string

const (
	DecisionAutoAccept  Decision = "auto_accept"
	DecisionAutoReject  Decision = "auto_reject"
	DecisionNeedsReview Decision = "needs_review"
)

// Policy turns match results into review routing decisions.
type Policy struct {
	autoAcceptThreshold int
}

// NewPolicy builds a policy with the configured auto-accept threshold.
func NewPolicy(cfg *config.Config) *Policy {
	return &Policy{autoAcceptThreshold: cfg.Matching.AutoAcceptThreshold}
}

// AutoAcceptThreshold exposes the configured cutoff for bulk actions.
func (p *Policy) AutoAcceptThreshold() int {
	return p.autoAcceptThreshold
}

// Classify decides how a match is routed. The returned reason is shown to
// reviewers; it is empty for automatic decisions.
func (p *Policy) Classify(entityType registry.EntityType, match *Match) (Decision, string) {
	if match.Classification == ClassExact && match.Confidence >= p.autoAcceptThreshold {
		return DecisionAutoAccept, ""
	}
	if entityType == registry.TypeDocket && !match.FormatValid {
		return DecisionAutoReject, ""
	}

	switch match.Classification {
	case ClassExact:
		return DecisionNeedsReview, fmt.Sprintf(
			"exact registry match scored %d, below the %d auto-accept cutoff",
			match.Confidence, p.autoAcceptThreshold)
	case ClassFuzzy:
		return DecisionNeedsReview, fmt.Sprintf(
			"%d similar registry entries, best scored %d", len(match.Suggestions), match.Confidence)
	default:
		return DecisionNeedsReview, "no registry match, may be a new entity"
	}
}
