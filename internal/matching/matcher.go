package matching

import (
	"context"
	"fmt"
	"sort"

	"gavel/internal/config"
	"gavel/internal/registry"
	"gavel/internal/textutil"
)

// Classification buckets a match result.
type Classification string

const (
	ClassExact Classification = "exact"
	ClassFuzzy Classification = "fuzzy"
	ClassNone  Classification = "none"
)

// Confidence bands per classification. Exact matches start at the
// auto-accept floor; fuzzy similarity maps into the review band; unmatched
// candidates stay below it.
const (
	exactBase         = 80
	corroborationCap  = 15
	fuzzyBandFloor    = 40
	fuzzyBandCeiling  = 79
	noneValidFormat   = 30
	noneInvalidFormat = 5
)

// Suggestion is one ranked registry entity a fuzzy candidate may resolve to.
type Suggestion struct {
	EntityID    int64  `json:"entity_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// Match is the scored outcome for one raw mention.
type Match struct {
	Normalized     string
	Classification Classification
	Confidence     int
	FormatValid    bool
	Entity         *registry.Entity
	Suggestions    []Suggestion
}

// Matcher resolves raw mentions against the canonical registry.
type Matcher struct {
	reg             *registry.Store
	similarityFloor float64
	maxSuggestions  int
}

// NewMatcher builds a matcher with the configured thresholds.
func NewMatcher(reg *registry.Store, cfg *config.Config) *Matcher {
	return &Matcher{
		reg:             reg,
		similarityFloor: cfg.Matching.SimilarityFloor,
		maxSuggestions:  cfg.Matching.MaxSuggestions,
	}
}

// Match normalizes and scores one raw mention. contextText is the
// surrounding transcript passage; overlap with a matched entity's name
// raises exact-match confidence.
func (m *Matcher) Match(ctx context.Context, entityType registry.EntityType, rawText, contextText string) (*Match, error) {
	normalized := Normalize(entityType, rawText)
	result := &Match{
		Normalized:  normalized,
		FormatValid: ValidFormat(entityType, normalized),
	}
	if normalized == "" {
		result.Classification = ClassNone
		result.Confidence = noneInvalidFormat
		return result, nil
	}

	entity, err := m.reg.FindByIdentifier(ctx, entityType, normalized)
	if err != nil {
		return nil, fmt.Errorf("match %s %q: %w", entityType, rawText, err)
	}
	if entity != nil {
		result.Classification = ClassExact
		result.Entity = entity
		result.Confidence = exactConfidence(entity, contextText)
		result.Suggestions = []Suggestion{{
			EntityID:    entity.ID,
			DisplayName: entityLabel(entity),
			Score:       result.Confidence,
		}}
		return result, nil
	}

	suggestions, err := m.rankSuggestions(ctx, entityType, normalized)
	if err != nil {
		return nil, err
	}
	if len(suggestions) > 0 {
		result.Classification = ClassFuzzy
		result.Suggestions = suggestions
		result.Confidence = suggestions[0].Score
		return result, nil
	}

	result.Classification = ClassNone
	if result.FormatValid {
		result.Confidence = noneValidFormat
	} else {
		result.Confidence = noneInvalidFormat
	}
	return result, nil
}

// exactConfidence starts from the exact base and adds a corroboration bonus
// when the surrounding passage also mentions the entity's name tokens.
func exactConfidence(entity *registry.Entity, contextText string) int {
	confidence := exactBase
	if contextText == "" {
		return confidence
	}
	contextPrint := textutil.NewFingerprint(contextText)
	nameTokens := textutil.Tokenize(entityLabel(entity))
	if len(nameTokens) == 0 {
		return confidence
	}
	overlap := 0
	for _, token := range nameTokens {
		if contextPrint.Contains(token) {
			overlap++
		}
	}
	bonus := corroborationCap * overlap / len(nameTokens)
	confidence += bonus
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// rankSuggestions scores the normalized mention against every registered
// entity of the same type and keeps those at or above the similarity floor.
func (m *Matcher) rankSuggestions(ctx context.Context, entityType registry.EntityType, normalized string) ([]Suggestion, error) {
	entities, err := m.reg.ListByType(ctx, entityType)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}

	mentionPrint := textutil.NewFingerprint(normalized)
	type scored struct {
		entity     *registry.Entity
		similarity float64
	}
	var hits []scored
	for _, entity := range entities {
		similarity := textutil.CosineSimilarity(mentionPrint, textutil.NewFingerprint(entity.Identifier))
		if similarity >= m.similarityFloor {
			hits = append(hits, scored{entity: entity, similarity: similarity})
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].similarity != hits[j].similarity {
			return hits[i].similarity > hits[j].similarity
		}
		return hits[i].entity.ID < hits[j].entity.ID
	})
	if m.maxSuggestions > 0 && len(hits) > m.maxSuggestions {
		hits = hits[:m.maxSuggestions]
	}

	suggestions := make([]Suggestion, 0, len(hits))
	for _, hit := range hits {
		suggestions = append(suggestions, Suggestion{
			EntityID:    hit.entity.ID,
			DisplayName: entityLabel(hit.entity),
			Score:       fuzzyConfidence(hit.similarity, m.similarityFloor),
		})
	}
	return suggestions, nil
}

// fuzzyConfidence maps similarity in [floor, 1] onto the review band.
func fuzzyConfidence(similarity, floor float64) int {
	if floor >= 1 {
		return fuzzyBandCeiling
	}
	scaled := (similarity - floor) / (1 - floor)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 1 {
		scaled = 1
	}
	return fuzzyBandFloor + int(scaled*float64(fuzzyBandCeiling-fuzzyBandFloor))
}

func entityLabel(entity *registry.Entity) string {
	if entity.DisplayName != "" {
		return entity.DisplayName
	}
	return entity.Identifier
}
