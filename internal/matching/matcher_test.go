package matching_test

import (
	"context"
	"testing"

	"gavel/internal/matching"
	"gavel/internal/registry"
	"gavel/internal/testsupport"
)

func newMatchEnv(t *testing.T) (*matching.Matcher, *matching.Policy, *registry.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reg := registry.NewStore(store.DB())
	return matching.NewMatcher(reg, cfg), matching.NewPolicy(cfg), reg
}

func TestMatchExact(t *testing.T) {
	matcher, _, reg := newMatchEnv(t)
	ctx := context.Background()

	entity, err := reg.Create(ctx, registry.TypeDocket, "R.24-07-011", "", registry.Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	match, err := matcher.Match(ctx, registry.TypeDocket, "docket no. r.24-07-011", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match.Classification != matching.ClassExact {
		t.Fatalf("classification = %s, want exact", match.Classification)
	}
	if match.Entity == nil || match.Entity.ID != entity.ID {
		t.Fatalf("entity = %+v", match.Entity)
	}
	if match.Confidence < 80 {
		t.Errorf("exact confidence = %d, want >= 80", match.Confidence)
	}
}

func TestMatchExactContextCorroboration(t *testing.T) {
	matcher, _, reg := newMatchEnv(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, registry.TypeUtility, "pacific gas electric", "Pacific Gas & Electric", registry.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	bare, err := matcher.Match(ctx, registry.TypeUtility, "Pacific Gas & Electric Co.", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	corroborated, err := matcher.Match(ctx, registry.TypeUtility, "Pacific Gas & Electric Co.",
		"counsel for Pacific Gas and Electric addressed the commission on rate design")
	if err != nil {
		t.Fatalf("Match with context: %v", err)
	}

	if corroborated.Confidence <= bare.Confidence {
		t.Errorf("corroborated confidence %d should exceed bare %d",
			corroborated.Confidence, bare.Confidence)
	}
	if corroborated.Confidence > 100 {
		t.Errorf("confidence %d exceeds 100", corroborated.Confidence)
	}
}

func TestMatchFuzzy(t *testing.T) {
	matcher, _, reg := newMatchEnv(t)
	ctx := context.Background()

	best, err := reg.Create(ctx, registry.TypeUtility, "southern california edison", "Southern California Edison", registry.Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create(ctx, registry.TypeUtility, "san diego gas electric", "San Diego Gas & Electric", registry.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	match, err := matcher.Match(ctx, registry.TypeUtility, "Southern Cal. Edison", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match.Classification != matching.ClassFuzzy {
		t.Fatalf("classification = %s, want fuzzy", match.Classification)
	}
	if len(match.Suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
	if match.Suggestions[0].EntityID != best.ID {
		t.Errorf("top suggestion = %d, want %d", match.Suggestions[0].EntityID, best.ID)
	}
	if match.Confidence < 40 || match.Confidence > 79 {
		t.Errorf("fuzzy confidence = %d, want within 40-79", match.Confidence)
	}
	for i := 1; i < len(match.Suggestions); i++ {
		if match.Suggestions[i].Score > match.Suggestions[i-1].Score {
			t.Error("suggestions not sorted by descending score")
		}
	}
}

func TestMatchNone(t *testing.T) {
	matcher, _, _ := newMatchEnv(t)
	ctx := context.Background()

	match, err := matcher.Match(ctx, registry.TypeDocket, "the afternoon session", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match.Classification != matching.ClassNone {
		t.Fatalf("classification = %s, want none", match.Classification)
	}
	if match.FormatValid {
		t.Error("prose should not be a valid docket format")
	}
	if match.Confidence > 39 {
		t.Errorf("unmatched confidence = %d, want <= 39", match.Confidence)
	}

	wellFormed, err := matcher.Match(ctx, registry.TypeDocket, "R.25-03-009", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if wellFormed.Classification != matching.ClassNone || !wellFormed.FormatValid {
		t.Fatalf("well-formed unmatched = %+v", wellFormed)
	}
	if wellFormed.Confidence <= match.Confidence {
		t.Errorf("valid format should outscore invalid: %d vs %d",
			wellFormed.Confidence, match.Confidence)
	}
}

func TestPolicyRouting(t *testing.T) {
	matcher, policy, reg := newMatchEnv(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, registry.TypeDocket, "R.24-07-011", "", registry.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	exact, err := matcher.Match(ctx, registry.TypeDocket, "R.24-07-011", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if decision, _ := policy.Classify(registry.TypeDocket, exact); decision != matching.DecisionAutoAccept {
		t.Errorf("exact high-confidence decision = %s, want auto accept", decision)
	}

	malformed, err := matcher.Match(ctx, registry.TypeDocket, "general discussion", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if decision, _ := policy.Classify(registry.TypeDocket, malformed); decision != matching.DecisionAutoReject {
		t.Errorf("malformed docket decision = %s, want auto reject", decision)
	}

	unmatched, err := matcher.Match(ctx, registry.TypeUtility, "Granite State Power", "")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	decision, reason := policy.Classify(registry.TypeUtility, unmatched)
	if decision != matching.DecisionNeedsReview {
		t.Errorf("unmatched utility decision = %s, want needs review", decision)
	}
	if reason == "" {
		t.Error("needs-review decisions must carry a reason")
	}
}
