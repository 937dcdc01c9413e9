package matching

import (
	"testing"

	"gavel/internal/registry"
)

func TestNormalizeDocket(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"R.24-07-011", "R.24-07-011"},
		{"r.24-07-011", "R.24-07-011"},
		{"Docket No. R.24-07-011", "R.24-07-011"},
		{"Case No. 24-E-0165", "24-E-0165"},
		{"  2024-00123 ", "2024-00123"},
	}
	for _, tc := range cases {
		if got := Normalize(registry.TypeDocket, tc.raw); got != tc.want {
			t.Errorf("Normalize(docket, %q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	got := Normalize(registry.TypeUtility, "Pacific Gas & Electric Co.")
	if got != "pacific gas electric" {
		t.Errorf("Normalize(utility) = %q", got)
	}
	if Normalize(registry.TypeTopic, "   ") != "" {
		t.Error("blank mention should normalize to empty")
	}
}

func TestValidFormat(t *testing.T) {
	valid := []string{"R.24-07-011", "24-E-0165", "2024-00123", "AB.25-01-0042"}
	for _, id := range valid {
		if !ValidFormat(registry.TypeDocket, id) {
			t.Errorf("ValidFormat(docket, %q) = false, want true", id)
		}
	}
	invalid := []string{"", "XYZZY", "RATE CASE", "24", "R-24"}
	for _, id := range invalid {
		if ValidFormat(registry.TypeDocket, id) {
			t.Errorf("ValidFormat(docket, %q) = true, want false", id)
		}
	}

	if !ValidFormat(registry.TypeUtility, "pacific gas electric") {
		t.Error("name with usable tokens should be valid")
	}
	if ValidFormat(registry.TypeUtility, "") {
		t.Error("empty name should be invalid")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("  southern   california edison "); got != "Southern California Edison" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestFuzzyConfidenceStaysInBand(t *testing.T) {
	floor := 0.55
	if got := fuzzyConfidence(floor, floor); got != fuzzyBandFloor {
		t.Errorf("confidence at floor = %d, want %d", got, fuzzyBandFloor)
	}
	if got := fuzzyConfidence(1.0, floor); got != fuzzyBandCeiling {
		t.Errorf("confidence at 1.0 = %d, want %d", got, fuzzyBandCeiling)
	}
	mid := fuzzyConfidence(0.8, floor)
	if mid <= fuzzyBandFloor || mid >= fuzzyBandCeiling {
		t.Errorf("mid confidence = %d, want inside (%d, %d)", mid, fuzzyBandFloor, fuzzyBandCeiling)
	}
}
