package matching

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gavel/internal/registry"
	"gavel/internal/textutil"
)

// docketPatterns cover the proceeding number formats commission dockets use.
// R.24-07-011 and A.25-01-004 style prefixed numbers, 24-E-0165 style
// case numbers, and plain 2024-00123 style filings.
var docketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{1,2}\.\d{2}-\d{2}-\d{3,4}$`),
	regexp.MustCompile(`^\d{2}-[A-Z]{1,2}-\d{3,5}$`),
	regexp.MustCompile(`^\d{4}-\d{4,6}$`),
	regexp.MustCompile(`^[A-Z]{1,3}-\d{4,6}(-[A-Z0-9]{1,4})?$`),
}

var (
	docketSeparators = regexp.MustCompile(`[\s_/]+`)
	multiDots        = regexp.MustCompile(`\.{2,}`)
	titleCaser       = cases.Title(language.AmericanEnglish)
)

// Normalize reduces a raw mention to its canonical identifier form for the
// given entity type. Docket numbers are uppercased with separators collapsed;
// names are reduced to their sorted token fingerprint.
func Normalize(entityType registry.EntityType, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if entityType == registry.TypeDocket {
		return normalizeDocket(raw)
	}
	return strings.Join(textutil.Tokenize(raw), " ")
}

func normalizeDocket(raw string) string {
	upper := strings.ToUpper(raw)
	upper = docketSeparators.ReplaceAllString(upper, "-")
	upper = multiDots.ReplaceAllString(upper, ".")
	upper = strings.Trim(upper, ".-")
	// "Docket No. R.24-07-011" style prefixes are noise.
	for _, prefix := range []string{"DOCKET-NO.", "DOCKET-NO-", "DOCKET-", "CASE-NO.", "CASE-NO-", "CASE-", "NO.", "NO-"} {
		if strings.HasPrefix(upper, prefix) {
			upper = strings.TrimPrefix(upper, prefix)
			upper = strings.Trim(upper, ".-")
			break
		}
	}
	return upper
}

// ValidFormat reports whether the normalized identifier is structurally
// plausible for the entity type. Names only need a usable token; dockets
// must match a known proceeding number shape.
func ValidFormat(entityType registry.EntityType, normalized string) bool {
	if normalized == "" {
		return false
	}
	if entityType != registry.TypeDocket {
		return textutil.NewFingerprint(normalized).TokenCount() > 0
	}
	for _, pattern := range docketPatterns {
		if pattern.MatchString(normalized) {
			return true
		}
	}
	return false
}

// DisplayName renders a raw mention as a presentable title-cased name.
func DisplayName(raw string) string {
	return titleCaser.String(strings.Join(strings.Fields(raw), " "))
}
