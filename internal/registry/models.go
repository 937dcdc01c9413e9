package registry

import (
	"strings"
	"time"
)

// EntityType classifies what a canonical entity refers to.
type EntityType string

const (
	TypeDocket  EntityType = "docket"
	TypeUtility EntityType = "utility"
	TypeTopic   EntityType = "topic"
)

var allTypes = []EntityType{TypeDocket, TypeUtility, TypeTopic}

// ParseEntityType converts a string into a known EntityType.
func ParseEntityType(value string) (EntityType, bool) {
	normalized := EntityType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Metadata carries type-specific entity attributes.
type Metadata struct {
	Aliases  []string `json:"aliases,omitempty"`
	Sector   string   `json:"sector,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Entity is one canonical record mentions resolve to. The identifier is the
// normalized form: a docket number, a utility name, or a topic label.
type Entity struct {
	ID           int64
	Type         EntityType
	Identifier   string
	DisplayName  string
	Metadata     Metadata
	MentionCount int
	CreatedAt    time.Time
}
