// Package registry persists canonical entities: the deduplicated utilities,
// dockets, and statute references that resolved candidates link to. Entities
// are keyed by (entity_type, normalized identifier) so repeat mentions across
// hearings collapse onto one record.
package registry
