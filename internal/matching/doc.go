// Package matching scores entity candidates against the canonical registry.
// The matcher normalizes raw mentions per entity type, classifies them as
// exact, fuzzy, or unmatched, and assigns a 0-100 confidence. The policy
// layer turns classifications into review routing decisions.
package matching
