// Package config loads, validates, and normalizes gavel configuration.
//
// Configuration lives in a TOML file (default ~/.config/gavel/config.toml).
// Values are resolved in three passes: defaults, file contents, then
// normalization (path expansion, env fallbacks) and validation.
package config
