// Package logging builds the shared slog logger and its handlers.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for machine consumption. Helpers re-export slog attribute
// constructors so call sites avoid importing slog directly, and context
// helpers carry hearing/stage/run identifiers into every log line emitted
// during pipeline work.
package logging
