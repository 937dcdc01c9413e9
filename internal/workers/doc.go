// Package workers defines the contracts shared between the pipeline and the
// external stage workers.
//
// Key responsibilities:
//   - Context helpers that stamp hearing IDs, stage names, run IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (conflict, validation, worker, timeout, not found)
//     uniform across the pipeline.
//   - The HTTP client used to invoke the discover/download/transcribe/
//     analyze/extract services.
package workers
