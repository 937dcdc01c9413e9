// Package hearings owns the pipeline's unit of work and its persistence.
//
// A Hearing moves through an ordered sequence of stages (discovered through
// complete) with side statuses for errors and operator skips. The Store wraps
// a SQLite database and is the single writer for hearing state transitions;
// it also records PipelineRun rows for audit history. To add stages or
// metadata fields, update schema.sql and bump schemaVersion.
package hearings
