// Package orchestrator coordinates pipeline runs. A run discovers new
// hearings, then sweeps the worker-backed stages in order, processing
// hearings sequentially. Cost and hearing ceilings are checked between
// hearings and stop a run gracefully. Only one run may be in flight.
package orchestrator
