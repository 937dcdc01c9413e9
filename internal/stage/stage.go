// Package stage defines the worker bindings of the pipeline: which external
// worker consumes hearings at which checkpoint, and what it advances them to.
package stage

import (
	"strings"

	"gavel/internal/hearings"
)

// Op binds one pipeline stage to its worker. Hearings whose current stage
// equals From are eligible; success advances them to To.
type Op struct {
	Name string
	From hearings.Stage
	To   hearings.Stage
	// EmitsCandidates marks ops whose results carry entity references that
	// feed the review queue.
	EmitsCandidates bool
}

// OpDiscover is handled at the orchestrator level: it creates hearings
// instead of advancing them, so it carries no From stage.
const OpDiscover = "discover"

var ops = []Op{
	{Name: "download", From: hearings.StageDiscovered, To: hearings.StageDownloaded},
	{Name: "transcribe", From: hearings.StageDownloaded, To: hearings.StageTranscribed},
	{Name: "analyze", From: hearings.StageTranscribed, To: hearings.StageAnalyzed, EmitsCandidates: true},
	{Name: "extract", From: hearings.StageReview, To: hearings.StageExtracted, EmitsCandidates: true},
}

// Ops returns the worker-backed stage ops in pipeline order.
func Ops() []Op {
	cp := make([]Op, len(ops))
	copy(cp, ops)
	return cp
}

// OpByName looks up a stage op by its worker name.
func OpByName(name string) (Op, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, op := range ops {
		if op.Name == name {
			return op, true
		}
	}
	return Op{}, false
}

// Health is one worker's reachability probe result.
type Health struct {
	Name     string
	Endpoint string
	Ready    bool
	Detail   string
}
