package ingest

import "fmt"

// Stage is the phase an ingestion run is in.
//
// Valid stage graph:
//
//	DISCOVERING ──► FETCHING ──► CLEANING ──► RECONCILING ──► DONE
//	     │                           │                          ▲
//	     └───────────────────────────┴──────────────────────────┘
//
// Any non-terminal stage may also move to FAILED. DONE and FAILED are terminal.
type Stage string

const (
	StageDiscovering Stage = "DISCOVERING"
	StageFetching    Stage = "FETCHING"
	StageCleaning    Stage = "CLEANING"
	StageReconciling Stage = "RECONCILING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Stage][]Stage{
	StageDiscovering: {StageFetching, StageDone, StageFailed},
	StageFetching:    {StageCleaning, StageFailed},
	StageCleaning:    {StageReconciling, StageDone, StageFailed},
	StageReconciling: {StageDone, StageFailed},
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to Stage) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further stage can follow s.
func IsTerminal(s Stage) bool {
	_, ok := validTransitions[s]
	return !ok
}

// advance moves the report to the next stage, panicking on an edge the graph
// does not contain: that is a bug in the orchestrator, not a runtime failure.
func (r *Report) advance(to Stage) {
	if !IsTransitionAllowed(r.Stage, to) {
		panic(fmt.Sprintf("ingest: illegal stage transition %s → %s", r.Stage, to))
	}
	r.Stage = to
}
