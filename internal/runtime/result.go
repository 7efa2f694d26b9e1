// Package runtime implements the per-generator executor (§4.5): streaming
// or batched row iteration, repeat-suppression, per-row node invocation,
// ExternalError isolation, and the COPY-then-upsert batch flush.
//
// Grounded on the teacher's worker-pool/errgroup usage pattern for
// concurrent row processing and its OTel span-per-unit-of-work convention
// (internal/hooks/hooks_otel.go), generalized from beads' per-issue sync
// workers to dbgen's per-row graph evaluation.
package runtime

// Outcome classifies how a single row's node evaluation ended, replacing
// exceptions-as-control-flow (§9 redesign note) with an explicit sum type.
type Outcome int

const (
	// OutcomeOK means every node invoked successfully; the row's input
	// hash should be recorded in repeats.
	OutcomeOK Outcome = iota
	// OutcomeExternal means a node returned an ExternalError: the row is
	// isolated and logged, the generator continues.
	OutcomeExternal
	// OutcomeFatal means a node returned any other error: the generator
	// aborts with status failed.
	OutcomeFatal
)

// RowResult is the result of evaluating one row's graph.
type RowResult struct {
	Outcome Outcome
	Err     error
}

func rowOK() RowResult                  { return RowResult{Outcome: OutcomeOK} }
func rowExternal(err error) RowResult   { return RowResult{Outcome: OutcomeExternal, Err: err} }
func rowFatal(err error) RowResult      { return RowResult{Outcome: OutcomeFatal, Err: err} }

func (r RowResult) String() string {
	switch r.Outcome {
	case OutcomeOK:
		return "ok"
	case OutcomeExternal:
		return "external: " + r.Err.Error()
	case OutcomeFatal:
		return "fatal: " + r.Err.Error()
	default:
		return "unknown"
	}
}
