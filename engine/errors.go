// Package engine implements the execution engine (§4.9): it opens a fresh
// analytical session per control, dry-runs the compiled plan, computes the
// population count, executes the full query, and collects a bounded
// exception sample — all on a single session, honoring caller
// cancellation at every stage.
package engine

// ErrorKind is the closed set of failure modes the engine itself can
// produce (§7). SpecInvalid, ManifestMissing, SchemaDrift, and
// TypeMismatch are raised by earlier stages and never reach here.
type ErrorKind string

const (
	// KindNone indicates the engine completed without error.
	KindNone ErrorKind = ""
	// CompileRejected means the analytical engine's own planner rejected
	// the generated SQL during the EXPLAIN dry-run.
	CompileRejected ErrorKind = "CompileRejected"
	// ExecutionFailed means the query parsed but failed at run time.
	ExecutionFailed ErrorKind = "ExecutionFailed"
	// Canceled means the caller's context was canceled mid-execution.
	Canceled ErrorKind = "Canceled"
)
