// Package compiler translates a validated Control Specification plus an
// Evidence Manifest into a single analytical SQL query: a pipeline of CTEs
// (§4.5), a set of assertion predicates (§4.6), and a final assembled
// query of one of two shapes (§4.7). The compiler is pure — same inputs,
// byte-identical SQL — and never composes SQL text directly; every
// fragment passes through sqlgen.
package compiler

import "fmt"

// ManifestMissing is returned when a specification references a dataset
// alias the manifest does not carry.
type ManifestMissing struct {
	Alias string
}

func (e *ManifestMissing) Error() string {
	return fmt.Sprintf("compiler: dataset alias %q is not present in the manifest", e.Alias)
}

// ColumnCollision is returned when a left join introduces a non-key column
// whose name already exists on the left-hand side — the EXCLUDE clause
// only resolves key-column collisions (§4.5, §9).
type ColumnCollision struct {
	StepID string
	Column string
}

func (e *ColumnCollision) Error() string {
	return fmt.Sprintf("compiler: step %q introduces column %q which collides with an existing non-key column", e.StepID, e.Column)
}
