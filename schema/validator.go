// Package schema implements the pre-flight schema validator (§4.8): it
// resolves every field a compiled plan references against the manifest's
// physical columns, before any data is read, and rejects coarse type
// incompatibilities the compiler itself does not check.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/withobsrvr/control-verify/compiler"
	"github.com/withobsrvr/control-verify/manifest"
)

// SchemaDrift is returned when a field reference does not resolve to any
// column in the plan's final output, along with the nearest candidates.
type SchemaDrift struct {
	Field      string
	Candidates []string
}

func (e *SchemaDrift) Error() string {
	return fmt.Sprintf("schema: field %q not found; nearest columns: %s", e.Field, strings.Join(e.Candidates, ", "))
}

// TypeMismatch is returned when a field's physical logical type is
// incompatible with how the plan uses it (numeric comparison on a string
// column, date arithmetic on a string column).
type TypeMismatch struct {
	Field    string
	Expected string
	Actual   manifest.LogicalType
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("schema: field %q expects a %s-compatible column, found %s", e.Field, e.Expected, e.Actual)
}

// Validate resolves every column the plan's final output references and
// exists for the caller's lookup, returning the first SchemaDrift
// encountered. Validate does not re-derive field usage from the
// specification — it is handed the set of fields the caller's compiled
// plan actually needs, keyed to the kind of check each requires.
func Validate(plan *compiler.Plan, checks []FieldCheck) error {
	index := make(map[string]compiler.ColumnOrigin, len(plan.FinalColumns))
	names := make([]string, 0, len(plan.FinalColumns))
	for _, c := range plan.FinalColumns {
		index[c.Name] = c
		names = append(names, c.Name)
	}
	sort.Strings(names)

	for _, check := range checks {
		col, ok := index[check.Field]
		if !ok {
			return &SchemaDrift{Field: check.Field, Candidates: nearest(check.Field, names, 3)}
		}
		if err := checkCompatible(check, col.LogicalType); err != nil {
			return err
		}
	}
	return nil
}

// FieldCheckKind is the coarse type requirement a field reference imposes,
// derived from the assertion or filter operator that uses it.
type FieldCheckKind string

const (
	// CheckAny accepts any logical type (comparisons against non-numeric
	// literals, column-to-column comparisons, membership, and null checks
	// impose no type requirement beyond existence).
	CheckAny FieldCheckKind = "any"
	// CheckNumeric requires a numeric column (comparisons against an
	// integer or float literal, and aggregation metrics).
	CheckNumeric FieldCheckKind = "numeric"
	// CheckTemporal requires a date or timestamp column (temporal date
	// math).
	CheckTemporal FieldCheckKind = "temporal"
)

// FieldCheck names one field reference the plan makes and the coarse type
// requirement it carries.
type FieldCheck struct {
	Field string
	Kind  FieldCheckKind
}

func checkCompatible(check FieldCheck, actual manifest.LogicalType) error {
	switch check.Kind {
	case CheckNumeric:
		if actual != manifest.TypeNumeric {
			return &TypeMismatch{Field: check.Field, Expected: "numeric", Actual: actual}
		}
	case CheckTemporal:
		if actual != manifest.TypeDate && actual != manifest.TypeTimestamp {
			return &TypeMismatch{Field: check.Field, Expected: "date/timestamp", Actual: actual}
		}
	}
	return nil
}

// nearest returns the k candidate names with the smallest Levenshtein
// distance to target, ties broken by lexical order.
func nearest(target string, candidates []string, k int) []string {
	type scored struct {
		name string
		dist int
	}
	scoredCandidates := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		scoredCandidates = append(scoredCandidates, scored{name: c, dist: levenshtein(target, c)})
	}
	sort.Slice(scoredCandidates, func(i, j int) bool {
		if scoredCandidates[i].dist != scoredCandidates[j].dist {
			return scoredCandidates[i].dist < scoredCandidates[j].dist
		}
		return scoredCandidates[i].name < scoredCandidates[j].name
	})
	if k > len(scoredCandidates) {
		k = len(scoredCandidates)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = scoredCandidates[i].name
	}
	return out
}

// levenshtein computes simple edit distance between a and b.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	rows, cols := len(ar)+1, len(br)+1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}
	for i := 1; i < rows; i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
