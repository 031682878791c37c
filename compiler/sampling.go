package compiler

import (
	"fmt"

	"github.com/withobsrvr/control-verify/spec"
)

// renderSampling renders the TABLESAMPLE clause inserted after the final
// CTE alias in the FROM clause (§4.7). Returns "" when no sampling
// strategy is configured.
func renderSampling(s *spec.Sampling) string {
	if s == nil {
		return ""
	}
	var clause string
	switch {
	case s.SampleSize != nil:
		clause = fmt.Sprintf(" TABLESAMPLE RESERVOIR(%d ROWS)", *s.SampleSize)
	case s.SamplePercentage != nil:
		clause = fmt.Sprintf(" TABLESAMPLE RESERVOIR(%v%%)", *s.SamplePercentage)
	}
	if s.RandomSeed != nil {
		clause += fmt.Sprintf(" REPEATABLE (%d)", *s.RandomSeed)
	}
	return clause
}
