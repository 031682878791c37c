// Package verdict implements the verdict resolver (§4.10): given the
// execution engine's population and exception counts plus the
// specification's materiality thresholds, it classifies a run as PASS,
// FAIL, or ERROR.
package verdict

import (
	"fmt"
	"math"

	"github.com/withobsrvr/control-verify/spec"
)

// Verdict is the closed set of execution outcomes.
type Verdict string

const (
	Pass  Verdict = "PASS"
	Fail  Verdict = "FAIL"
	Error Verdict = "ERROR"
)

// ErrorKind mirrors the engine's error kinds plus ZeroPopulation, which is
// this package's own responsibility (§4.10).
type ErrorKind string

const ZeroPopulation ErrorKind = "ZeroPopulation"

// Result is the verdict resolver's output, ready to fold into an
// Execution Report.
type Result struct {
	Verdict              Verdict
	ErrorKind            ErrorKind
	ErrorMessage         string
	EffectiveThreshold   float64
	ExceptionRatePercent float64
}

// Resolve classifies an execution. totalPopulation and exceptionCount come
// from the execution engine; assertions supplies the per-assertion
// materiality thresholds the specification declared.
func Resolve(baseDataset string, totalPopulation, exceptionCount int64, assertions []spec.Assertion) Result {
	if totalPopulation == 0 {
		return Result{
			Verdict:      Error,
			ErrorKind:    ZeroPopulation,
			ErrorMessage: fmt.Sprintf("base dataset %q produced zero rows after population filters", baseDataset),
		}
	}

	effective := effectiveThreshold(assertions)
	exactRate := float64(exceptionCount) / float64(totalPopulation) * 100
	rate := roundHalfToEven(exactRate, 2)

	v := Fail
	if exactRate <= effective {
		v = Pass
	}
	return Result{
		Verdict:              v,
		EffectiveThreshold:   effective,
		ExceptionRatePercent: rate,
	}
}

// effectiveThreshold is the maximum materiality_threshold_percent across
// all assertions in the specification (§4.10, GLOSSARY).
func effectiveThreshold(assertions []spec.Assertion) float64 {
	var max float64
	for _, a := range assertions {
		if a.MaterialityThresholdPercent > max {
			max = a.MaterialityThresholdPercent
		}
	}
	return max
}

// roundHalfToEven rounds f to places fractional digits using banker's
// rounding. Resolve uses it only for the reported ExceptionRatePercent;
// the PASS/FAIL comparison uses the unrounded rate.
func roundHalfToEven(f float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	scaled := f * scale
	rounded := math.RoundToEven(scaled)
	return rounded / scale
}
