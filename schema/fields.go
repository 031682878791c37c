package schema

import (
	"github.com/withobsrvr/control-verify/spec"
	"github.com/withobsrvr/control-verify/value"
)

// ChecksFor derives the field references a specification's population
// filters and assertions make, each tagged with the coarse type
// requirement its operator imposes. The CLI driver calls Validate(plan,
// ChecksFor(cs)) before handing a compiled plan to the engine.
func ChecksFor(cs *spec.ControlSpecification) []FieldCheck {
	var checks []FieldCheck
	literalKind := func(v value.Scalar) FieldCheckKind {
		if v.Kind() == value.KindInt || v.Kind() == value.KindFloat {
			return CheckNumeric
		}
		return CheckAny
	}

	for _, step := range cs.Population.Steps {
		switch a := step.Action.(type) {
		case spec.FilterComparison:
			checks = append(checks, FieldCheck{Field: a.Field, Kind: literalKind(a.Value)})
		case spec.FilterInList:
			checks = append(checks, FieldCheck{Field: a.Field, Kind: CheckAny})
		case spec.FilterIsNull:
			checks = append(checks, FieldCheck{Field: a.Field, Kind: CheckAny})
		}
	}

	for _, assertion := range cs.Assertions {
		switch b := assertion.Body.(type) {
		case spec.ValueMatch:
			kind := CheckAny
			if !b.Operator.IsMembership() {
				kind = literalKind(b.ExpectedValue)
			}
			checks = append(checks, FieldCheck{Field: b.Field, Kind: kind})
		case spec.ColumnComparison:
			checks = append(checks, FieldCheck{Field: b.LeftField, Kind: CheckAny})
			checks = append(checks, FieldCheck{Field: b.RightField, Kind: CheckAny})
		case spec.TemporalDateMath:
			checks = append(checks, FieldCheck{Field: b.BaseDateField, Kind: CheckTemporal})
			checks = append(checks, FieldCheck{Field: b.TargetDateField, Kind: CheckTemporal})
		case spec.Aggregation:
			for _, f := range b.GroupByFields {
				checks = append(checks, FieldCheck{Field: f, Kind: CheckAny})
			}
			checks = append(checks, FieldCheck{Field: b.MetricField, Kind: CheckNumeric})
		}
	}

	return checks
}
