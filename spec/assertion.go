package spec

import (
	"encoding/json"
	"fmt"

	"github.com/withobsrvr/control-verify/value"
)

// AggregationFunc is the closed set of aggregation functions an
// Aggregation assertion may use.
type AggregationFunc string

const (
	AggSum   AggregationFunc = "SUM"
	AggCount AggregationFunc = "COUNT"
	AggAvg   AggregationFunc = "AVG"
	AggMin   AggregationFunc = "MIN"
	AggMax   AggregationFunc = "MAX"
)

func (f AggregationFunc) valid() bool {
	switch f {
	case AggSum, AggCount, AggAvg, AggMin, AggMax:
		return true
	default:
		return false
	}
}

// AssertionKind is the discriminated-union tag for an assertion body.
type AssertionKind string

const (
	AssertionValueMatch        AssertionKind = "value_match"
	AssertionColumnComparison  AssertionKind = "column_comparison"
	AssertionTemporalDateMath  AssertionKind = "temporal_date_math"
	AssertionAggregation       AssertionKind = "aggregation"
)

// AssertionBody is implemented by exactly the four assertion variants.
type AssertionBody interface {
	Kind() AssertionKind
	assertionBody()
}

// ValueMatch compares a field against an expected scalar or scalar list.
type ValueMatch struct {
	Field              string         `json:"field"`
	Operator           value.Operator `json:"operator"`
	ExpectedValue      value.Scalar   `json:"expected_value"`
	ExpectedList       []value.Scalar `json:"expected_list,omitempty"`
	IgnoreCaseAndSpace bool           `json:"ignore_case_and_space"`
}

func (ValueMatch) Kind() AssertionKind { return AssertionValueMatch }
func (ValueMatch) assertionBody()      {}

// valueMatchWire is ValueMatch's wire shape. expected_value is meaningless
// for a membership comparison (expected_list carries the comparison set
// instead), so it is omitted there rather than serialized as a hollow
// {"kind":""} null scalar — struct-typed fields ignore json's omitempty,
// so this has to be done explicitly.
type valueMatchWire struct {
	Field              string         `json:"field"`
	Operator           value.Operator `json:"operator"`
	ExpectedValue      *value.Scalar  `json:"expected_value,omitempty"`
	ExpectedList       []value.Scalar `json:"expected_list,omitempty"`
	IgnoreCaseAndSpace bool           `json:"ignore_case_and_space"`
}

// MarshalJSON renders ValueMatch, omitting expected_value for membership
// comparisons so a stored specification round-trips without a hollow null
// scalar alongside its expected_list.
func (v ValueMatch) MarshalJSON() ([]byte, error) {
	w := valueMatchWire{
		Field:              v.Field,
		Operator:           v.Operator,
		ExpectedList:       v.ExpectedList,
		IgnoreCaseAndSpace: v.IgnoreCaseAndSpace,
	}
	if !v.Operator.IsMembership() {
		ev := v.ExpectedValue
		w.ExpectedValue = &ev
	}
	return json.Marshal(w)
}

// ColumnComparison compares two fields of the same row to each other.
type ColumnComparison struct {
	LeftField  string         `json:"left_field"`
	Operator   value.Operator `json:"operator"`
	RightField string         `json:"right_field"`
}

func (ColumnComparison) Kind() AssertionKind { return AssertionColumnComparison }
func (ColumnComparison) assertionBody()      {}

// TemporalDateMath compares a base date field to a target date field
// shifted by a signed day offset.
type TemporalDateMath struct {
	BaseDateField   string         `json:"base_date_field"`
	Operator        value.Operator `json:"operator"`
	TargetDateField string         `json:"target_date_field"`
	OffsetDays      int            `json:"offset_days"`
}

func (TemporalDateMath) Kind() AssertionKind { return AssertionTemporalDateMath }
func (TemporalDateMath) assertionBody()      {}

// Aggregation asserts a GROUP BY ... HAVING predicate over the final
// pipeline output.
type Aggregation struct {
	GroupByFields       []string        `json:"group_by_fields"`
	MetricField         string          `json:"metric_field"`
	AggregationFunction AggregationFunc `json:"aggregation_function"`
	Operator            value.Operator  `json:"operator"`
	Threshold           float64         `json:"threshold"`
}

func (Aggregation) Kind() AssertionKind { return AssertionAggregation }
func (Aggregation) assertionBody()      {}

// Assertion is one rule the control checks, carrying the common envelope
// fields (§3) plus a validated body.
type Assertion struct {
	AssertionID                 string
	Description                 string
	MaterialityThresholdPercent float64
	Body                        AssertionBody
}

func newValueMatch(path string, v ValueMatch) (ValueMatch, error) {
	if v.Field == "" {
		return v, invalid(path+".field", "field must be non-empty")
	}
	if !v.Operator.Valid() {
		return v, invalid(path+".operator", "operator %q is not recognized", v.Operator)
	}
	if v.Operator.IsMembership() {
		if len(v.ExpectedList) == 0 {
			return v, invalid(path+".expected_list", "in/not_in requires a non-empty expected_list")
		}
		return v, nil
	}
	if len(v.ExpectedList) != 0 {
		return v, invalid(path+".expected_list", "expected_list is only valid with in/not_in")
	}
	if v.ExpectedValue.IsNull() {
		if !v.Operator.IsEquality() {
			return v, invalid(path+".operator", "null expected_value requires eq/neq, got %q", v.Operator)
		}
		return v, nil
	}
	if v.Operator.IsOrdered() && !value.IsComparisonOperator(v.Operator) {
		return v, invalid(path+".operator", "operator %q cannot be used with a scalar expected_value", v.Operator)
	}
	return v, nil
}

func newColumnComparison(path string, c ColumnComparison) (ColumnComparison, error) {
	if c.LeftField == "" || c.RightField == "" {
		return c, invalid(path, "left_field and right_field must be non-empty")
	}
	if !value.IsComparisonOperator(c.Operator) {
		return c, invalid(path+".operator", "operator %q is not a valid column comparison operator", c.Operator)
	}
	return c, nil
}

func newTemporalDateMath(path string, tdm TemporalDateMath) (TemporalDateMath, error) {
	if tdm.BaseDateField == "" || tdm.TargetDateField == "" {
		return tdm, invalid(path, "base_date_field and target_date_field must be non-empty")
	}
	switch tdm.Operator {
	case value.Eq, value.Gt, value.Gte, value.Lt, value.Lte:
	default:
		return tdm, invalid(path+".operator", "operator %q is not valid for temporal_date_math", tdm.Operator)
	}
	return tdm, nil
}

func newAggregation(path string, a Aggregation) (Aggregation, error) {
	if len(a.GroupByFields) == 0 {
		return a, invalid(path+".group_by_fields", "group_by_fields must be non-empty")
	}
	if a.MetricField == "" {
		return a, invalid(path+".metric_field", "metric_field must be non-empty")
	}
	if !a.AggregationFunction.valid() {
		return a, invalid(path+".aggregation_function", "aggregation_function %q is not recognized", a.AggregationFunction)
	}
	switch a.Operator {
	case value.Eq, value.Gt, value.Gte, value.Lt, value.Lte:
	default:
		return a, invalid(path+".operator", "operator %q is not valid for aggregation", a.Operator)
	}
	return a, nil
}

// MarshalJSON renders an Assertion as its flattened wire shape.
func (a Assertion) MarshalJSON() ([]byte, error) {
	bodyJSON, err := json.Marshal(a.Body)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bodyJSON, &fields); err != nil {
		return nil, err
	}
	fields["assertion_id"] = mustMarshal(a.AssertionID)
	fields["description"] = mustMarshal(a.Description)
	fields["materiality_threshold_percent"] = mustMarshal(a.MaterialityThresholdPercent)
	fields["kind"] = mustMarshal(a.Body.Kind())
	return json.Marshal(fields)
}

// UnmarshalJSON enforces the assertion discriminated-union contract,
// identical in spirit to Step.UnmarshalJSON.
func (a *Assertion) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	id, desc, threshold, err := popCommonAssertionFields(all)
	if err != nil {
		return err
	}

	kindRaw, ok := all["kind"]
	if !ok {
		return invalid(fmt.Sprintf("assertion[%s]", id), "kind is required")
	}
	var kind AssertionKind
	if err := json.Unmarshal(kindRaw, &kind); err != nil {
		return invalid(fmt.Sprintf("assertion[%s].kind", id), "kind must be a string")
	}
	delete(all, "kind")

	remainder, err := json.Marshal(all)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("assertion[%s]", id)
	var body AssertionBody
	switch kind {
	case AssertionValueMatch:
		var v ValueMatch
		if err := decodeStrict(remainder, &v); err != nil {
			return invalid(path, "value_match: %v", err)
		}
		v, err := newValueMatch(path, v)
		if err != nil {
			return err
		}
		body = v
	case AssertionColumnComparison:
		var c ColumnComparison
		if err := decodeStrict(remainder, &c); err != nil {
			return invalid(path, "column_comparison: %v", err)
		}
		c, err := newColumnComparison(path, c)
		if err != nil {
			return err
		}
		body = c
	case AssertionTemporalDateMath:
		var tdm TemporalDateMath
		if err := decodeStrict(remainder, &tdm); err != nil {
			return invalid(path, "temporal_date_math: %v", err)
		}
		tdm, err := newTemporalDateMath(path, tdm)
		if err != nil {
			return err
		}
		body = tdm
	case AssertionAggregation:
		var ag Aggregation
		if err := decodeStrict(remainder, &ag); err != nil {
			return invalid(path, "aggregation: %v", err)
		}
		ag, err := newAggregation(path, ag)
		if err != nil {
			return err
		}
		body = ag
	default:
		return invalid(path+".kind", "unknown assertion kind %q", kind)
	}

	if id == "" {
		return invalid("assertion", "assertion_id must be non-empty")
	}
	if threshold < 0 || threshold > 100 {
		return invalid(path+".materiality_threshold_percent", "materiality_threshold_percent must be within [0, 100], got %v", threshold)
	}

	*a = Assertion{
		AssertionID:                 id,
		Description:                 desc,
		MaterialityThresholdPercent: threshold,
		Body:                        body,
	}
	return nil
}

func popCommonAssertionFields(all map[string]json.RawMessage) (id, description string, threshold float64, err error) {
	if raw, ok := all["assertion_id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", "", 0, invalid("assertion.assertion_id", "must be a string")
		}
		delete(all, "assertion_id")
	}
	if raw, ok := all["description"]; ok {
		if err := json.Unmarshal(raw, &description); err != nil {
			return "", "", 0, invalid("assertion.description", "must be a string")
		}
		delete(all, "description")
	}
	if raw, ok := all["materiality_threshold_percent"]; ok {
		if err := json.Unmarshal(raw, &threshold); err != nil {
			return "", "", 0, invalid("assertion.materiality_threshold_percent", "must be a number")
		}
		delete(all, "materiality_threshold_percent")
	}
	return id, description, threshold, nil
}

// NewAssertion validates and constructs an Assertion, including the
// per-kind checks on its body. JSON-sourced assertions go through
// UnmarshalJSON, which performs equivalent validation.
func NewAssertion(assertionID, description string, materialityThresholdPercent float64, body AssertionBody) (Assertion, error) {
	if assertionID == "" {
		return Assertion{}, invalid("assertion_id", "assertion_id must be non-empty")
	}
	if materialityThresholdPercent < 0 || materialityThresholdPercent > 100 {
		return Assertion{}, invalid(assertionID, "materiality_threshold_percent must be within [0, 100]")
	}
	if body == nil {
		return Assertion{}, invalid(assertionID, "body must be set")
	}
	path := fmt.Sprintf("assertion[%s]", assertionID)
	var err error
	switch b := body.(type) {
	case ValueMatch:
		_, err = newValueMatch(path, b)
	case ColumnComparison:
		_, err = newColumnComparison(path, b)
	case TemporalDateMath:
		_, err = newTemporalDateMath(path, b)
	case Aggregation:
		_, err = newAggregation(path, b)
	}
	if err != nil {
		return Assertion{}, err
	}
	return Assertion{
		AssertionID:                 assertionID,
		Description:                 description,
		MaterialityThresholdPercent: materialityThresholdPercent,
		Body:                        body,
	}, nil
}
