package spec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/withobsrvr/control-verify/value"
)

// StepKind is the discriminated-union tag for a pipeline step's action.
type StepKind string

const (
	StepFilterComparison StepKind = "filter_comparison"
	StepFilterInList     StepKind = "filter_in_list"
	StepFilterIsNull     StepKind = "filter_is_null"
	StepJoinLeft         StepKind = "join_left"
)

// StepAction is implemented by exactly the four pipeline step variants.
// The marker method keeps the union closed to this package.
type StepAction interface {
	Kind() StepKind
	stepAction()
}

// FilterComparison filters the current rowset by a single field/operator/
// literal comparison.
type FilterComparison struct {
	Field    string         `json:"field"`
	Operator value.Operator `json:"operator"`
	Value    value.Scalar   `json:"value"`
}

func (FilterComparison) Kind() StepKind { return StepFilterComparison }
func (FilterComparison) stepAction()    {}

// FilterInList filters the current rowset to rows whose field is a member
// of a non-empty value list.
type FilterInList struct {
	Field  string         `json:"field"`
	Values []value.Scalar `json:"values"`
}

func (FilterInList) Kind() StepKind { return StepFilterInList }
func (FilterInList) stepAction()    {}

// FilterIsNull filters the current rowset on field's nullity.
type FilterIsNull struct {
	Field  string `json:"field"`
	IsNull bool   `json:"is_null"`
}

func (FilterIsNull) Kind() StepKind { return StepFilterIsNull }
func (FilterIsNull) stepAction()    {}

// JoinLeft left-joins the current rowset to another manifest dataset on a
// composite key.
type JoinLeft struct {
	LeftDataset  string   `json:"left_dataset"`
	RightDataset string   `json:"right_dataset"`
	LeftKeys     []string `json:"left_keys"`
	RightKeys    []string `json:"right_keys"`
}

func (JoinLeft) Kind() StepKind { return StepJoinLeft }
func (JoinLeft) stepAction()    {}

// Step binds a step_id (the name of the CTE it emits, when it emits one)
// to a validated action.
type Step struct {
	StepID string
	Action StepAction
}

func newFilterComparison(path string, f FilterComparison) (FilterComparison, error) {
	if f.Field == "" {
		return f, invalid(path+".field", "field must be non-empty")
	}
	if !f.Operator.Valid() || !value.IsComparisonOperator(f.Operator) {
		return f, invalid(path+".operator", "operator %q is not a valid comparison operator", f.Operator)
	}
	if f.Value.IsNull() && !f.Operator.IsEquality() {
		return f, invalid(path+".value", "null may only be compared with eq/neq, got operator %q", f.Operator)
	}
	return f, nil
}

func newFilterInList(path string, f FilterInList) (FilterInList, error) {
	if f.Field == "" {
		return f, invalid(path+".field", "field must be non-empty")
	}
	if len(f.Values) == 0 {
		return f, invalid(path+".values", "values must be non-empty")
	}
	return f, nil
}

func newFilterIsNull(path string, f FilterIsNull) (FilterIsNull, error) {
	if f.Field == "" {
		return f, invalid(path+".field", "field must be non-empty")
	}
	return f, nil
}

func newJoinLeft(path string, j JoinLeft) (JoinLeft, error) {
	if j.LeftDataset == "" {
		return j, invalid(path+".left_dataset", "left_dataset must be non-empty")
	}
	if j.RightDataset == "" {
		return j, invalid(path+".right_dataset", "right_dataset must be non-empty")
	}
	if len(j.LeftKeys) == 0 || len(j.RightKeys) == 0 {
		return j, invalid(path+".left_keys", "left_keys and right_keys must be non-empty")
	}
	if len(j.LeftKeys) != len(j.RightKeys) {
		return j, invalid(path+".right_keys", "left_keys (%d) and right_keys (%d) must have equal length", len(j.LeftKeys), len(j.RightKeys))
	}
	return j, nil
}

// NewStep validates and constructs a Step from its id and action. Used by
// callers building specifications in Go; JSON-sourced specifications go
// through UnmarshalJSON below, which performs the same per-kind validation
// after strict, per-kind field decoding.
func NewStep(stepID string, action StepAction) (Step, error) {
	if stepID == "" {
		return Step{}, invalid("step_id", "step_id must be non-empty")
	}
	if action == nil {
		return Step{}, invalid(stepID, "action must be set")
	}
	path := fmt.Sprintf("step[%s]", stepID)
	var err error
	switch a := action.(type) {
	case FilterComparison:
		_, err = newFilterComparison(path, a)
	case FilterInList:
		_, err = newFilterInList(path, a)
	case FilterIsNull:
		_, err = newFilterIsNull(path, a)
	case JoinLeft:
		_, err = newJoinLeft(path, a)
	}
	if err != nil {
		return Step{}, err
	}
	return Step{StepID: stepID, Action: action}, nil
}

// stepEnvelope describes the wire shape of a Step: step_id, kind, plus the
// raw fields of whichever variant kind names. UnmarshalJSON does not decode
// through this type: it reads step_id/kind out of a map of raw fields, then
// strictly decodes the remainder against the exact field set of that one
// variant.
type stepEnvelope struct {
	StepID string          `json:"step_id"`
	Kind   StepKind        `json:"kind"`
	Fields json.RawMessage `json:"-"`
}

// MarshalJSON renders a Step as {"step_id", "kind", <variant fields...>}.
func (s Step) MarshalJSON() ([]byte, error) {
	actionJSON, err := json.Marshal(s.Action)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(actionJSON, &fields); err != nil {
		return nil, err
	}
	fields["step_id"] = mustMarshal(s.StepID)
	fields["kind"] = mustMarshal(s.Action.Kind())
	return json.Marshal(fields)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// UnmarshalJSON enforces the discriminated-union contract: an unrecognized
// kind, or a field not belonging to that kind's closed set, is rejected.
func (s *Step) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&all); err != nil {
		return err
	}

	stepIDRaw, ok := all["step_id"]
	if !ok {
		return invalid("step", "step_id is required")
	}
	var stepID string
	if err := json.Unmarshal(stepIDRaw, &stepID); err != nil {
		return invalid("step.step_id", "step_id must be a string")
	}
	delete(all, "step_id")

	kindRaw, ok := all["kind"]
	if !ok {
		return invalid("step["+stepID+"]", "kind is required")
	}
	var kind StepKind
	if err := json.Unmarshal(kindRaw, &kind); err != nil {
		return invalid("step["+stepID+"].kind", "kind must be a string")
	}
	delete(all, "kind")

	remainder, err := json.Marshal(all)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("step[%s]", stepID)
	switch kind {
	case StepFilterComparison:
		var f FilterComparison
		if err := decodeStrict(remainder, &f); err != nil {
			return invalid(path, "filter_comparison: %v", err)
		}
		f, err := newFilterComparison(path, f)
		if err != nil {
			return err
		}
		*s = Step{StepID: stepID, Action: f}
	case StepFilterInList:
		var f FilterInList
		if err := decodeStrict(remainder, &f); err != nil {
			return invalid(path, "filter_in_list: %v", err)
		}
		f, err := newFilterInList(path, f)
		if err != nil {
			return err
		}
		*s = Step{StepID: stepID, Action: f}
	case StepFilterIsNull:
		var f FilterIsNull
		if err := decodeStrict(remainder, &f); err != nil {
			return invalid(path, "filter_is_null: %v", err)
		}
		f, err := newFilterIsNull(path, f)
		if err != nil {
			return err
		}
		*s = Step{StepID: stepID, Action: f}
	case StepJoinLeft:
		var j JoinLeft
		if err := decodeStrict(remainder, &j); err != nil {
			return invalid(path, "join_left: %v", err)
		}
		j, err := newJoinLeft(path, j)
		if err != nil {
			return err
		}
		*s = Step{StepID: stepID, Action: j}
	default:
		return invalid(path+".kind", "unknown step kind %q", kind)
	}
	return nil
}

// decodeStrict re-decodes data into target, rejecting any key not present
// in target's JSON field set — this is what makes each union variant a
// closed schema rather than merely a superset struct.
func decodeStrict(data []byte, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
