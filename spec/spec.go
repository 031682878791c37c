// Package spec implements the Control Specification model: a closed
// algebra of pipeline steps and assertions whose validity is enforced at
// construction time (§4.2) and which is the sole input contract to the
// compiler. Construction never reads the Evidence Manifest — manifest-
// dependent checks (does base_dataset exist, does a field resolve to a
// physical column) belong to the compiler and schema validator, which run
// after a Specification already exists.
package spec

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ControlSpecification is the immutable, validated input to the compiler.
type ControlSpecification struct {
	Governance       Governance        `json:"governance"`
	OntologyBindings []OntologyBinding `json:"ontology_bindings"`
	Population       Population        `json:"population"`
	Assertions       []Assertion       `json:"assertions"`
	Evidence         Evidence          `json:"evidence"`
}

// New validates and constructs a ControlSpecification from already-built
// components — the path Go callers use. Document callers (JSON) should use
// Parse, which performs closed-schema key rejection first.
func New(g Governance, ontology []OntologyBinding, pop Population, assertions []Assertion, ev Evidence) (*ControlSpecification, error) {
	cs := &ControlSpecification{
		Governance:       g,
		OntologyBindings: ontology,
		Population:       pop,
		Assertions:       assertions,
		Evidence:         ev,
	}
	if err := cs.validate(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *ControlSpecification) validate() error {
	if err := cs.Governance.validate("governance"); err != nil {
		return err
	}
	for i, b := range cs.OntologyBindings {
		if err := b.validate(ontologyPath(i)); err != nil {
			return err
		}
	}
	if err := cs.Population.validate("population"); err != nil {
		return err
	}
	if len(cs.Assertions) == 0 {
		return invalid("assertions", "assertions must be non-empty")
	}

	aggregationCount := 0
	rowLevelCount := 0
	seenIDs := map[string]bool{}
	for i, a := range cs.Assertions {
		path := assertionPath(i, a.AssertionID)
		if a.AssertionID == "" {
			return invalid(path, "assertion_id must be non-empty")
		}
		if seenIDs[a.AssertionID] {
			return invalid(path, "duplicate assertion_id %q", a.AssertionID)
		}
		seenIDs[a.AssertionID] = true
		if a.MaterialityThresholdPercent < 0 || a.MaterialityThresholdPercent > 100 {
			return invalid(path+".materiality_threshold_percent", "must be within [0, 100]")
		}
		if a.Body == nil {
			return invalid(path, "body must be set")
		}
		if _, ok := a.Body.(Aggregation); ok {
			aggregationCount++
		} else {
			rowLevelCount++
		}
	}
	if aggregationCount > 1 {
		return invalid("assertions", "at most one aggregation assertion is permitted per specification")
	}
	if aggregationCount > 0 && rowLevelCount > 0 {
		return invalid("assertions", "aggregation and row-level assertions cannot coexist in one specification")
	}

	return cs.Evidence.validate("evidence")
}

// HasAggregation reports whether this specification uses the aggregation
// query shape (exactly one Aggregation assertion) rather than the
// row-level shape.
func (cs *ControlSpecification) HasAggregation() bool {
	for _, a := range cs.Assertions {
		if _, ok := a.Body.(Aggregation); ok {
			return true
		}
	}
	return false
}

// AggregationAssertion returns the specification's single aggregation assertion, if
// HasAggregation is true.
func (cs *ControlSpecification) AggregationAssertion() (Assertion, bool) {
	for _, a := range cs.Assertions {
		if _, ok := a.Body.(Aggregation); ok {
			return a, true
		}
	}
	return Assertion{}, false
}

func ontologyPath(i int) string {
	return "ontology_bindings[" + strconv.Itoa(i) + "]"
}

func assertionPath(i int, id string) string {
	if id != "" {
		return "assertions[" + id + "]"
	}
	return "assertions[" + strconv.Itoa(i) + "]"
}

// Parse decodes a JSON document into a ControlSpecification, rejecting any
// top-level key outside {governance, ontology_bindings, population,
// assertions, evidence} (extra_fields forbidden, §3) before running the
// same structural validation New performs.
func Parse(data []byte) (*ControlSpecification, error) {
	type wire struct {
		Governance       Governance        `json:"governance"`
		OntologyBindings []OntologyBinding `json:"ontology_bindings"`
		Population       Population        `json:"population"`
		Assertions       []Assertion       `json:"assertions"`
		Evidence         Evidence          `json:"evidence"`
	}
	var w wire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, invalid("", "%v", err)
	}
	return New(w.Governance, w.OntologyBindings, w.Population, w.Assertions, w.Evidence)
}
