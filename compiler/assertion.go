package compiler

import (
	"fmt"
	"strings"

	"github.com/withobsrvr/control-verify/spec"
	"github.com/withobsrvr/control-verify/sqlgen"
	"github.com/withobsrvr/control-verify/value"
)

// compileAssertionExpr renders an assertion's boolean expression E, before
// the (E) IS NOT TRUE wrapping exceptionPredicate applies (§4.6).
func compileAssertionExpr(body spec.AssertionBody) (string, error) {
	switch b := body.(type) {
	case spec.ValueMatch:
		return compileValueMatch(b)
	case spec.ColumnComparison:
		return compileColumnComparison(b)
	case spec.TemporalDateMath:
		return compileTemporalDateMath(b)
	case spec.Aggregation:
		return compileAggregationPredicate(b)
	default:
		return "", fmt.Errorf("compiler: unhandled assertion kind %q", body.Kind())
	}
}

func compileValueMatch(v spec.ValueMatch) (string, error) {
	field, err := sqlgen.Identifier(v.Field)
	if err != nil {
		return "", err
	}

	if v.Operator.IsMembership() {
		members := v.ExpectedList
		if v.IgnoreCaseAndSpace {
			field = fmt.Sprintf("TRIM(UPPER(CAST(%s AS VARCHAR)))", field)
			members = foldMembers(members)
		}
		list, err := sqlgen.LiteralList(members)
		if err != nil {
			return "", err
		}
		infix, _ := value.SQLInfix(v.Operator)
		return field + " " + infix + " " + list, nil
	}

	if v.ExpectedValue.IsNull() {
		if v.Operator == value.Neq {
			return field + " IS NOT NULL", nil
		}
		return field + " IS NULL", nil
	}

	infix, ok := value.SQLInfix(v.Operator)
	if !ok {
		return "", fmt.Errorf("compiler: operator %q has no SQL infix", v.Operator)
	}

	if v.IgnoreCaseAndSpace && v.ExpectedValue.IsString() {
		lit, err := sqlgen.Literal(v.ExpectedValue)
		if err != nil {
			return "", err
		}
		left := fmt.Sprintf("TRIM(UPPER(CAST(%s AS VARCHAR)))", field)
		right := fmt.Sprintf("TRIM(UPPER(CAST(%s AS VARCHAR)))", lit)
		return left + " " + infix + " " + right, nil
	}

	lit, err := sqlgen.Literal(v.ExpectedValue)
	if err != nil {
		return "", err
	}
	return field + " " + infix + " " + lit, nil
}

// foldMembers upper-cases and trims string members of an IN/NOT IN list so
// they compare correctly against a TRIM(UPPER(CAST(field AS VARCHAR)))-
// folded column; non-string members pass through unchanged.
func foldMembers(members []value.Scalar) []value.Scalar {
	folded := make([]value.Scalar, len(members))
	for i, m := range members {
		if m.IsString() {
			folded[i] = value.String(strings.ToUpper(strings.TrimSpace(m.StringVal())))
			continue
		}
		folded[i] = m
	}
	return folded
}

func compileColumnComparison(c spec.ColumnComparison) (string, error) {
	left, err := sqlgen.Identifier(c.LeftField)
	if err != nil {
		return "", err
	}
	right, err := sqlgen.Identifier(c.RightField)
	if err != nil {
		return "", err
	}
	infix, ok := value.SQLInfix(c.Operator)
	if !ok {
		return "", fmt.Errorf("compiler: operator %q has no SQL infix", c.Operator)
	}
	return left + " " + infix + " " + right, nil
}

func compileTemporalDateMath(tdm spec.TemporalDateMath) (string, error) {
	base, err := sqlgen.Identifier(tdm.BaseDateField)
	if err != nil {
		return "", err
	}
	target, err := sqlgen.Identifier(tdm.TargetDateField)
	if err != nil {
		return "", err
	}
	infix, ok := value.SQLInfix(tdm.Operator)
	if !ok {
		return "", fmt.Errorf("compiler: operator %q has no SQL infix", tdm.Operator)
	}
	return fmt.Sprintf("CAST(%s AS DATE) %s CAST(%s AS DATE) + %s", base, infix, target, sqlgen.Interval(tdm.OffsetDays)), nil
}

func compileAggregationPredicate(a spec.Aggregation) (string, error) {
	metric, err := sqlgen.Identifier(a.MetricField)
	if err != nil {
		return "", err
	}
	infix, ok := value.SQLInfix(a.Operator)
	if !ok {
		return "", fmt.Errorf("compiler: operator %q has no SQL infix", a.Operator)
	}
	thresholdLit, err := sqlgen.Literal(value.Float(a.Threshold))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s) %s %s", a.AggregationFunction, metric, infix, thresholdLit), nil
}

// combineExceptionPredicates OR-combines each assertion's exception
// predicate — a row is an exception when it violates at least one
// assertion (§4.6).
func combineExceptionPredicates(assertions []spec.Assertion) (string, error) {
	parts := make([]string, 0, len(assertions))
	for _, a := range assertions {
		expr, err := compileAssertionExpr(a.Body)
		if err != nil {
			return "", err
		}
		parts = append(parts, exceptionPredicate(expr))
	}
	return strings.Join(parts, " OR "), nil
}
