// Package sqlgen provides the only primitives in this repository allowed
// to compose SQL text: literal quoting, identifier validation, and
// interval rendering. No other package builds SQL strings directly — the
// compiler calls through here for every fragment it emits.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/withobsrvr/control-verify/value"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// UnsafeIdentifier is returned when a name does not match the closed
// identifier grammar and would otherwise require quoting or escaping to
// render — rejected outright rather than escaped, since this is the
// injection boundary.
type UnsafeIdentifier struct {
	Name string
}

func (e *UnsafeIdentifier) Error() string {
	return fmt.Sprintf("sqlgen: identifier %q is not a safe bare identifier", e.Name)
}

// Identifier validates and returns name unchanged if it matches
// [A-Za-z_][A-Za-z0-9_]*, the only identifier shape this compiler emits or
// accepts. Anything else — spaces, quotes, dots embedded in a single
// segment, SQL keywords used adversarially — is rejected at compile time.
func Identifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", &UnsafeIdentifier{Name: name}
	}
	return name, nil
}

// QualifiedIdentifier validates and renders "<dataset>.<column>".
func QualifiedIdentifier(dataset, column string) (string, error) {
	d, err := Identifier(dataset)
	if err != nil {
		return "", err
	}
	c, err := Identifier(column)
	if err != nil {
		return "", err
	}
	return d + "." + c, nil
}

// NonNullLiteral is returned when Literal is called with a null scalar —
// the compiler must rewrite null comparisons to IS NULL/IS NOT NULL before
// reaching the emitter; the emitter refuses to render NULL as a literal so
// that "= NULL" can never appear in generated SQL.
type NonNullLiteral struct{}

func (e *NonNullLiteral) Error() string {
	return "sqlgen: null must be rendered via IS NULL / IS NOT NULL, never as a literal"
}

// Literal renders a non-null scalar as a SQL literal:
//   - strings: single-quoted, with every embedded apostrophe doubled
//   - integers, floats, booleans: canonical SQL literal form
//   - dates: DATE '...' ; timestamps: TIMESTAMP '...'
//
// Literal never receives a null scalar — the compiler rewrites those to
// IS NULL / IS NOT NULL before any fragment reaches this function.
func Literal(v value.Scalar) (string, error) {
	switch v.Kind() {
	case value.KindNull:
		return "", &NonNullLiteral{}
	case value.KindString:
		escaped := strings.ReplaceAll(v.StringVal(), "'", "''")
		return "'" + escaped + "'", nil
	case value.KindInt:
		return fmt.Sprintf("%d", v.IntVal()), nil
	case value.KindFloat:
		return fmt.Sprintf("%v", v.FloatVal()), nil
	case value.KindBool:
		if v.BoolVal() {
			return "TRUE", nil
		}
		return "FALSE", nil
	case value.KindDate:
		return "DATE '" + v.TimeVal().Format("2006-01-02") + "'", nil
	case value.KindTimestamp:
		return "TIMESTAMP '" + v.TimeVal().Format("2006-01-02 15:04:05") + "'", nil
	default:
		return "", fmt.Errorf("sqlgen: unknown scalar kind %q", v.Kind())
	}
}

// Interval renders a signed day offset as INTERVAL <n> DAY.
func Interval(days int) string {
	return fmt.Sprintf("INTERVAL %d DAY", days)
}

// LiteralList renders a non-empty list of scalars as a parenthesized,
// comma-separated literal list suitable for IN (...) / NOT IN (...).
func LiteralList(values []value.Scalar) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		lit, err := Literal(v)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}
