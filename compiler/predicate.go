package compiler

import (
	"fmt"

	"github.com/withobsrvr/control-verify/sqlgen"
	"github.com/withobsrvr/control-verify/value"
)

// renderComparison renders "<field> <op> <literal>", rewriting a null value
// to IS NULL/IS NOT NULL per §4.5. Spec construction already rejects any
// other operator paired with null, so op here is always eq or neq when v
// is null.
func renderComparison(field string, op value.Operator, v value.Scalar) (string, error) {
	ident, err := sqlgen.Identifier(field)
	if err != nil {
		return "", err
	}
	if v.IsNull() {
		if op == value.Neq {
			return ident + " IS NOT NULL", nil
		}
		return ident + " IS NULL", nil
	}
	infix, ok := value.SQLInfix(op)
	if !ok {
		return "", fmt.Errorf("compiler: operator %q has no SQL infix", op)
	}
	lit, err := sqlgen.Literal(v)
	if err != nil {
		return "", err
	}
	return ident + " " + infix + " " + lit, nil
}

// renderInList renders "<field> IN (...)".
func renderInList(field string, values []value.Scalar) (string, error) {
	ident, err := sqlgen.Identifier(field)
	if err != nil {
		return "", err
	}
	list, err := sqlgen.LiteralList(values)
	if err != nil {
		return "", err
	}
	return ident + " IN " + list, nil
}

// renderIsNull renders "<field> IS [NOT] NULL".
func renderIsNull(field string, isNull bool) (string, error) {
	ident, err := sqlgen.Identifier(field)
	if err != nil {
		return "", err
	}
	if isNull {
		return ident + " IS NULL", nil
	}
	return ident + " IS NOT NULL", nil
}

// exceptionPredicate wraps a boolean expression E as "(E) IS NOT TRUE" so a
// three-valued UNKNOWN result routes to the exception side (§4.6, §9).
func exceptionPredicate(expr string) string {
	return "(" + expr + ") IS NOT TRUE"
}
