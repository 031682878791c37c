package value

// Operator is the closed set of comparison operators a filter or assertion
// may use. Each operator maps to exactly one SQL infix token; the mapping
// is total and lives here, not in the emitter, so admissibility checks and
// rendering stay consistent.
type Operator string

const (
	Eq    Operator = "eq"
	Neq   Operator = "neq"
	Gt    Operator = "gt"
	Gte   Operator = "gte"
	Lt    Operator = "lt"
	Lte   Operator = "lte"
	In    Operator = "in"
	NotIn Operator = "not_in"
)

// sqlInfix is the total ordering table from operator to SQL token.
var sqlInfix = map[Operator]string{
	Eq:    "=",
	Neq:   "<>",
	Gt:    ">",
	Gte:   ">=",
	Lt:    "<",
	Lte:   "<=",
	In:    "IN",
	NotIn: "NOT IN",
}

// SQLInfix returns the SQL infix token for op, and false if op is unknown.
func SQLInfix(op Operator) (string, bool) {
	tok, ok := sqlInfix[op]
	return tok, ok
}

// Valid reports whether op belongs to the closed operator set.
func (op Operator) Valid() bool {
	_, ok := sqlInfix[op]
	return ok
}

// IsOrdered reports whether op imposes an ordering (as opposed to equality
// or membership) — used to reject ordered comparisons against list values
// or null at specification-construction time.
func (op Operator) IsOrdered() bool {
	switch op {
	case Gt, Gte, Lt, Lte:
		return true
	default:
		return false
	}
}

// IsEquality reports whether op is eq or neq — the only operators
// admissible against a null expected value.
func (op Operator) IsEquality() bool {
	return op == Eq || op == Neq
}

// IsMembership reports whether op operates over a list of values.
func (op Operator) IsMembership() bool {
	return op == In || op == NotIn
}

// comparisonOperators is the subset usable by FilterComparison and
// ColumnComparison steps (row-to-literal and row-to-row respectively) —
// membership operators don't apply to single-field comparisons.
var comparisonOperators = map[Operator]bool{
	Eq: true, Neq: true, Gt: true, Gte: true, Lt: true, Lte: true,
}

// IsComparisonOperator reports whether op may be used in a FilterComparison
// or ColumnComparison (i.e. excludes In/NotIn).
func IsComparisonOperator(op Operator) bool {
	return comparisonOperators[op]
}
