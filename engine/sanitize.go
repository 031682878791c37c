package engine

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// scanRow builds a map keyed by column name from one scanned row's values
// (dest[i] belongs to cols[i]), sanitizing each value for the ledger's
// document format
// (§4.11): temporal values as ISO-8601, NaN and non-finite floats as an
// explicit null, everything else passed through or coerced to its
// canonical string form.
func scanRow(cols []string, dest []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cols))
	for i, name := range cols {
		out[name] = sanitizeValue(dest[i])
	}
	return out
}

func newScanDest(n int) []interface{} {
	dest := make([]interface{}, n)
	for i := range dest {
		dest[i] = new(interface{})
	}
	return dest
}

func derefScanDest(dest []interface{}) []interface{} {
	out := make([]interface{}, len(dest))
	for i, d := range dest {
		out[i] = *(d.(*interface{}))
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case sql.NullTime:
		if !x.Valid {
			return nil
		}
		return x.Time.Format(time.RFC3339)
	case float32:
		return sanitizeFloat(float64(x))
	case float64:
		return sanitizeFloat(x)
	case int64, int, int32, bool, string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

func sanitizeFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
