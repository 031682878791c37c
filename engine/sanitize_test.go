package engine

import (
	"math"
	"testing"
	"time"
)

func TestSanitizeValueTimeIsISO8601(t *testing.T) {
	ts := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	got := sanitizeValue(ts)
	want := "2026-03-15T09:30:00Z"
	if got != want {
		t.Errorf("sanitizeValue(time) = %v, want %v", got, want)
	}
}

func TestSanitizeValueNaNBecomesNull(t *testing.T) {
	if got := sanitizeValue(math.NaN()); got != nil {
		t.Errorf("sanitizeValue(NaN) = %v, want nil", got)
	}
	if got := sanitizeValue(math.Inf(1)); got != nil {
		t.Errorf("sanitizeValue(+Inf) = %v, want nil", got)
	}
}

func TestSanitizeValuePassesThroughPlainTypes(t *testing.T) {
	if got := sanitizeValue(int64(42)); got != int64(42) {
		t.Errorf("sanitizeValue(int64) = %v, want 42", got)
	}
	if got := sanitizeValue("x"); got != "x" {
		t.Errorf("sanitizeValue(string) = %v, want x", got)
	}
	if got := sanitizeValue(nil); got != nil {
		t.Errorf("sanitizeValue(nil) = %v, want nil", got)
	}
	if got := sanitizeValue(true); got != true {
		t.Errorf("sanitizeValue(bool) = %v, want true", got)
	}
}

func TestSanitizeValueBytesBecomeString(t *testing.T) {
	if got := sanitizeValue([]byte("hello")); got != "hello" {
		t.Errorf("sanitizeValue([]byte) = %v, want hello", got)
	}
}

func TestScanRowBuildsMapKeyedByColumn(t *testing.T) {
	cols := []string{"id", "status"}
	dest := []interface{}{int64(1), "OK"}
	row := scanRow(cols, dest)
	if row["id"] != int64(1) || row["status"] != "OK" {
		t.Errorf("scanRow() = %v", row)
	}
}
