package schema

import (
	"testing"

	"github.com/withobsrvr/control-verify/compiler"
	"github.com/withobsrvr/control-verify/manifest"
)

func plan(cols ...compiler.ColumnOrigin) *compiler.Plan {
	return &compiler.Plan{FinalColumns: cols}
}

func TestValidateAcceptsResolvableFields(t *testing.T) {
	p := plan(
		compiler.ColumnOrigin{Name: "status", LogicalType: manifest.TypeString},
		compiler.ColumnOrigin{Name: "amount", LogicalType: manifest.TypeNumeric},
	)
	err := Validate(p, []FieldCheck{
		{Field: "status", Kind: CheckAny},
		{Field: "amount", Kind: CheckNumeric},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsSchemaDriftWithNearestColumns(t *testing.T) {
	p := plan(
		compiler.ColumnOrigin{Name: "trade_status", LogicalType: manifest.TypeString},
		compiler.ColumnOrigin{Name: "trade_date", LogicalType: manifest.TypeDate},
		compiler.ColumnOrigin{Name: "settlement_date", LogicalType: manifest.TypeDate},
	)
	err := Validate(p, []FieldCheck{{Field: "trade_statuss", Kind: CheckAny}})
	if err == nil {
		t.Fatal("expected SchemaDrift")
	}
	drift, ok := err.(*SchemaDrift)
	if !ok {
		t.Fatalf("expected *SchemaDrift, got %T", err)
	}
	if len(drift.Candidates) == 0 || drift.Candidates[0] != "trade_status" {
		t.Errorf("expected nearest candidate trade_status first, got %v", drift.Candidates)
	}
	if len(drift.Candidates) > 3 {
		t.Errorf("expected at most 3 candidates, got %d", len(drift.Candidates))
	}
}

func TestValidateRejectsNumericComparisonOnStringColumn(t *testing.T) {
	p := plan(compiler.ColumnOrigin{Name: "amount", LogicalType: manifest.TypeString})
	err := Validate(p, []FieldCheck{{Field: "amount", Kind: CheckNumeric}})
	if _, ok := err.(*TypeMismatch); !ok {
		t.Fatalf("expected *TypeMismatch, got %T: %v", err, err)
	}
}

func TestValidateRejectsTemporalMathOnStringColumn(t *testing.T) {
	p := plan(compiler.ColumnOrigin{Name: "event_date", LogicalType: manifest.TypeString})
	err := Validate(p, []FieldCheck{{Field: "event_date", Kind: CheckTemporal}})
	if _, ok := err.(*TypeMismatch); !ok {
		t.Fatalf("expected *TypeMismatch, got %T: %v", err, err)
	}
}

func TestLevenshteinBasic(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
