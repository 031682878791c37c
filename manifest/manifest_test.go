package manifest

import "testing"

const validHash = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func TestNewEntryValidation(t *testing.T) {
	goodCols := []Column{{Name: "trade_id", LogicalType: TypeString}}

	tests := []struct {
		name    string
		alias   string
		path    string
		hash    string
		rows    int64
		columns []Column
		wantErr bool
	}{
		{"valid", "equity_settlements", "/data/equity.parquet", validHash, 100, goodCols, false},
		{"empty alias", "", "/data/x.parquet", validHash, 1, goodCols, true},
		{"empty path", "a", "", validHash, 1, goodCols, true},
		{"bad hash", "a", "/x", "nothex", 1, goodCols, true},
		{"negative rows", "a", "/x", validHash, -1, goodCols, true},
		{"dup column", "a", "/x", validHash, 1, []Column{{Name: "x", LogicalType: TypeString}, {Name: "x", LogicalType: TypeNumeric}}, true},
		{"bad logical type", "a", "/x", validHash, 1, []Column{{Name: "x", LogicalType: "weird"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntry(tt.alias, tt.path, tt.hash, tt.rows, tt.columns, SourceMetadata{})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEntry() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManifestAccessors(t *testing.T) {
	e, err := NewEntry("trades", "/data/trades.parquet", validHash, 20000,
		[]Column{{Name: "trade_status", LogicalType: TypeString}}, SourceMetadata{OriginSystem: "OMS"})
	if err != nil {
		t.Fatal(err)
	}

	m, err := New([]Entry{e})
	if err != nil {
		t.Fatal(err)
	}

	if !m.Has("trades") {
		t.Fatal("expected manifest to have alias trades")
	}
	if path, ok := m.PathOf("trades"); !ok || path != "/data/trades.parquet" {
		t.Errorf("PathOf = %q, %v", path, ok)
	}
	if hash, ok := m.HashOf("trades"); !ok || hash != validHash {
		t.Errorf("HashOf = %q, %v", hash, ok)
	}
	if rows, ok := m.RowCountOf("trades"); !ok || rows != 20000 {
		t.Errorf("RowCountOf = %d, %v", rows, ok)
	}
	cols, ok := m.ColumnsOf("trades")
	if !ok || len(cols) != 1 || cols[0].Name != "trade_status" {
		t.Errorf("ColumnsOf = %v, %v", cols, ok)
	}
	if _, ok := m.Entry("missing"); ok {
		t.Error("expected missing alias to be absent")
	}
}

func TestManifestRejectsDuplicateAlias(t *testing.T) {
	e1, _ := NewEntry("a", "/x", validHash, 1, nil, SourceMetadata{})
	e2, _ := NewEntry("a", "/y", validHash, 2, nil, SourceMetadata{})

	if _, err := New([]Entry{e1, e2}); err == nil {
		t.Error("expected duplicate alias to be rejected")
	}
}

func TestParseRoundTripsEntries(t *testing.T) {
	data := []byte(`[
		{
			"alias": "trades",
			"path": "/data/trades.parquet",
			"content_hash": "` + validHash + `",
			"row_count": 100,
			"columns": [{"name": "trade_id", "logical_type": "string"}],
			"source_metadata": {"origin_system": "OMS", "extraction_instant": "2026-01-01T00:00:00Z", "schema_version": "v1"}
		}
	]`)

	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.Has("trades") {
		t.Fatal("expected parsed manifest to have alias trades")
	}
	if hash, _ := m.HashOf("trades"); hash != validHash {
		t.Errorf("HashOf = %q", hash)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	data := []byte(`[{"alias": "a", "path": "/x", "content_hash": "` + validHash + `", "row_count": 1, "bogus_field": true}]`)
	if _, err := Parse(data); err == nil {
		t.Error("Parse() with unknown field = nil error, want error")
	}
}
