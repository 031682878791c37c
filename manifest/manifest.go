// Package manifest implements the Evidence Manifest model: an immutable,
// per-dataset description of a columnar evidence file, read-only to the
// compiler and execution engine and referenced — never owned — by the
// audit ledger.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/withobsrvr/control-verify/canon"
)

// LogicalType is the closed set of column types a manifest may declare.
type LogicalType string

const (
	TypeString    LogicalType = "string"
	TypeNumeric   LogicalType = "numeric"
	TypeBoolean   LogicalType = "boolean"
	TypeDate      LogicalType = "date"
	TypeTimestamp LogicalType = "timestamp"
)

func (t LogicalType) Valid() bool {
	switch t {
	case TypeString, TypeNumeric, TypeBoolean, TypeDate, TypeTimestamp:
		return true
	default:
		return false
	}
}

// Column is an ordered (name, logical_type) pair as it appears physically
// in the evidence file.
type Column struct {
	Name        string      `json:"name"`
	LogicalType LogicalType `json:"logical_type"`
}

// SourceMetadata records provenance the ingestor attached to the file.
type SourceMetadata struct {
	OriginSystem      string `json:"origin_system"`
	ExtractionInstant string `json:"extraction_instant"`
	SchemaVersion     string `json:"schema_version"`
}

// Entry is one immutable manifest record. Once constructed it never
// changes; the ledger stores entries by value, keyed on (Alias,
// ContentHash).
type Entry struct {
	Alias          string         `json:"alias"`
	Path           string         `json:"path"`
	ContentHash    string         `json:"content_hash"`
	RowCount       int64          `json:"row_count"`
	Columns        []Column       `json:"columns"`
	SourceMetadata SourceMetadata `json:"source_metadata"`
}

// Invalid reports a structural defect in a manifest entry.
type Invalid struct {
	Alias  string
	Reason string
}

func (e *Invalid) Error() string {
	return fmt.Sprintf("manifest entry %q invalid: %s", e.Alias, e.Reason)
}

func newEntry(alias, path, contentHash string, rowCount int64, columns []Column, src SourceMetadata) (Entry, error) {
	if alias == "" {
		return Entry{}, &Invalid{Alias: alias, Reason: "alias must be non-empty"}
	}
	if path == "" {
		return Entry{}, &Invalid{Alias: alias, Reason: "path must be non-empty"}
	}
	if !canon.IsHexDigest256(contentHash) {
		return Entry{}, &Invalid{Alias: alias, Reason: "content_hash must be a 64-character lower-case hex SHA-256 digest"}
	}
	if rowCount < 0 {
		return Entry{}, &Invalid{Alias: alias, Reason: "row_count must be non-negative"}
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return Entry{}, &Invalid{Alias: alias, Reason: "column name must be non-empty"}
		}
		if seen[c.Name] {
			return Entry{}, &Invalid{Alias: alias, Reason: fmt.Sprintf("duplicate column %q", c.Name)}
		}
		seen[c.Name] = true
		if !c.LogicalType.Valid() {
			return Entry{}, &Invalid{Alias: alias, Reason: fmt.Sprintf("column %q has unknown logical_type %q", c.Name, c.LogicalType)}
		}
	}

	return Entry{
		Alias:          alias,
		Path:           path,
		ContentHash:    contentHash,
		RowCount:       rowCount,
		Columns:        append([]Column(nil), columns...),
		SourceMetadata: src,
	}, nil
}

// NewEntry validates and constructs an immutable manifest entry.
func NewEntry(alias, path, contentHash string, rowCount int64, columns []Column, src SourceMetadata) (Entry, error) {
	return newEntry(alias, path, contentHash, rowCount, columns, src)
}

// Manifest is the closed set of evidence datasets available to a
// compilation. Construction is the only mutation point; all accessors are
// read-only lookups.
type Manifest struct {
	entries map[string]Entry
	order   []string
}

// New builds a Manifest from entries, rejecting duplicate aliases.
func New(entries []Entry) (*Manifest, error) {
	m := &Manifest{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if _, exists := m.entries[e.Alias]; exists {
			return nil, &Invalid{Alias: e.Alias, Reason: "duplicate alias in manifest"}
		}
		m.entries[e.Alias] = e
		m.order = append(m.order, e.Alias)
	}
	return m, nil
}

// Aliases returns all dataset aliases in manifest declaration order.
func (m *Manifest) Aliases() []string {
	return append([]string(nil), m.order...)
}

// Has reports whether alias exists in the manifest.
func (m *Manifest) Has(alias string) bool {
	_, ok := m.entries[alias]
	return ok
}

// Entry returns the manifest entry for alias.
func (m *Manifest) Entry(alias string) (Entry, bool) {
	e, ok := m.entries[alias]
	return e, ok
}

// PathOf returns the columnar file path for alias.
func (m *Manifest) PathOf(alias string) (string, bool) {
	e, ok := m.entries[alias]
	return e.Path, ok
}

// HashOf returns the content hash for alias.
func (m *Manifest) HashOf(alias string) (string, bool) {
	e, ok := m.entries[alias]
	return e.ContentHash, ok
}

// RowCountOf returns the declared row count for alias.
func (m *Manifest) RowCountOf(alias string) (int64, bool) {
	e, ok := m.entries[alias]
	return e.RowCount, ok
}

// ColumnsOf returns the ordered (name, logical_type) pairs for alias.
func (m *Manifest) ColumnsOf(alias string) ([]Column, bool) {
	e, ok := m.entries[alias]
	if !ok {
		return nil, false
	}
	return append([]Column(nil), e.Columns...), true
}

// Entries returns all manifest entries in declaration order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, alias := range m.order {
		out = append(out, m.entries[alias])
	}
	return out
}

// Parse decodes a manifest from its JSON wire representation: a flat
// array of entries, each rejecting unknown fields the same way an
// Evidence Manifest Entry's structural validation would.
func Parse(data []byte) (*Manifest, error) {
	var wire []Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}

	entries := make([]Entry, 0, len(wire))
	for _, e := range wire {
		entry, err := newEntry(e.Alias, e.Path, e.ContentHash, e.RowCount, e.Columns, e.SourceMetadata)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return New(entries)
}
