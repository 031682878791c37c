// Package ledger implements the append-only audit ledger (§4.11): the
// only shared mutable store in the system. It persists specifications,
// manifests, and executions to Postgres and exposes integrity checks over
// what it has written. Writes are idempotent by primary key; nothing here
// ever issues an UPDATE against a row once inserted.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/withobsrvr/control-verify/canon"
	"github.com/withobsrvr/control-verify/manifest"
	"github.com/withobsrvr/control-verify/spec"
)

// Ledger owns the connection pool to the audit store.
type Ledger struct {
	db *sql.DB
}

// Open connects to dsn, verifies reachability, and brings the schema up to
// date via the embedded migrations.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ExecutionRecord is everything a single control run contributes to the
// ledger: the specification it ran, the manifest entries it read, the
// query that was executed, and the verdict it reached.
type ExecutionRecord struct {
	ExecutionID          uuid.UUID
	Specification        *spec.ControlSpecification
	ApprovalMetadata     map[string]interface{}
	ManifestEntries      []manifest.Entry
	ManifestHashes       map[string]string
	QueryText            string
	Verdict              string
	ErrorKind            string
	ErrorMessage         string
	TotalPopulation      int64
	ExceptionCount       int64
	ExceptionRatePercent float64
	ExceptionSample      []map[string]interface{}
	ExecutedAt           time.Time
}

// RecordExecution persists rec in a single transaction covering the
// Executions row and any Manifests rows not already on file (§5,
// "Shared resources"). A cancellation observed before the transaction
// commits rolls the write back atomically: the control never appears in
// a partially written state.
func (l *Ledger) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteFailed{Stage: "begin", Err: err}
	}
	defer tx.Rollback()

	specJSON, err := canon.JSON(rec.Specification)
	if err != nil {
		return &WriteFailed{Stage: "marshal specification", Err: err}
	}
	approvalJSON, err := json.Marshal(rec.ApprovalMetadata)
	if err != nil {
		return &WriteFailed{Stage: "marshal approval metadata", Err: err}
	}

	gov := rec.Specification.Governance
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO specifications (control_id, version, specification_json, approval_metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (control_id, version) DO NOTHING
	`, gov.ControlID, gov.Version, specJSON, approvalJSON); err != nil {
		return &WriteFailed{Stage: "insert specification", Err: err}
	}

	for _, entry := range rec.ManifestEntries {
		if err := recordManifestEntry(ctx, tx, entry); err != nil {
			return &WriteFailed{Stage: "insert manifest " + entry.Alias, Err: err}
		}
	}

	manifestHashesJSON, err := json.Marshal(rec.ManifestHashes)
	if err != nil {
		return &WriteFailed{Stage: "marshal manifest hashes", Err: err}
	}
	sampleJSON, err := sanitizedSampleJSON(rec.ExceptionSample)
	if err != nil {
		return &WriteFailed{Stage: "marshal exception sample", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO executions (
			execution_id, control_id, version, manifest_hashes, query_text, verdict,
			error_kind, error_message, total_population, exception_count,
			exception_rate_percent, exception_sample, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (execution_id) DO NOTHING
	`,
		rec.ExecutionID, gov.ControlID, gov.Version, manifestHashesJSON, rec.QueryText, rec.Verdict,
		rec.ErrorKind, rec.ErrorMessage, rec.TotalPopulation, rec.ExceptionCount,
		rec.ExceptionRatePercent, sampleJSON, rec.ExecutedAt,
	); err != nil {
		return &WriteFailed{Stage: "insert execution", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &WriteFailed{Stage: "commit", Err: err}
	}
	return nil
}

// DatasetIntegrity is one row of the execution_integrity view: whether a
// single dataset bound into an execution still matches its current
// manifest hash.
type DatasetIntegrity struct {
	DatasetAlias string
	BoundHash    string
	CurrentHash  string
	Valid        bool
}

// Integrity returns the per-dataset integrity verdicts for executionID, as
// reported by the read-only execution_integrity view (§4.11).
func (l *Ledger) Integrity(ctx context.Context, executionID uuid.UUID) ([]DatasetIntegrity, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT dataset_alias, bound_hash, COALESCE(current_hash, ''), valid
		FROM execution_integrity
		WHERE execution_id = $1
		ORDER BY dataset_alias
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query integrity: %w", err)
	}
	defer rows.Close()

	var results []DatasetIntegrity
	for rows.Next() {
		var d DatasetIntegrity
		if err := rows.Scan(&d.DatasetAlias, &d.BoundHash, &d.CurrentHash, &d.Valid); err != nil {
			return nil, fmt.Errorf("ledger: scan integrity row: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: integrity rows: %w", err)
	}
	return results, nil
}

func recordManifestEntry(ctx context.Context, tx *sql.Tx, entry manifest.Entry) error {
	sourceJSON, err := json.Marshal(entry.SourceMetadata)
	if err != nil {
		return err
	}
	fingerprint, err := schemaFingerprint(entry.Columns)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO manifests (dataset_alias, content_hash, path, row_count, schema_fingerprint, source_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dataset_alias, content_hash) DO NOTHING
	`, entry.Alias, entry.ContentHash, entry.Path, entry.RowCount, fingerprint, sourceJSON)
	return err
}

// schemaFingerprint derives a stable identifier for a manifest's column
// layout, independent of the content hash of the underlying bytes.
func schemaFingerprint(columns []manifest.Column) (string, error) {
	return canon.Hash(columns)
}

func sanitizedSampleJSON(sample []map[string]interface{}) ([]byte, error) {
	if sample == nil {
		sample = []map[string]interface{}{}
	}
	return json.Marshal(sample)
}
