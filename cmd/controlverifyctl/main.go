// Command controlverifyctl is the reference driver: it loads a
// specification and a manifest from disk, compiles and validates the
// query, executes it against the evidence, resolves a verdict, records
// the run in the audit ledger, and prints the Execution Report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/withobsrvr/control-verify/canon"
	"github.com/withobsrvr/control-verify/compiler"
	"github.com/withobsrvr/control-verify/engine"
	"github.com/withobsrvr/control-verify/ledger"
	"github.com/withobsrvr/control-verify/manifest"
	"github.com/withobsrvr/control-verify/obscfg"
	"github.com/withobsrvr/control-verify/obslog"
	"github.com/withobsrvr/control-verify/schema"
	"github.com/withobsrvr/control-verify/spec"
	"github.com/withobsrvr/control-verify/verdict"
)

// executionReport is the JSON shape of the Execution Report (§3),
// verbatim in field names, plus an audit fingerprint binding the report
// to the specification version and manifest hashes it was tested
// against.
type executionReport struct {
	ExecutionID          string                   `json:"execution_id"`
	ControlID            string                   `json:"control_id"`
	SpecificationVersion string                   `json:"specification_version"`
	QueryText            string                   `json:"query_text"`
	ManifestHashes       map[string]string        `json:"manifest_hashes"`
	TotalPopulation      int64                    `json:"total_population"`
	ExceptionCount       int64                    `json:"exception_count"`
	ExceptionRatePercent float64                  `json:"exception_rate_percent"`
	ExceptionsSample     []map[string]interface{} `json:"exceptions_sample"`
	Verdict              string                   `json:"verdict"`
	ErrorKind            string                   `json:"error_kind,omitempty"`
	ErrorMessage         string                   `json:"error_message,omitempty"`
	ExecutedAt           time.Time                `json:"executed_at"`
	AuditFingerprint     string                   `json:"audit_fingerprint"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to driver config")
	specPath := flag.String("spec", "", "path to the control specification JSON document")
	manifestPath := flag.String("manifest", "", "path to the evidence manifest JSON document")
	flag.Parse()

	logger := obslog.New("controlverifyctl")

	if *specPath == "" || *manifestPath == "" {
		logger.Fatal().Msg("both -spec and -manifest are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *specPath, *manifestPath); err != nil {
		logger.Fatal().Err(err).Msg("control verification failed")
	}
}

func run(ctx context.Context, logger *obslog.ComponentLogger, configPath, specPath, manifestPath string) error {
	cfg, err := obscfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cs, err := loadSpecification(specPath)
	if err != nil {
		return fmt.Errorf("load specification: %w", err)
	}

	m, err := loadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	executionID := uuid.New()
	scoped := logger.ForExecution(obslog.ExecutionFields{
		ControlID:   cs.Governance.ControlID,
		Version:     cs.Governance.Version,
		ExecutionID: executionID.String(),
	})

	plan, err := compiler.Compile(cs, m)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	if err := schema.Validate(plan, schema.ChecksFor(cs)); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	sess, err := engine.NewSession(ctx, sessionPath(cfg), cfg.Engine.MemoryLimitMB)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	runCtx, cancel := withEngineDeadline(ctx, cfg.Engine.TimeoutSeconds)
	defer cancel()

	start := time.Now()
	result, err := engine.Execute(runCtx, sess, plan, cfg.Engine.MaxExceptionSample)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	var v verdict.Result
	if result.ErrorKind != engine.KindNone {
		// The engine itself failed (compile rejection, execution failure,
		// or cancellation) — §7 still requires a report and a ledger entry
		// with verdict ERROR, not a verdict derived from zero counts.
		v = verdict.Result{
			Verdict:      verdict.Error,
			ErrorKind:    verdict.ErrorKind(result.ErrorKind),
			ErrorMessage: result.ErrorMessage,
		}
	} else {
		v = verdict.Resolve(cs.Population.BaseDataset, result.TotalPopulation, result.ExceptionCount, cs.Assertions)
	}
	scoped.LogVerdict(string(v.Verdict), result.TotalPopulation, result.ExceptionCount, v.ExceptionRatePercent, time.Since(start))

	manifestHashes := manifestHashesFor(cs, m)
	report := buildReport(executionID, cs, plan, result, v, manifestHashes)

	led, err := ledger.Open(ctx, cfg.Ledger.DSN())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer led.Close()

	if err := led.RecordExecution(ctx, ledger.ExecutionRecord{
		ExecutionID:          executionID,
		Specification:        cs,
		ApprovalMetadata:     map[string]interface{}{},
		ManifestEntries:      m.Entries(),
		ManifestHashes:       manifestHashes,
		QueryText:            plan.SQL,
		Verdict:              string(v.Verdict),
		ErrorKind:            string(v.ErrorKind),
		ErrorMessage:         v.ErrorMessage,
		TotalPopulation:      result.TotalPopulation,
		ExceptionCount:       result.ExceptionCount,
		ExceptionRatePercent: v.ExceptionRatePercent,
		ExceptionSample:      result.ExceptionSample,
		ExecutedAt:           report.ExecutedAt,
	}); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func loadSpecification(path string) (*spec.ControlSpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return spec.Parse(data)
}

func loadManifest(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}

// withEngineDeadline bounds a run by the configured timeout (§4.9); zero or
// negative leaves ctx's own deadline, if any, untouched.
func withEngineDeadline(ctx context.Context, timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
}

func sessionPath(cfg *obscfg.Config) string {
	if cfg.Engine.WorkspaceDir == "" {
		return ":memory:"
	}
	return cfg.Engine.WorkspaceDir + "/session.duckdb"
}

func manifestHashesFor(cs *spec.ControlSpecification, m *manifest.Manifest) map[string]string {
	hashes := make(map[string]string)
	for _, alias := range m.Aliases() {
		if hash, ok := m.HashOf(alias); ok {
			hashes[alias] = hash
		}
	}
	return hashes
}

func buildReport(
	executionID uuid.UUID,
	cs *spec.ControlSpecification,
	plan *compiler.Plan,
	result *engine.Result,
	v verdict.Result,
	manifestHashes map[string]string,
) executionReport {
	report := executionReport{
		ExecutionID:          executionID.String(),
		ControlID:            cs.Governance.ControlID,
		SpecificationVersion: cs.Governance.Version,
		QueryText:            plan.SQL,
		ManifestHashes:       manifestHashes,
		TotalPopulation:      result.TotalPopulation,
		ExceptionCount:       result.ExceptionCount,
		ExceptionRatePercent: v.ExceptionRatePercent,
		ExceptionsSample:     result.ExceptionSample,
		Verdict:              string(v.Verdict),
		ErrorKind:            string(v.ErrorKind),
		ErrorMessage:         v.ErrorMessage,
		ExecutedAt:           time.Now().UTC(),
	}

	fingerprint, err := canon.Hash(map[string]interface{}{
		"control_id":      report.ControlID,
		"version":         report.SpecificationVersion,
		"manifest_hashes": report.ManifestHashes,
		"query_text":      report.QueryText,
	})
	if err == nil {
		report.AuditFingerprint = fingerprint
	}
	return report
}
