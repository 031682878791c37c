package compiler

import (
	"strings"
	"testing"

	"github.com/withobsrvr/control-verify/manifest"
	"github.com/withobsrvr/control-verify/spec"
	"github.com/withobsrvr/control-verify/value"
)

func mustManifest(t *testing.T, entries ...manifest.Entry) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New(entries)
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}
	return m
}

func mustEntry(t *testing.T, alias, path string, cols ...manifest.Column) manifest.Entry {
	t.Helper()
	e, err := manifest.NewEntry(alias, path, strings.Repeat("a", 64), 100, cols, manifest.SourceMetadata{})
	if err != nil {
		t.Fatalf("manifest.NewEntry(%s): %v", alias, err)
	}
	return e
}

func mustSpec(t *testing.T, pop spec.Population, assertions []spec.Assertion) *spec.ControlSpecification {
	t.Helper()
	cs, err := spec.New(governanceFixture(), nil, pop, assertions, evidenceFixture())
	if err != nil {
		t.Fatalf("spec.New: %v", err)
	}
	return cs
}

func governanceFixture() spec.Governance {
	return spec.Governance{
		ControlID:        "CTRL-TEST-001",
		Version:          "1.0",
		OwnerRole:        "Compliance",
		TestingFrequency: spec.Daily,
		RiskObjective:    "test",
	}
}

func evidenceFixture() spec.Evidence {
	return spec.Evidence{
		RetentionYears:        7,
		ReviewerWorkflow:      spec.RequiresHumanSignoff,
		ExceptionRoutingQueue: "q",
	}
}

func TestCompileRowLevelWithSingleFilterAndAssertion(t *testing.T) {
	m := mustManifest(t, mustEntry(t, "equity_settlements", "/data/equity_settlements.parquet",
		manifest.Column{Name: "trade_status", LogicalType: manifest.TypeString},
		manifest.Column{Name: "settlement_date", LogicalType: manifest.TypeDate},
		manifest.Column{Name: "trade_date", LogicalType: manifest.TypeDate},
	))

	filterStep, err := spec.NewStep("filter_settled", spec.FilterComparison{
		Field: "trade_status", Operator: value.Eq, Value: value.String("SETTLED"),
	})
	if err != nil {
		t.Fatal(err)
	}
	pop := spec.Population{BaseDataset: "equity_settlements", Steps: []spec.Step{filterStep}}

	assertion, err := spec.NewAssertion("A1", "settlement within 2 days", 0, spec.TemporalDateMath{
		BaseDateField: "settlement_date", Operator: value.Lte, TargetDateField: "trade_date", OffsetDays: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	cs := mustSpec(t, pop, []spec.Assertion{assertion})
	plan, err := Compile(cs, m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if !strings.Contains(plan.SQL, "trade_status = 'SETTLED'") {
		t.Errorf("expected population filter in SQL, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "CAST(settlement_date AS DATE) <= CAST(trade_date AS DATE) + INTERVAL 2 DAY") {
		t.Errorf("expected temporal date math predicate, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "IS NOT TRUE") {
		t.Errorf("expected exception predicate wrapping, got:\n%s", plan.SQL)
	}
	if plan.Aggregated {
		t.Error("expected row-level shape")
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	m := mustManifest(t, mustEntry(t, "trades", "/data/trades.parquet",
		manifest.Column{Name: "status", LogicalType: manifest.TypeString},
	))
	assertion, _ := spec.NewAssertion("A1", "desc", 1, spec.ValueMatch{
		Field: "status", Operator: value.Eq, ExpectedValue: value.String("OK"),
	})
	cs := mustSpec(t, spec.Population{BaseDataset: "trades"}, []spec.Assertion{assertion})

	p1, err := Compile(cs, m)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := Compile(cs, m)
	if err != nil {
		t.Fatal(err)
	}
	if p1.SQL != p2.SQL {
		t.Errorf("expected idempotent compilation:\n%s\n!=\n%s", p1.SQL, p2.SQL)
	}
}

func TestCompileJoinLeftWithColumnComparison(t *testing.T) {
	m := mustManifest(t,
		mustEntry(t, "trades", "/data/trades.parquet",
			manifest.Column{Name: "employee_id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "ticker_symbol", LogicalType: manifest.TypeString},
			manifest.Column{Name: "trade_date", LogicalType: manifest.TypeDate},
		),
		mustEntry(t, "wall_cross_register", "/data/wcr.parquet",
			manifest.Column{Name: "employee_id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "ticker_symbol", LogicalType: manifest.TypeString},
			manifest.Column{Name: "restriction_status", LogicalType: manifest.TypeString},
			manifest.Column{Name: "clearance_date", LogicalType: manifest.TypeDate},
		),
	)

	join, err := spec.NewStep("joined", spec.JoinLeft{
		LeftDataset: "trades", RightDataset: "wall_cross_register",
		LeftKeys: []string{"employee_id", "ticker_symbol"}, RightKeys: []string{"employee_id", "ticker_symbol"},
	})
	if err != nil {
		t.Fatal(err)
	}
	filter, err := spec.NewStep("not_null", spec.FilterIsNull{Field: "restriction_status", IsNull: false})
	if err != nil {
		t.Fatal(err)
	}
	pop := spec.Population{BaseDataset: "trades", Steps: []spec.Step{join, filter}}

	vm, _ := spec.NewAssertion("A1", "cleared", 0, spec.ValueMatch{
		Field: "restriction_status", Operator: value.Eq, ExpectedValue: value.String("CLEARED"), IgnoreCaseAndSpace: true,
	})
	cc, _ := spec.NewAssertion("A2", "trade after clearance", 0, spec.ColumnComparison{
		LeftField: "trade_date", Operator: value.Gt, RightField: "clearance_date",
	})

	cs := mustSpec(t, pop, []spec.Assertion{vm, cc})
	plan, err := Compile(cs, m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if !strings.Contains(plan.SQL, "EXCLUDE (employee_id, ticker_symbol)") {
		t.Errorf("expected EXCLUDE clause for join keys, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "base.employee_id = right.employee_id AND base.ticker_symbol = right.ticker_symbol") {
		t.Errorf("expected composite-key ON clause, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "TRIM(UPPER(CAST(restriction_status AS VARCHAR))) = TRIM(UPPER(CAST('CLEARED' AS VARCHAR)))") {
		t.Errorf("expected case/whitespace-folded value match, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "IS NOT TRUE OR (") {
		t.Errorf("expected OR-combined exception predicates, got:\n%s", plan.SQL)
	}
}

func TestCompileAggregationShape(t *testing.T) {
	m := mustManifest(t, mustEntry(t, "account_balances", "/data/ab.parquet",
		manifest.Column{Name: "account_type", LogicalType: manifest.TypeString},
		manifest.Column{Name: "calculation_date", LogicalType: manifest.TypeDate},
		manifest.Column{Name: "current_balance", LogicalType: manifest.TypeNumeric},
	))
	filter, _ := spec.NewStep("client_funds", spec.FilterComparison{
		Field: "account_type", Operator: value.Eq, Value: value.String("CLIENT_FUNDS"),
	})
	pop := spec.Population{BaseDataset: "account_balances", Steps: []spec.Step{filter}}

	agg, _ := spec.NewAssertion("A1", "segregated funds coverage", 0, spec.Aggregation{
		GroupByFields: []string{"calculation_date"}, MetricField: "current_balance",
		AggregationFunction: spec.AggSum, Operator: value.Gte, Threshold: 50000000,
	})
	cs := mustSpec(t, pop, []spec.Assertion{agg})

	plan, err := Compile(cs, m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !plan.Aggregated {
		t.Error("expected aggregation shape")
	}
	if !strings.Contains(plan.SQL, "GROUP BY calculation_date") {
		t.Errorf("expected GROUP BY clause, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "HAVING (SUM(current_balance) >= 5e+07) IS NOT TRUE") {
		t.Errorf("expected HAVING predicate, got:\n%s", plan.SQL)
	}
}

func TestCompileRejectsUnknownManifestAlias(t *testing.T) {
	m := mustManifest(t, mustEntry(t, "trades", "/data/trades.parquet", manifest.Column{Name: "x", LogicalType: manifest.TypeString}))
	assertion, _ := spec.NewAssertion("A1", "d", 1, spec.ValueMatch{Field: "x", Operator: value.Eq, ExpectedValue: value.String("y")})
	cs := mustSpec(t, spec.Population{BaseDataset: "missing_dataset"}, []spec.Assertion{assertion})

	_, err := Compile(cs, m)
	if err == nil {
		t.Fatal("expected ManifestMissing error")
	}
	if _, ok := err.(*ManifestMissing); !ok {
		t.Errorf("expected *ManifestMissing, got %T: %v", err, err)
	}
}

func TestCompileRejectsNonKeyColumnCollision(t *testing.T) {
	m := mustManifest(t,
		mustEntry(t, "trades", "/data/trades.parquet",
			manifest.Column{Name: "id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "status", LogicalType: manifest.TypeString},
		),
		mustEntry(t, "other", "/data/other.parquet",
			manifest.Column{Name: "id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "status", LogicalType: manifest.TypeString},
		),
	)
	join, _ := spec.NewStep("joined", spec.JoinLeft{
		LeftDataset: "trades", RightDataset: "other", LeftKeys: []string{"id"}, RightKeys: []string{"id"},
	})
	assertion, _ := spec.NewAssertion("A1", "d", 1, spec.ValueMatch{Field: "status", Operator: value.Eq, ExpectedValue: value.String("y")})
	cs := mustSpec(t, spec.Population{BaseDataset: "trades", Steps: []spec.Step{join}}, []spec.Assertion{assertion})

	_, err := Compile(cs, m)
	if err == nil {
		t.Fatal("expected ColumnCollision error")
	}
	if _, ok := err.(*ColumnCollision); !ok {
		t.Errorf("expected *ColumnCollision, got %T: %v", err, err)
	}
}

func TestCompileInListAssertionFoldsCaseAndSpace(t *testing.T) {
	m := mustManifest(t,
		mustEntry(t, "invoices", "/data/invoices.parquet",
			manifest.Column{Name: "invoice_amount", LogicalType: manifest.TypeNumeric},
			manifest.Column{Name: "employee_id", LogicalType: manifest.TypeString},
		),
		mustEntry(t, "titles", "/data/titles.parquet",
			manifest.Column{Name: "employee_id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "approver_title", LogicalType: manifest.TypeString},
		),
	)

	filter, _ := spec.NewStep("large_invoices", spec.FilterComparison{
		Field: "invoice_amount", Operator: value.Gt, Value: value.Int(100000),
	})
	join, err := spec.NewStep("joined", spec.JoinLeft{
		LeftDataset: "invoices", RightDataset: "titles",
		LeftKeys: []string{"employee_id"}, RightKeys: []string{"employee_id"},
	})
	if err != nil {
		t.Fatal(err)
	}
	pop := spec.Population{BaseDataset: "invoices", Steps: []spec.Step{filter, join}}

	assertion, err := spec.NewAssertion("A1", "approver seniority", 0, spec.ValueMatch{
		Field: "approver_title", Operator: value.In,
		ExpectedList:       []value.Scalar{value.String("SVP"), value.String("EVP"), value.String("CEO"), value.String("CFO")},
		IgnoreCaseAndSpace: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	cs := mustSpec(t, pop, []spec.Assertion{assertion})
	plan, err := Compile(cs, m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if !strings.Contains(plan.SQL, "TRIM(UPPER(CAST(approver_title AS VARCHAR))) IN ('SVP', 'EVP', 'CEO', 'CFO')") {
		t.Errorf("expected case/whitespace-folded IN list, got:\n%s", plan.SQL)
	}
}

func TestCompileNullDefinesComplianceAcrossJoinChain(t *testing.T) {
	m := mustManifest(t,
		mustEntry(t, "terminations", "/data/terminations.parquet",
			manifest.Column{Name: "employee_id", LogicalType: manifest.TypeString},
		),
		mustEntry(t, "tickets", "/data/tickets.parquet",
			manifest.Column{Name: "employee_id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "ticket_id", LogicalType: manifest.TypeString},
		),
		mustEntry(t, "accounts", "/data/accounts.parquet",
			manifest.Column{Name: "ticket_id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "account_employee_id", LogicalType: manifest.TypeString},
			manifest.Column{Name: "account_status", LogicalType: manifest.TypeString},
		),
	)

	joinTickets, err := spec.NewStep("joined_tickets", spec.JoinLeft{
		LeftDataset: "terminations", RightDataset: "tickets",
		LeftKeys: []string{"employee_id"}, RightKeys: []string{"employee_id"},
	})
	if err != nil {
		t.Fatal(err)
	}
	joinAccounts, err := spec.NewStep("joined_accounts", spec.JoinLeft{
		LeftDataset: "joined_tickets", RightDataset: "accounts",
		LeftKeys: []string{"ticket_id"}, RightKeys: []string{"ticket_id"},
	})
	if err != nil {
		t.Fatal(err)
	}
	pop := spec.Population{BaseDataset: "terminations", Steps: []spec.Step{joinTickets, joinAccounts}}

	accountDeleted, err := spec.NewAssertion("A1", "account deprovisioned", 0, spec.ValueMatch{
		Field: "account_employee_id", Operator: value.Eq, ExpectedValue: value.Null(),
	})
	if err != nil {
		t.Fatal(err)
	}
	accountDisabled, err := spec.NewAssertion("A2", "account disabled if present", 0, spec.ValueMatch{
		Field: "account_status", Operator: value.Eq, ExpectedValue: value.String("DISABLED"),
	})
	if err != nil {
		t.Fatal(err)
	}

	cs := mustSpec(t, pop, []spec.Assertion{accountDeleted, accountDisabled})
	plan, err := Compile(cs, m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if !strings.Contains(plan.SQL, "account_employee_id IS NULL") {
		t.Errorf("expected null-defines-compliance predicate, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "(account_employee_id IS NULL) IS NOT TRUE OR (account_status = 'DISABLED') IS NOT TRUE") {
		t.Errorf("expected OR-combined exception predicates across the join chain, got:\n%s", plan.SQL)
	}
}

func TestRenderSamplingWithSeed(t *testing.T) {
	size := 500
	seed := int64(42)
	clause := renderSampling(&spec.Sampling{SampleSize: &size, RandomSeed: &seed, Method: spec.SampleRandom, Justification: "x"})
	want := " TABLESAMPLE RESERVOIR(500 ROWS) REPEATABLE (42)"
	if clause != want {
		t.Errorf("renderSampling = %q, want %q", clause, want)
	}
}

func TestRenderSamplingPercentageNoSeed(t *testing.T) {
	pct := 5.0
	clause := renderSampling(&spec.Sampling{SamplePercentage: &pct, Method: spec.SampleRandom, Justification: "x"})
	want := " TABLESAMPLE RESERVOIR(5%)"
	if clause != want {
		t.Errorf("renderSampling = %q, want %q", clause, want)
	}
}

func TestRenderConjunctionFallsBackToTautology(t *testing.T) {
	if got := renderConjunction(nil); got != "1=1" {
		t.Errorf("renderConjunction(nil) = %q, want 1=1", got)
	}
}

func TestNullRewritingNeverEmitsEqualsNull(t *testing.T) {
	m := mustManifest(t, mustEntry(t, "trades", "/data/trades.parquet", manifest.Column{Name: "cancel_reason", LogicalType: manifest.TypeString}))
	assertion, _ := spec.NewAssertion("A1", "no cancel reason", 0, spec.ValueMatch{
		Field: "cancel_reason", Operator: value.Eq, ExpectedValue: value.Null(),
	})
	cs := mustSpec(t, spec.Population{BaseDataset: "trades"}, []spec.Assertion{assertion})
	plan, err := Compile(cs, m)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(plan.SQL, "= NULL") || strings.Contains(plan.SQL, "<> NULL") {
		t.Errorf("SQL must never compare against NULL directly, got:\n%s", plan.SQL)
	}
	if !strings.Contains(plan.SQL, "cancel_reason IS NULL") {
		t.Errorf("expected IS NULL rewriting, got:\n%s", plan.SQL)
	}
}
