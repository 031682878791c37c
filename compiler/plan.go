package compiler

import (
	"fmt"
	"strings"

	"github.com/withobsrvr/control-verify/manifest"
	"github.com/withobsrvr/control-verify/spec"
	"github.com/withobsrvr/control-verify/sqlgen"
)

// Plan is the query assembler's output (§4.7): the final SQL text plus
// enough structure for the schema validator and execution engine to do
// their jobs without re-parsing the query.
type Plan struct {
	SQL               string
	FinalAlias        string
	PopulationFilters []string
	CTEs              []CTE
	FinalColumns      []ColumnOrigin
	Aggregated        bool
	GroupByFields     []string
}

// PopulationCountSQL renders the query the execution engine runs to
// compute total_population: the final CTE with only population filters
// applied (§4.9). For the aggregation shape this counts distinct group
// keys rather than rows.
func (p *Plan) PopulationCountSQL() string {
	withClause := renderCTEs(p.CTEs)
	populationClause := renderConjunction(p.PopulationFilters)
	if p.Aggregated {
		groupByClause := strings.Join(p.GroupByFields, ", ")
		return fmt.Sprintf(
			"WITH %s\nSELECT COUNT(*) FROM (SELECT DISTINCT %s FROM %s WHERE %s) AS population_groups",
			withClause, groupByClause, p.FinalAlias, populationClause,
		)
	}
	return fmt.Sprintf("WITH %s\nSELECT COUNT(*) FROM %s WHERE %s", withClause, p.FinalAlias, populationClause)
}

// ExplainSQL renders the dry-run the engine issues before executing SQL
// for real (§4.9).
func (p *Plan) ExplainSQL() string {
	return "EXPLAIN " + p.SQL
}

// Compile translates a specification and manifest into a Plan. It is pure:
// the same (specification, manifest) pair always yields byte-identical
// SQL, since map iteration order is never allowed to influence emitted
// text (FinalColumns is informational only and is not rendered).
func Compile(cs *spec.ControlSpecification, m *manifest.Manifest) (*Plan, error) {
	pipeline, err := compilePipeline(cs.Population, m)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		FinalAlias:        pipeline.FinalAlias,
		PopulationFilters: pipeline.PopulationFilters,
		CTEs:              pipeline.CTEs,
		FinalColumns:      pipeline.FinalColumns,
		Aggregated:        cs.HasAggregation(),
	}

	withClause := renderCTEs(pipeline.CTEs)
	populationClause := renderConjunction(pipeline.PopulationFilters)

	if plan.Aggregated {
		agg, _ := cs.AggregationAssertion()
		body := agg.Body.(spec.Aggregation)
		sql, err := assembleAggregation(withClause, populationClause, pipeline.FinalAlias, body)
		if err != nil {
			return nil, err
		}
		plan.SQL = sql
		plan.GroupByFields = append([]string(nil), body.GroupByFields...)
		return plan, nil
	}

	exceptionClause, err := combineExceptionPredicates(cs.Assertions)
	if err != nil {
		return nil, err
	}
	samplingClause := renderSampling(cs.Population.Sampling)
	plan.SQL = fmt.Sprintf(
		"WITH %s\nSELECT *\nFROM %s%s\nWHERE (%s) AND (%s)",
		withClause, pipeline.FinalAlias, samplingClause, populationClause, exceptionClause,
	)
	return plan, nil
}

func assembleAggregation(withClause, populationClause, finalAlias string, agg spec.Aggregation) (string, error) {
	groupByIdents := make([]string, len(agg.GroupByFields))
	for i, f := range agg.GroupByFields {
		id, err := sqlgen.Identifier(f)
		if err != nil {
			return "", err
		}
		groupByIdents[i] = id
	}
	metric, err := sqlgen.Identifier(agg.MetricField)
	if err != nil {
		return "", err
	}
	havingExpr, err := compileAggregationPredicate(agg)
	if err != nil {
		return "", err
	}
	groupByClause := strings.Join(groupByIdents, ", ")
	metricAlias := fmt.Sprintf("%s_%s", strings.ToLower(string(agg.AggregationFunction)), agg.MetricField)

	return fmt.Sprintf(
		"WITH %s\nSELECT %s,\n       COUNT(*) AS exception_count,\n       %s(%s) AS %s\nFROM %s\nWHERE %s\nGROUP BY %s\nHAVING %s",
		withClause, groupByClause, agg.AggregationFunction, metric, metricAlias, finalAlias, populationClause, groupByClause, exceptionPredicate(havingExpr),
	), nil
}

func renderCTEs(ctes []CTE) string {
	bodies := make([]string, len(ctes))
	for i, c := range ctes {
		bodies[i] = c.Body
	}
	return strings.Join(bodies, ",\n")
}

// renderConjunction AND-joins population filters, falling back to "1=1"
// when there are none — the WHERE clause's population half is never
// allowed to be empty (§8: "at-least-one population filter OR 1=1").
func renderConjunction(filters []string) string {
	if len(filters) == 0 {
		return "1=1"
	}
	return strings.Join(filters, " AND ")
}
