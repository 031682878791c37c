package compiler

import (
	"fmt"
	"strings"

	"github.com/withobsrvr/control-verify/manifest"
	"github.com/withobsrvr/control-verify/spec"
	"github.com/withobsrvr/control-verify/sqlgen"
	"github.com/withobsrvr/control-verify/value"
)

// columnarReader is the table-function form every evidence file is read
// through (§6: "files are readable ... via a read_<columnar>() table
// function form"). Evidence here is always Parquet.
const columnarReader = "read_parquet"

// CTE is one named common table expression emitted by the pipeline
// compiler.
type CTE struct {
	Name string
	Body string
}

// ColumnOrigin records which manifest dataset and logical type a column in
// the final pipeline output traces back to — the structured description
// the schema validator (§4.8) resolves field references against.
type ColumnOrigin struct {
	Name        string
	LogicalType manifest.LogicalType
	Dataset     string
}

// pipelinePlan is the pipeline compiler's output (§4.5): the population
// filter conjuncts, the CTE chain, the name of the final rowset, and the
// resolved column set of that final rowset.
type pipelinePlan struct {
	PopulationFilters []string
	CTEs              []CTE
	FinalAlias        string
	FinalColumns      []ColumnOrigin
}

func compilePipeline(pop spec.Population, m *manifest.Manifest) (*pipelinePlan, error) {
	basePath, ok := m.PathOf(pop.BaseDataset)
	if !ok {
		return nil, &ManifestMissing{Alias: pop.BaseDataset}
	}
	baseLit, err := sqlgen.Literal(value.String(basePath))
	if err != nil {
		return nil, err
	}

	plan := &pipelinePlan{
		CTEs: []CTE{{
			Name: "base",
			Body: fmt.Sprintf("base AS (SELECT * FROM %s(%s))", columnarReader, baseLit),
		}},
		FinalAlias: "base",
	}

	baseCols, _ := m.ColumnsOf(pop.BaseDataset)
	columns := make(map[string]ColumnOrigin, len(baseCols))
	for _, c := range baseCols {
		columns[c.Name] = ColumnOrigin{Name: c.Name, LogicalType: c.LogicalType, Dataset: pop.BaseDataset}
	}

	for _, step := range pop.Steps {
		switch action := step.Action.(type) {
		case spec.FilterComparison:
			pred, err := renderComparison(action.Field, action.Operator, action.Value)
			if err != nil {
				return nil, err
			}
			plan.PopulationFilters = append(plan.PopulationFilters, pred)

		case spec.FilterInList:
			pred, err := renderInList(action.Field, action.Values)
			if err != nil {
				return nil, err
			}
			plan.PopulationFilters = append(plan.PopulationFilters, pred)

		case spec.FilterIsNull:
			pred, err := renderIsNull(action.Field, action.IsNull)
			if err != nil {
				return nil, err
			}
			plan.PopulationFilters = append(plan.PopulationFilters, pred)

		case spec.JoinLeft:
			cte, newColumns, err := compileJoin(step.StepID, plan.FinalAlias, action, m, columns)
			if err != nil {
				return nil, err
			}
			plan.CTEs = append(plan.CTEs, cte)
			plan.FinalAlias = step.StepID
			columns = newColumns

		default:
			return nil, fmt.Errorf("compiler: unhandled step action kind %q", step.Action.Kind())
		}
	}

	plan.FinalColumns = make([]ColumnOrigin, 0, len(columns))
	for _, c := range columns {
		plan.FinalColumns = append(plan.FinalColumns, c)
	}
	return plan, nil
}

func compileJoin(stepID, currentAlias string, j spec.JoinLeft, m *manifest.Manifest, currentColumns map[string]ColumnOrigin) (CTE, map[string]ColumnOrigin, error) {
	rightPath, ok := m.PathOf(j.RightDataset)
	if !ok {
		return CTE{}, nil, &ManifestMissing{Alias: j.RightDataset}
	}
	rightCols, _ := m.ColumnsOf(j.RightDataset)

	rightKeySet := make(map[string]bool, len(j.RightKeys))
	for _, k := range j.RightKeys {
		rightKeySet[k] = true
	}

	merged := make(map[string]ColumnOrigin, len(currentColumns)+len(rightCols))
	for name, c := range currentColumns {
		merged[name] = c
	}
	for _, c := range rightCols {
		if rightKeySet[c.Name] {
			continue
		}
		if _, collide := merged[c.Name]; collide {
			return CTE{}, nil, &ColumnCollision{StepID: stepID, Column: c.Name}
		}
		merged[c.Name] = ColumnOrigin{Name: c.Name, LogicalType: c.LogicalType, Dataset: j.RightDataset}
	}

	onConds := make([]string, len(j.LeftKeys))
	for i := range j.LeftKeys {
		leftRef, err := sqlgen.QualifiedIdentifier(currentAlias, j.LeftKeys[i])
		if err != nil {
			return CTE{}, nil, err
		}
		rightRef, err := sqlgen.QualifiedIdentifier("right", j.RightKeys[i])
		if err != nil {
			return CTE{}, nil, err
		}
		onConds[i] = leftRef + " = " + rightRef
	}

	excludeNames := make([]string, len(j.RightKeys))
	for i, k := range j.RightKeys {
		id, err := sqlgen.Identifier(k)
		if err != nil {
			return CTE{}, nil, err
		}
		excludeNames[i] = id
	}

	rightLit, err := sqlgen.Literal(value.String(rightPath))
	if err != nil {
		return CTE{}, nil, err
	}

	stepIdent, err := sqlgen.Identifier(stepID)
	if err != nil {
		return CTE{}, nil, err
	}

	body := fmt.Sprintf(
		"%s AS (SELECT %s.*, right.* EXCLUDE (%s) FROM %s LEFT JOIN %s(%s) AS right ON %s)",
		stepIdent, currentAlias, strings.Join(excludeNames, ", "), currentAlias, columnarReader, rightLit, strings.Join(onConds, " AND "),
	)
	return CTE{Name: stepID, Body: body}, merged, nil
}
