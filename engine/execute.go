package engine

import (
	"context"

	"github.com/withobsrvr/control-verify/compiler"
)

// defaultMaxExceptionSample is the ledger's cap on persisted exception rows
// (§4.9) when the caller doesn't configure one; the exact count is
// preserved separately in Result.ExceptionCount regardless of the cap.
const defaultMaxExceptionSample = 100

// Result is the execution engine's output: population and exception
// counts, a bounded sample of exception records, and — on failure — the
// error kind and message to surface on the Execution Report (§3, §7).
type Result struct {
	TotalPopulation int64
	ExceptionCount  int64
	ExceptionSample []map[string]interface{}
	ErrorKind       ErrorKind
	ErrorMessage    string
}

func failed(kind ErrorKind, err error) *Result {
	return &Result{ErrorKind: kind, ErrorMessage: err.Error()}
}

// Execute runs the compiled plan against session in the order §4.9
// prescribes: EXPLAIN dry-run, population count, full execution. A
// canceled ctx at any stage surfaces as ErrorKind Canceled rather than
// ExecutionFailed, since the query was aborted, not rejected by the data.
// maxExceptionSample bounds how many exception rows are retained in the
// returned Result; zero or negative falls back to defaultMaxExceptionSample.
func Execute(ctx context.Context, sess *Session, plan *compiler.Plan, maxExceptionSample int) (*Result, error) {
	if maxExceptionSample <= 0 {
		maxExceptionSample = defaultMaxExceptionSample
	}

	if err := ctx.Err(); err != nil {
		return failed(Canceled, err), nil
	}

	if _, err := sess.db.ExecContext(ctx, plan.ExplainSQL()); err != nil {
		if ctx.Err() != nil {
			return failed(Canceled, ctx.Err()), nil
		}
		return failed(CompileRejected, err), nil
	}

	total, err := countPopulation(ctx, sess, plan)
	if err != nil {
		if ctx.Err() != nil {
			return failed(Canceled, ctx.Err()), nil
		}
		return failed(ExecutionFailed, err), nil
	}

	exceptionCount, sample, err := runQuery(ctx, sess, plan, maxExceptionSample)
	if err != nil {
		if ctx.Err() != nil {
			return failed(Canceled, ctx.Err()), nil
		}
		return failed(ExecutionFailed, err), nil
	}

	return &Result{
		TotalPopulation: total,
		ExceptionCount:  exceptionCount,
		ExceptionSample: sample,
	}, nil
}

func countPopulation(ctx context.Context, sess *Session, plan *compiler.Plan) (int64, error) {
	var total int64
	row := sess.db.QueryRowContext(ctx, plan.PopulationCountSQL())
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func runQuery(ctx context.Context, sess *Session, plan *compiler.Plan, maxExceptionSample int) (int64, []map[string]interface{}, error) {
	rows, err := sess.db.QueryContext(ctx, plan.SQL)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, nil, err
	}

	var count int64
	var sample []map[string]interface{}
	for rows.Next() {
		dest := newScanDest(len(cols))
		if err := rows.Scan(dest...); err != nil {
			return 0, nil, err
		}
		count++
		if len(sample) < maxExceptionSample {
			sample = append(sample, scanRow(cols, derefScanDest(dest)))
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return count, sample, nil
}
