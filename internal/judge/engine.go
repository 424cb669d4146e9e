package judge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqljudge/internal/config"
	"sqljudge/internal/db"
	"sqljudge/internal/fixture"
	"sqljudge/internal/metrics"
	"sqljudge/internal/schema"
	"sqljudge/internal/util"
	"sqljudge/internal/validator"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds fixture parallelism when no worker count is set.
const DefaultWorkers = 4

const (
	stageOpen     = "open"
	stageSchema   = "schema"
	stageLoad     = "load"
	stageQuery    = "query"
	stageInternal = "internal"
)

// Options configures an Engine.
type Options struct {
	Workers int
	Timeout time.Duration
	Guard   Guard
	Metrics *metrics.Recorder
}

// Engine evaluates a query against a batch of fixtures, one arena per fixture.
type Engine struct {
	opener  db.Opener
	workers int
	runner  Runner
	metrics *metrics.Recorder
}

// New builds an engine over opener.
func New(opener db.Opener, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{
		opener:  opener,
		workers: workers,
		runner:  Runner{Timeout: opts.Timeout, Guard: opts.Guard},
		metrics: opts.Metrics,
	}
}

// NewFromConfig builds an engine from the loaded configuration. The TiDB
// statement guard is only installed for MySQL-compatible stores.
func NewFromConfig(cfg config.Config, opener db.Opener, rec *metrics.Recorder) *Engine {
	opts := Options{
		Workers: cfg.Workers,
		Timeout: time.Duration(cfg.StatementTimeoutMs) * time.Millisecond,
		Metrics: rec,
	}
	if cfg.Store.Driver == config.DriverMySQL && cfg.Store.ValidateSQL {
		opts.Guard = validator.New()
	}
	return New(opener, opts)
}

// Evaluate runs query against every fixture and returns verdicts in fixture
// order. A schema that cannot be materialized yields a report with only
// BatchError set.
func (e *Engine) Evaluate(ctx context.Context, query string, def schema.Definition, fixtures []fixture.Fixture) Report {
	start := time.Now()
	if err := e.checkSchema(ctx, def); err != nil {
		return e.batchFailure(start, err)
	}

	verdicts := make([]Verdict, len(fixtures))
	schemaErrs := make([]error, len(fixtures))
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i := range fixtures {
		g.Go(func() error {
			verdicts[i], schemaErrs[i] = e.evaluateFixture(ctx, query, def, fixtures[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range schemaErrs {
		if err != nil {
			return e.batchFailure(start, err)
		}
	}
	report := Report{Verdicts: verdicts, Elapsed: time.Since(start)}
	summary := Summarize(report, len(fixtures))
	e.metrics.ObserveBatch(summary.Status, report.Elapsed)
	util.Detailf("batch done fixtures=%d passed=%d elapsed=%s", len(fixtures), summary.PassedCount, report.Elapsed)
	return report
}

// checkSchema materializes the schema into a scratch arena so a malformed schema
// fails the batch before any fixture is dispatched.
func (e *Engine) checkSchema(ctx context.Context, def schema.Definition) error {
	arena, err := e.opener.Open(ctx)
	if err != nil {
		return &SchemaError{Err: fmt.Errorf("open store: %w", err)}
	}
	defer util.CloseWithErr(arena, "schema check arena")
	return Materialize(ctx, arena, def)
}

func (e *Engine) batchFailure(start time.Time, err error) Report {
	var se *SchemaError
	if errors.As(err, &se) && se.Table != "" {
		util.Warnf("schema materialization failed table=%s class=%s err=%v", se.Table, db.ClassifyError(err), err)
	} else {
		util.Warnf("schema materialization failed class=%s err=%v", db.ClassifyError(err), err)
	}
	report := Report{Elapsed: time.Since(start), BatchError: err.Error()}
	e.metrics.ObserveBatch(StatusFailed, report.Elapsed)
	return report
}

// evaluateFixture runs one fixture in its own arena. The only error it
// returns is a *SchemaError; every other failure lands in the verdict.
func (e *Engine) evaluateFixture(ctx context.Context, query string, def schema.Definition, fx fixture.Fixture) (v Verdict, schemaErr error) {
	start := time.Now()
	v = Verdict{FixtureName: fx.Name, Expected: fx.ExpectedOutput}
	stage := stageOpen
	var failure error
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("internal error: %v", r)
			stage = stageInternal
			schemaErr = nil
			v.Passed, v.Actual, v.Error = false, nil, failure.Error()
		}
		e.observeFixture(fx.Name, v, stage, failure, time.Since(start))
	}()

	arena, err := e.opener.Open(ctx)
	if err != nil {
		failure = err
		v.Error = err.Error()
		return v, nil
	}
	defer util.CloseWithErr(arena, "arena "+arena.ID)

	stage = stageSchema
	if err := Materialize(ctx, arena, def); err != nil {
		failure = err
		return v, err
	}
	stage = stageLoad
	if err := Load(ctx, arena, def, fx.InputData); err != nil {
		failure = err
		v.Error = err.Error()
		return v, nil
	}
	stage = stageQuery
	actual, err := e.runner.Run(ctx, arena, query)
	if err != nil {
		failure = err
		v.Error = err.Error()
		return v, nil
	}
	v.Actual = fixture.NormalizeRows(actual)
	v.Passed = Compare(fx.ExpectedOutput, v.Actual)
	return v, nil
}

func (e *Engine) observeFixture(name string, v Verdict, stage string, failure error, elapsed time.Duration) {
	switch {
	case failure != nil:
		class := db.ClassifyError(failure)
		e.metrics.ObserveFixture(metrics.OutcomeError, elapsed)
		e.metrics.ObserveFixtureError(stage, class)
		util.Detailf("fixture %s failed stage=%s class=%s err=%v", name, stage, class, failure)
	case v.Passed:
		e.metrics.ObserveFixture(metrics.OutcomePassed, elapsed)
		util.Detailf("fixture %s passed rows=%d elapsed=%s", name, len(v.Actual), elapsed)
	default:
		e.metrics.ObserveFixture(metrics.OutcomeFailed, elapsed)
		util.Detailf("fixture %s mismatch expected=%d actual=%d", name, len(v.Expected), len(v.Actual))
	}
}
