package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sqljudge/internal/db"
	"sqljudge/internal/fixture"
	"sqljudge/internal/metrics"
	"sqljudge/internal/schema"
	"sqljudge/internal/value"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func row(kv ...any) fixture.Row {
	var r fixture.Row
	for i := 0; i+1 < len(kv); i += 2 {
		v, err := value.Of(kv[i+1])
		if err != nil {
			panic(err)
		}
		r.Set(kv[i].(string), v)
	}
	return r
}

func rows(rs ...fixture.Row) []fixture.Row {
	if rs == nil {
		return []fixture.Row{}
	}
	return rs
}

func idValueSchema() schema.Definition {
	return schema.Definition{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeInteger},
			{Name: "v", Type: schema.TypeReal},
		},
	}}}
}

func newEngine(workers int) *Engine {
	return New(db.NewSQLiteOpener(), Options{Workers: workers, Timeout: 5 * time.Second})
}

func TestEvaluateWorkedExamples(t *testing.T) {
	query := "SELECT id, v FROM t WHERE v > 1.0"
	fixtures := []fixture.Fixture{
		{
			Name:           "filters",
			InputData:      map[string][]fixture.Row{"t": {row("id", 1, "v", 0.5), row("id", 2, "v", 2.0)}},
			ExpectedOutput: rows(row("id", 2, "v", 2.0)),
		},
		{
			Name:           "empty",
			InputData:      map[string][]fixture.Row{"t": {}},
			ExpectedOutput: rows(),
		},
		{
			Name:           "extra row",
			InputData:      map[string][]fixture.Row{"t": {row("id", 1, "v", 1.5), row("id", 2, "v", 2.5)}},
			ExpectedOutput: rows(row("id", 1, "v", 1.5)),
		},
	}
	report := newEngine(2).Evaluate(context.Background(), query, idValueSchema(), fixtures)
	require.Empty(t, report.BatchError)
	require.Len(t, report.Verdicts, 3)

	require.True(t, report.Verdicts[0].Passed)
	require.Empty(t, report.Verdicts[0].Error)

	require.True(t, report.Verdicts[1].Passed)
	require.NotNil(t, report.Verdicts[1].Actual)
	require.Empty(t, report.Verdicts[1].Actual)

	require.False(t, report.Verdicts[2].Passed)
	require.Empty(t, report.Verdicts[2].Error)
	require.Len(t, report.Verdicts[2].Actual, 2)
	require.Greater(t, report.Elapsed, time.Duration(0))
}

func TestEvaluateUnknownColumn(t *testing.T) {
	fixtures := []fixture.Fixture{{
		Name:           "missing column",
		InputData:      map[string][]fixture.Row{"t": {row("id", 1, "v", 0.5)}},
		ExpectedOutput: rows(row("id", 1)),
	}}
	report := newEngine(1).Evaluate(context.Background(), "SELECT nope FROM t", idValueSchema(), fixtures)
	require.Empty(t, report.BatchError)
	require.Len(t, report.Verdicts, 1)
	v := report.Verdicts[0]
	require.False(t, v.Passed)
	require.Nil(t, v.Actual)
	require.Contains(t, v.Error, "nope")
}

func TestEvaluateFixturesAreIsolated(t *testing.T) {
	fixtures := []fixture.Fixture{
		{Name: "a", InputData: map[string][]fixture.Row{"t": {row("id", 1, "v", 1.0)}}, ExpectedOutput: rows(row("id", 1))},
		{Name: "b", InputData: map[string][]fixture.Row{"t": {row("id", 2, "v", 1.0)}}, ExpectedOutput: rows(row("id", 2))},
		{Name: "c", ExpectedOutput: rows()},
	}
	report := newEngine(3).Evaluate(context.Background(), "SELECT id FROM t", idValueSchema(), fixtures)
	require.Empty(t, report.BatchError)
	for _, v := range report.Verdicts {
		require.True(t, v.Passed, "fixture %s: actual=%v err=%s", v.FixtureName, v.Actual, v.Error)
	}
}

func TestEvaluateSchemaFailureAbortsBatch(t *testing.T) {
	cases := []struct {
		name string
		def  schema.Definition
	}{
		{
			name: "malformed constraint",
			def: schema.Definition{Tables: []schema.Table{{
				Name:    "t",
				Columns: []schema.Column{{Name: "id", Type: schema.TypeInteger}, {Name: "CHECK ("}},
			}}},
		},
		{
			name: "duplicate table",
			def: schema.Definition{Tables: []schema.Table{
				{Name: "t", Columns: []schema.Column{{Name: "id", Type: schema.TypeInteger}}},
				{Name: "T", Columns: []schema.Column{{Name: "id", Type: schema.TypeInteger}}},
			}},
		},
		{
			name: "unsupported type",
			def: schema.Definition{Tables: []schema.Table{{
				Name:    "t",
				Columns: []schema.Column{{Name: "id", Type: "UUID"}},
			}}},
		},
	}
	fixtures := []fixture.Fixture{{Name: "one", ExpectedOutput: rows()}, {Name: "two", ExpectedOutput: rows()}}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			report := newEngine(2).Evaluate(context.Background(), "SELECT id FROM t", c.def, fixtures)
			require.NotEmpty(t, report.BatchError)
			require.Empty(t, report.Verdicts)
			require.Equal(t, StatusFailed, Summarize(report, len(fixtures)).Status)
		})
	}
}

func TestEvaluateLoadErrorStaysInFixture(t *testing.T) {
	fixtures := []fixture.Fixture{
		{Name: "good", InputData: map[string][]fixture.Row{"t": {row("id", 1, "v", 1.0)}}, ExpectedOutput: rows(row("id", 1))},
		{Name: "unknown table", InputData: map[string][]fixture.Row{"missing": {row("id", 1)}}, ExpectedOutput: rows()},
		{Name: "unknown column", InputData: map[string][]fixture.Row{"t": {row("id", 1, "w", 3)}}, ExpectedOutput: rows(row("id", 1))},
		{Name: "type mismatch", InputData: map[string][]fixture.Row{"t": {row("id", "not-a-number", "v", 1.0)}}, ExpectedOutput: rows()},
		{Name: "also good", InputData: map[string][]fixture.Row{"t": {row("id", 7, "v", 1.0)}}, ExpectedOutput: rows(row("id", 7))},
	}
	report := newEngine(2).Evaluate(context.Background(), "SELECT id FROM t", idValueSchema(), fixtures)
	require.Empty(t, report.BatchError)
	require.Len(t, report.Verdicts, 5)

	require.True(t, report.Verdicts[0].Passed)
	for _, v := range report.Verdicts[1:4] {
		require.False(t, v.Passed)
		require.Nil(t, v.Actual)
		require.NotEmpty(t, v.Error)
	}
	require.Contains(t, report.Verdicts[1].Error, "missing")
	require.Equal(t, `column id: text value "not-a-number" does not fit INTEGER`, report.Verdicts[3].Error)
	require.True(t, report.Verdicts[4].Passed)
}

func TestLoadRejectsValuesThatDoNotFit(t *testing.T) {
	def := schema.Definition{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeInteger},
			{Name: "d", Type: schema.TypeDate},
		},
	}}}
	cases := []struct {
		name string
		data fixture.Row
		want string
	}{
		{"integer", row("id", "not-a-number", "d", "2024-03-01"), `column id: text value "not-a-number" does not fit INTEGER`},
		{"date", row("id", 1, "d", "garbage"), `column d: text value "garbage" does not fit DATE`},
		{"range", row("id", int64(1)<<40), "column id: value 1099511627776 out of range for INTEGER"},
	}
	for _, opener := range []db.Opener{db.NewSQLiteOpener(), db.NewDuckDBOpener()} {
		for _, c := range cases {
			t.Run(opener.Dialect().Name()+"/"+c.name, func(t *testing.T) {
				ctx := context.Background()
				arena, err := opener.Open(ctx)
				require.NoError(t, err)
				defer arena.Close()
				require.NoError(t, Materialize(ctx, arena, def))

				err = Load(ctx, arena, def, map[string][]fixture.Row{"t": {row("id", 1, "d", "2024-01-01"), c.data}})
				var le *LoadError
				require.True(t, errors.As(err, &le), "%v", err)
				require.Equal(t, "t", le.Table)
				require.Equal(t, 1, le.Row)
				require.Equal(t, c.want, err.Error())
			})
		}
	}
}

func TestDuckDBEngineRoundTripsUnsignedAndDates(t *testing.T) {
	def := schema.Definition{Tables: []schema.Table{{
		Name: "accounts",
		Columns: []schema.Column{
			{Name: "id", Type: schema.TypeUBigInt},
			{Name: "opened", Type: schema.TypeDate},
			{Name: "balance", Type: schema.TypeReal},
		},
	}}}
	var acct fixture.Row
	acct.Set("id", value.Uint(18446744073709551615))
	acct.Set("opened", value.Text("2024-03-01"))
	acct.Set("balance", value.Int(5))
	var expected fixture.Row
	expected.Set("id", value.Uint(18446744073709551615))
	expected.Set("opened", value.Text("2024-03-01"))
	expected.Set("yr", value.Int(2024))
	expected.Set("half", value.Real(2.5))

	engine := New(db.NewDuckDBOpener(), Options{Workers: 1, Timeout: 5 * time.Second})
	report := engine.Evaluate(context.Background(),
		"SELECT id, opened, EXTRACT(YEAR FROM opened) AS yr, balance / 2 AS half FROM accounts",
		def, []fixture.Fixture{{
			Name:           "max id",
			InputData:      map[string][]fixture.Row{"accounts": {acct}},
			ExpectedOutput: []fixture.Row{expected},
		}})
	require.Empty(t, report.BatchError)
	require.Len(t, report.Verdicts, 1)
	require.True(t, report.Verdicts[0].Passed, report.Verdicts[0].Error)
}

func TestEvaluatePreservesFixtureOrder(t *testing.T) {
	var fixtures []fixture.Fixture
	for i := 0; i < 25; i++ {
		fixtures = append(fixtures, fixture.Fixture{
			Name:           fmt.Sprintf("case-%02d", i),
			InputData:      map[string][]fixture.Row{"t": {row("id", i, "v", float64(i)/4)}},
			ExpectedOutput: rows(row("id", i)),
		})
	}
	rec := metrics.New()
	engine := New(db.NewSQLiteOpener(), Options{Workers: 3, Metrics: rec})
	report := engine.Evaluate(context.Background(), "SELECT id FROM t", idValueSchema(), fixtures)
	require.Len(t, report.Verdicts, len(fixtures))
	for i, v := range report.Verdicts {
		require.Equal(t, fixtures[i].Name, v.FixtureName)
		require.True(t, v.Passed, v.Error)
	}
	require.Equal(t, StatusSolved, Summarize(report, len(fixtures)).Status)
	series, err := testutil.GatherAndCount(rec.Registry(), "sqljudge_fixtures_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)
	path := filepath.Join(t.TempDir(), "judge.prom")
	require.NoError(t, rec.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `sqljudge_fixtures_total{outcome="passed"} 25`)
	require.Contains(t, string(data), `sqljudge_batches_total{result="solved"} 1`)
}

func TestEvaluateNoFixtures(t *testing.T) {
	report := newEngine(1).Evaluate(context.Background(), "SELECT id FROM t", idValueSchema(), nil)
	require.Empty(t, report.BatchError)
	require.Empty(t, report.Verdicts)
	require.Equal(t, StatusFailed, Summarize(report, 0).Status)
}

type rejectGuard struct{}

func (rejectGuard) ValidateSingle(string) error { return errors.New("expected exactly one statement, got 2") }

func TestEvaluateGuardRejection(t *testing.T) {
	engine := New(db.NewSQLiteOpener(), Options{Guard: rejectGuard{}})
	fixtures := []fixture.Fixture{{Name: "one", ExpectedOutput: rows()}}
	report := engine.Evaluate(context.Background(), "SELECT 1; SELECT 2", idValueSchema(), fixtures)
	require.Len(t, report.Verdicts, 1)
	require.False(t, report.Verdicts[0].Passed)
	require.Contains(t, report.Verdicts[0].Error, "exactly one statement")
}

func TestRunnerStatementTimeout(t *testing.T) {
	ctx := context.Background()
	arena, err := db.NewSQLiteOpener().Open(ctx)
	require.NoError(t, err)
	defer arena.Close()

	runner := Runner{Timeout: 50 * time.Millisecond}
	_, err = runner.Run(ctx, arena, "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT count(*) FROM c")
	require.Error(t, err)
	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Contains(t, err.Error(), "statement timeout")
}

func TestRunQueryKeepsOutputColumnNames(t *testing.T) {
	ctx := context.Background()
	arena, err := db.NewSQLiteOpener().Open(ctx)
	require.NoError(t, err)
	defer arena.Close()
	require.NoError(t, Materialize(ctx, arena, idValueSchema()))
	require.NoError(t, Load(ctx, arena, idValueSchema(), map[string][]fixture.Row{"t": {row("id", 3, "v", 1.25)}}))

	got, err := RunQuery(ctx, arena, "SELECT id AS ident, v * 2 AS doubled, 'x' AS tag FROM t")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []string{"ident", "doubled", "tag"}, got[0].Columns())
	require.True(t, Compare(rows(row("tag", "x", "ident", 3, "doubled", 2.5)), got))
}

func TestLoadEmptyRowUsesDefaults(t *testing.T) {
	ctx := context.Background()
	arena, err := db.NewSQLiteOpener().Open(ctx)
	require.NoError(t, err)
	defer arena.Close()
	require.NoError(t, Materialize(ctx, arena, idValueSchema()))
	require.NoError(t, Load(ctx, arena, idValueSchema(), map[string][]fixture.Row{"t": {{}}}))

	got, err := RunQuery(ctx, arena, "SELECT count(*) AS n FROM t")
	require.NoError(t, err)
	require.True(t, Compare(rows(row("n", 1)), got))
}

func TestLoadOrder(t *testing.T) {
	def := schema.Definition{Tables: []schema.Table{
		{Name: "parent", Columns: []schema.Column{{Name: "id", Type: schema.TypeInteger}}},
		{Name: "child", Columns: []schema.Column{{Name: "id", Type: schema.TypeInteger}}},
	}}
	data := map[string][]fixture.Row{
		"zeta":   {row("id", 1)},
		"child":  {row("id", 1)},
		"alpha":  {row("id", 1)},
		"parent": {row("id", 1)},
		"empty":  {},
	}
	require.Equal(t, []string{"parent", "child", "alpha", "zeta"}, loadOrder(def, data))
}

func TestCompareProperties(t *testing.T) {
	a := rows(row("id", 1, "v", 0.1+0.2), row("id", 2, "v", decimal.RequireFromString("2.50")))
	b := rows(row("v", 2.5, "id", 2), row("v", 0.3, "id", 1))
	require.True(t, Compare(a, b))
	require.True(t, Compare(b, a))

	c := rows(row("id", 1, "v", 0.3))
	require.False(t, Compare(a, c))
	require.False(t, Compare(c, a))

	dup := rows(row("id", 1), row("id", 1))
	require.False(t, Compare(dup, rows(row("id", 1))))
	require.False(t, Compare(rows(row("id", 1), row("id", 2)), rows(row("id", 1), row("id", 1))))

	require.True(t, Compare(rows(), rows()))
	require.True(t, Compare(nil, rows()))
	require.False(t, Compare(rows(row("id", 1)), rows(row("id", "1"))))
	require.False(t, Compare(rows(row("id", 1)), rows(row("id", 1, "v", 2))))
}

func TestCompareDatesAndBooleans(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.True(t, Compare(rows(row("d", "2024-01-15")), rows(row("d", value.Date(day)))))
	require.True(t, Compare(rows(row("flag", true)), rows(row("flag", 1))))
}

func TestReportJSON(t *testing.T) {
	report := Report{
		Verdicts: []Verdict{
			{FixtureName: "ok", Passed: true, Expected: rows(row("id", 1)), Actual: rows(row("id", 1))},
			{FixtureName: "bad", Expected: rows(), Error: "no such column: nope"},
		},
		Elapsed: 1500 * time.Millisecond,
	}
	out, err := json.Marshal(report)
	require.NoError(t, err)
	s := string(out)
	require.True(t, strings.HasPrefix(s, `{"test_results":[`))
	require.Contains(t, s, `"test_name":"ok","passed":true,"expected":[{"id":1}],"actual":[{"id":1}],"error":null`)
	require.Contains(t, s, `"test_name":"bad","passed":false,"expected":[],"actual":null,"error":"no such column: nope"`)
	require.Equal(t, 2, strings.Count(s, `"error":`))
	require.Contains(t, s, `"execution_time":1.5`)
	require.NotContains(t, s, "error_message")

	out, err = json.Marshal(Report{BatchError: "duplicate table T"})
	require.NoError(t, err)
	require.Equal(t, `{"test_results":[],"execution_time":0,"error_message":"duplicate table T"}`, string(out))
}

func TestSummarize(t *testing.T) {
	report := Report{Verdicts: []Verdict{{Passed: true}, {Passed: false}}}
	s := Summarize(report, 2)
	require.Equal(t, StatusFailed, s.Status)
	require.Equal(t, 1, s.PassedCount)
	require.Equal(t, 2, s.TotalCount)

	report.Verdicts[1].Passed = true
	require.Equal(t, StatusSolved, Summarize(report, 2).Status)
}
