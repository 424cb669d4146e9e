package challenge

import (
	"context"
	"fmt"
	"strings"

	"sqljudge/internal/fixture"
	"sqljudge/internal/judge"
	"sqljudge/internal/schema"

	"github.com/pkg/errors"
)

// maxReportedFailures caps how many failures VerifySolution puts in its error.
const maxReportedFailures = 3

// Evaluator runs a query over a batch of fixtures.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, def schema.Definition, fixtures []fixture.Fixture) judge.Report
}

// VerifySolution runs the reference solution against every test case on its
// own and returns one description per failing case. The error is non-nil
// when any case failed and names the first few.
func VerifySolution(ctx context.Context, ev Evaluator, c Challenge) ([]string, error) {
	var failures []string
	for _, tc := range c.TestCases {
		report := ev.Evaluate(ctx, c.SolutionQuery, c.Schema, []fixture.Fixture{tc})
		if msg := describeFailure(tc, report); msg != "" {
			failures = append(failures, msg)
		}
	}
	if len(failures) == 0 {
		return nil, nil
	}
	shown := failures
	if len(shown) > maxReportedFailures {
		shown = shown[:maxReportedFailures]
	}
	return failures, errors.Errorf("tests failed: %s", strings.Join(shown, "; "))
}

func describeFailure(tc fixture.Fixture, report judge.Report) string {
	if report.BatchError != "" {
		return fmt.Sprintf("%s: execution error - %s", tc.Name, report.BatchError)
	}
	if len(report.Verdicts) == 0 {
		return fmt.Sprintf("%s: no verdict", tc.Name)
	}
	v := report.Verdicts[0]
	switch {
	case v.Passed:
		return ""
	case v.Error != "":
		return fmt.Sprintf("%s: execution error - %s", tc.Name, v.Error)
	default:
		return fmt.Sprintf("%s: expected %s, got %s", tc.Name, formatRows(tc.ExpectedOutput), formatRows(v.Actual))
	}
}

func formatRows(rows []fixture.Row) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
