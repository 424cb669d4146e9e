package judge

import (
	"encoding/json"
	"time"

	"sqljudge/internal/fixture"
)

// Batch statuses.
const (
	StatusSolved = "solved"
	StatusFailed = "failed"
)

// Verdict is the outcome of one fixture. Actual is nil when the fixture
// errored before producing a result.
type Verdict struct {
	FixtureName string
	Passed      bool
	Expected    []fixture.Row
	Actual      []fixture.Row
	Error       string
}

type verdictJSON struct {
	FixtureName string        `json:"test_name"`
	Passed      bool          `json:"passed"`
	Expected    []fixture.Row `json:"expected"`
	Actual      []fixture.Row `json:"actual"`
	Error       *string       `json:"error"`
}

// MarshalJSON always emits the error key, null when the fixture did not error.
func (v Verdict) MarshalJSON() ([]byte, error) {
	out := verdictJSON{
		FixtureName: v.FixtureName,
		Passed:      v.Passed,
		Expected:    v.Expected,
		Actual:      v.Actual,
	}
	if v.Error != "" {
		out.Error = &v.Error
	}
	return json.Marshal(out)
}

// Report is the result of one batch. Verdicts follow fixture input order.
type Report struct {
	Verdicts   []Verdict
	Elapsed    time.Duration
	BatchError string
}

type reportJSON struct {
	Verdicts      []Verdict `json:"test_results"`
	ExecutionTime float64   `json:"execution_time"`
	BatchError    string    `json:"error_message,omitempty"`
}

// MarshalJSON encodes the report with elapsed time in seconds.
func (r Report) MarshalJSON() ([]byte, error) {
	verdicts := r.Verdicts
	if verdicts == nil {
		verdicts = []Verdict{}
	}
	return json.Marshal(reportJSON{
		Verdicts:      verdicts,
		ExecutionTime: r.Elapsed.Seconds(),
		BatchError:    r.BatchError,
	})
}

// PassedCount returns the number of passing verdicts.
func (r Report) PassedCount() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Passed {
			n++
		}
	}
	return n
}

// Summary aggregates a report into a single status.
type Summary struct {
	Status        string  `json:"status"`
	PassedCount   int     `json:"passed_tests"`
	TotalCount    int     `json:"total_tests"`
	ExecutionTime float64 `json:"execution_time"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Summarize reports solved only when every submitted fixture passed.
// total is the number of fixtures submitted; a batch error leaves no
// verdicts, so it cannot be derived from the report alone.
func Summarize(r Report, total int) Summary {
	s := Summary{
		Status:        StatusFailed,
		PassedCount:   r.PassedCount(),
		TotalCount:    total,
		ExecutionTime: r.Elapsed.Seconds(),
		ErrorMessage:  r.BatchError,
	}
	if r.BatchError == "" && total > 0 && s.PassedCount == total {
		s.Status = StatusSolved
	}
	return s
}
