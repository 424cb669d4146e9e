package judge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqljudge/internal/db"
	"sqljudge/internal/fixture"
	"sqljudge/internal/util"
)

// Guard rejects query text before it reaches the store.
type Guard interface {
	ValidateSingle(sql string) error
}

// Runner executes candidate queries.
type Runner struct {
	Timeout time.Duration
	Guard   Guard
}

func (r Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.Timeout)
}

// Run executes query once and returns its rows keyed by output column name.
// An empty result is a non-nil empty slice.
func (r Runner) Run(ctx context.Context, store Store, query string) ([]fixture.Row, error) {
	if r.Guard != nil {
		if err := r.Guard.ValidateSingle(query); err != nil {
			return nil, &QueryError{Err: err}
		}
	}
	qctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := store.QueryContext(qctx, query)
	if err != nil {
		return nil, r.queryError(qctx, err)
	}
	defer util.CloseWithErr(rows, "query rows")
	cols, values, err := db.ScanRows(rows)
	if err != nil {
		return nil, r.queryError(qctx, err)
	}
	out := make([]fixture.Row, 0, len(values))
	for _, vals := range values {
		row := make(fixture.Row, 0, len(cols))
		for i, col := range cols {
			row.Set(col, vals[i])
		}
		out = append(out, row)
	}
	return out, nil
}

func (r Runner) queryError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	if errors.Is(err, context.DeadlineExceeded) && r.Timeout > 0 {
		return &QueryError{Err: fmt.Errorf("statement timeout after %s: %w", r.Timeout, err)}
	}
	return &QueryError{Err: err}
}

// RunQuery executes query without a guard or timeout.
func RunQuery(ctx context.Context, store Store, query string) ([]fixture.Row, error) {
	return Runner{}.Run(ctx, store, query)
}
