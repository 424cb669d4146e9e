// Package judge evaluates a candidate query against isolated fixtures.
package judge

// SchemaError reports that the shared schema could not be materialized.
// It aborts the whole batch.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string { return e.Err.Error() }

func (e *SchemaError) Unwrap() error { return e.Err }

// LoadError reports that a fixture's input rows could not be inserted,
// either because a value does not fit its column type or because the store
// rejected the insert. Store diagnostics are passed through unchanged.
type LoadError struct {
	Table string
	Row   int
	Err   error
}

func (e *LoadError) Error() string { return e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// QueryError reports that the candidate query failed. The message is the
// store's diagnostic unchanged.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }
