package tabular

import "fmt"

// ConflictError reports an optimistic-concurrency loss: the version token
// the caller read is no longer the store's current version. The caller
// must re-read and re-apply; nothing was written.
type ConflictError struct {
	Table    string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, store at %d", e.Table, e.Expected, e.Actual)
}

// TransientError wraps a network or store failure. Callers may retry with
// backoff; see Retry.
type TransientError struct {
	Op    string
	Table string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
