package core

import (
	"errors"
	"fmt"
)

// ErrMissingName is returned when a row leaves a reference column empty.
var ErrMissingName = errors.New("reference name is required")

// MissingNameError ties ErrMissingName to the reference kind that was blank.
type MissingNameError struct {
	Kind ReferenceKind
}

func (e *MissingNameError) Error() string {
	return fmt.Sprintf("%s name is required", e.Kind)
}

func (e *MissingNameError) Unwrap() error { return ErrMissingName }

// NotFoundError means no reference of Kind named Name exists for the user.
type NotFoundError struct {
	Kind ReferenceKind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// AmbiguousError means more than one reference shares the same name.
// There is no tie-break rule, so the row is skipped.
type AmbiguousError struct {
	Kind ReferenceKind
	Name string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s %q matches more than one record", e.Kind, e.Name)
}

// LookupError wraps a reference store failure for a single query.
type LookupError struct {
	Kind ReferenceKind
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("failed to find %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// SetupError aborts a run before any row is processed.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// BatchCommitError aborts a run after Committed sessions were already persisted.
type BatchCommitError struct {
	Batch     int // 1-based batch number that failed
	Size      int
	Committed int
	Err       error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("commit batch %d (%d sessions, %d already committed): %v",
		e.Batch, e.Size, e.Committed, e.Err)
}

func (e *BatchCommitError) Unwrap() error { return e.Err }

// IsRowError reports whether err is scoped to a single row.
func IsRowError(err error) bool {
	var (
		nf  *NotFoundError
		amb *AmbiguousError
		lk  *LookupError
	)
	return errors.Is(err, ErrMissingName) ||
		errors.As(err, &nf) ||
		errors.As(err, &amb) ||
		errors.As(err, &lk)
}
