package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel wrapped by NotFoundError. Use errors.Is to test
// for any missing thread/state/chunk/step.
var ErrNotFound = errors.New("not found")

// ErrNoCompactableContent signals that compaction was requested on a state
// with no compressible working-history children. Compaction aborts before any
// model call or state mutation; callers may retry once more compressible
// content accrues.
var ErrNoCompactableContent = errors.New("no compactable content")

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string // "thread", "state", "chunk", "step"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidOperationError reports a malformed operation or one referencing a
// missing chunk id. The operation application is aborted; no partial state is
// committed for that operation.
type InvalidOperationError struct {
	Op     Operation
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid %s operation %s: %s", e.Op.Type, e.Op.ID, e.Reason)
}
