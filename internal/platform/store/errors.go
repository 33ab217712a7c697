package store

import (
	"fmt"

	"github.com/arnforge/modkit/internal/platform/errs"
)

// NotFoundError reports that no document exists under (kind, id).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no %s document with id %q", errs.ErrNotFound, e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return errs.ErrNotFound }

// VersionConflictError reports that CompareAndDelete's expected version did
// not match the document's current version.
type VersionConflictError struct {
	Kind            string
	ID              string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: %s %q expected version %d, got %d",
		errs.ErrConflict, e.Kind, e.ID, e.ExpectedVersion, e.ActualVersion)
}

func (e *VersionConflictError) Unwrap() error { return errs.ErrConflict }
