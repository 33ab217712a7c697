package kernel

import (
	"fmt"

	"github.com/arnforge/modkit/internal/platform/errs"
)

// ErrUnauthorizedLifecycle is returned by Guard.Check when the caller does
// not hold the kernel's capability token (§4.4).
var ErrUnauthorizedLifecycle = fmt.Errorf("%w: unauthorized lifecycle call", errs.ErrLifecycle)

// ErrAmbiguousLookup is returned by Registry.Get when more than one instance
// is registered under (kind, name) and no config disambiguator was given (§4.1).
var ErrAmbiguousLookup = fmt.Errorf("%w: ambiguous lookup", errs.ErrDependency)

// ErrCyclicDependency is returned by Kernel.Start when a same-kind
// dependency cycle is detected (§4.3).
var ErrCyclicDependency = fmt.Errorf("%w: cyclic dependency", errs.ErrDependency)

// NotFoundError reports that no instance is registered under (kind, name[, configHash]).
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no %s registered under name %q", errs.ErrNotFound, e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return errs.ErrNotFound }
