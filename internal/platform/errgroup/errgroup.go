// Package errgroup is a small wrapper around golang.org/x/sync/errgroup.Group that
// turns a goroutine returning early with a nil error into a distinguishable sentinel
// error, and recovers panics into errors instead of crashing the process.
package errgroup

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// EGroup defines the common interface for Group and x/sync/errgroup.Group.
type EGroup interface {
	Go(func() error)
	Wait() error
}

// Group wraps x/sync/errgroup.Group. It is not a drop-in replacement for it, because
// it requires initialization with WithContext.
type Group struct {
	group EGroup
	ctx   context.Context //nolint:containedctx
}

// WithContext returns a new Group and an associated Context derived from ctx.
//
// The derived Context is canceled the first time a function passed to Go
// returns an error, or the first time Wait returns, whichever occurs first.
func WithContext(ctx context.Context) (*Group, context.Context) {
	group, newCtx := errgroup.WithContext(ctx)

	return &Group{group: group, ctx: newCtx}, newCtx
}

// Wait blocks until all function calls from the Go method have returned, then
// returns the first non-nil error (if any) from them.
func (g *Group) Wait() error {
	return g.group.Wait()
}

// Go is a small wrapper around errgroup.Group.Go. When f returns a nil error and the
// group context was not canceled, it returns a ReturnError instead, thus canceling
// the group; a goroutine in this group is expected to run until canceled.
func (g *Group) Go(f func() error) {
	GoWithContext(g.ctx, g.group, f)
}

// ReturnError contains a stack trace of the function which called Group.Go.
type ReturnError struct{ stack string }

func (e *ReturnError) Error() string {
	return fmt.Sprintf("sentinel error: function returned with nil error: %s", e.stack)
}

// PanicError wraps a recovered panic value as an error.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Value, e.Stack)
}

// GoWithContext is a small wrapper around errgroup.Group.Go. When f returns a nil
// error and ctx was not canceled, it returns a ReturnError instead. Panics inside f
// are recovered and surfaced as a PanicError.
func GoWithContext(ctx context.Context, eg EGroup, f func() error) {
	stack := debug.Stack()

	eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: string(debug.Stack())}
			}
		}()

		if err = f(); err != nil {
			return err
		}

		if ctx.Err() == nil {
			// The context was not canceled, so f didn't return because of cancellation:
			// surface a distinguishable sentinel instead of silently succeeding.
			return &ReturnError{stack: string(stack)}
		}

		return nil
	})
}
