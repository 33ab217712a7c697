package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arnforge/modkit/internal/platform/errs"
)

// dispatchTimeout bounds a single proxied call (§4.13: "awaits a typed reply
// ... with a 30-second timeout").
const dispatchTimeout = 30 * time.Second

// dispatchRequest is the message-passing unit sent to a worker's inbox.
type dispatchRequest struct {
	method string
	args   []any
	invoke func(args []any) (any, error)
	reply  chan callResult
}

// callResult is the typed reply a worker sends back: success or error.
type callResult struct {
	value any
	err   error
}

// ErrNoWorkers is returned by Dispatch when the pool has no workers to
// assign the call to.
var ErrNoWorkers = errors.New("worker pool has no workers")

// Invoke is the shape a proxied method call is reduced to before Dispatch:
// the method name (for logging), its arguments, and the function that
// actually performs the call in-worker.
type Invoke func(args []any) (any, error)

// Dispatch forwards a call to the least-loaded worker and awaits its typed
// reply, bounded by dispatchTimeout (§4.13). This is what the distributed
// module proxy calls when a worker is bound to the instance; when none is
// bound, the caller runs the method in-process instead and never calls
// Dispatch at all.
func (p *Pool) Dispatch(ctx context.Context, method string, args []any, invoke Invoke) (any, error) {
	w, err := p.pickWorker()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	reply := make(chan callResult, 1)
	atomic.AddInt64(&w.pending, 1)

	select {
	case w.inbox <- dispatchRequest{method: method, args: args, invoke: invoke, reply: reply}:
	case <-ctx.Done():
		atomic.AddInt64(&w.pending, -1)

		return nil, fmt.Errorf("%w: dispatch of %q to %s", errs.ErrTimeout, method, w.id)
	}

	select {
	case result := <-reply:
		return result.value, result.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: call %q on %s", errs.ErrTimeout, method, w.id)
	}
}

// pickWorker assigns least-loaded first, breaking ties round-robin (§4:
// "round-robin/least-loaded assignment").
func (p *Pool) pickWorker() (*worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return nil, ErrNoWorkers
	}

	start := int(atomic.AddUint64(&p.rr, 1) % uint64(len(p.workers)))

	best := p.workers[start]
	bestLoad := atomic.LoadInt64(&best.pending)

	for i := 0; i < len(p.workers); i++ {
		idx := (start + i) % len(p.workers)
		w := p.workers[idx]
		load := atomic.LoadInt64(&w.pending)

		if load < bestLoad {
			best = w
			bestLoad = load
		}
	}

	return best, nil
}
