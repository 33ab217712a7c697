package worker

import "context"

// RemoteCaller forwards a call to an out-of-process backend, used when a
// module descriptor names a non-native language (§4.13 "Out-of-process /
// cross-language mode"). internal/platform/ipc.Client implements this.
type RemoteCaller interface {
	Call(ctx context.Context, method string, args []any) (any, error)
}

// Binding is the per-instance wrapper every distributed module's methods
// pass through. At most one of Pool/Remote is expected to be set; neither
// set means the method simply runs in-process (§4.13).
type Binding struct {
	Pool   *Pool
	Remote RemoteCaller
}

// Invoke runs local according to the binding: forwarded to Remote, forwarded
// to Pool, or run directly, in that precedence order.
func (b Binding) Invoke(ctx context.Context, method string, args []any, local Invoke) (any, error) {
	switch {
	case b.Remote != nil:
		return b.Remote.Call(ctx, method, args)
	case b.Pool != nil:
		return b.Pool.Dispatch(ctx, method, args, local)
	default:
		return local(args)
	}
}
