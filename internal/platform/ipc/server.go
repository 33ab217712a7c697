package ipc

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/logging"
)

// Handler resolves a single incoming call to a result. It is the
// out-of-process side's equivalent of worker.Invoke.
type Handler func(ctx context.Context, method string, args []any) (any, error)

// Serve accepts connections from ln until ctx is canceled, handling each
// with handler. One goroutine per connection, one goroutine per request
// within a connection so a slow call never blocks the others (§4.13's
// message-passing contract applied to the cross-language leg).
func Serve(ctx context.Context, ln net.Listener, handler Handler, logger *zap.Logger) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		go serveConn(ctx, NewConn(raw), handler, logger)
	}
}

func serveConn(ctx context.Context, conn *Conn, handler Handler, logger *zap.Logger) {
	defer conn.Close()

	for {
		req, err := conn.ReadRequest()
		if err != nil {
			return
		}

		go func(req Request) {
			result, err := handler(ctx, req.Method, req.Args)

			resp := Response{ID: req.ID, Result: result}
			if err != nil {
				resp.Error = &ErrorPayload{Code: "handler", Message: err.Error()}
			}

			if writeErr := conn.WriteResponse(resp); writeErr != nil {
				logger.Warn("ipc write response failed",
					logging.Component("ipc"),
					zap.String("method", req.Method),
					zap.Error(writeErr),
				)
			}
		}(req)
	}
}
