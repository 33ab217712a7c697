package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/errgroup"
	"github.com/arnforge/modkit/internal/platform/ipc"
	"github.com/arnforge/modkit/internal/platform/kernel"
	"github.com/arnforge/modkit/internal/platform/logging"
	"github.com/arnforge/modkit/internal/platform/worker"
)

// workerPoolModule wraps a worker.Pool as a kernel Utility-kind module: the
// pool already spawns its minimum workers and its scaling monitor in
// worker.NewPool, so Start is a capability check only; Stop drains it.
type workerPoolModule struct {
	kernel.Guard

	pool *worker.Pool
}

func newWorkerPoolModule(kernelCap kernel.Capability, pool *worker.Pool) *workerPoolModule {
	return &workerPoolModule{Guard: kernel.NewGuard(kernelCap), pool: pool}
}

func (m *workerPoolModule) Start(cap kernel.Capability) error {
	return m.Guard.Check(cap)
}

func (m *workerPoolModule) Stop(cap kernel.Capability) error {
	if err := m.Guard.Check(cap); err != nil {
		return err
	}

	m.pool.Stop()

	return nil
}

// shutdownTimeout bounds how long the HTTP server's graceful drain may run
// before App.Stop gives up, kept inside the kernel's own 30-second
// per-module shutdown budget.
const shutdownTimeout = 10 * time.Second

// httpServerModule wraps an *http.Server as the App-kind module that owns
// the process's externally-visible HTTP surface (§6.2). Serve runs under
// the internal/platform/errgroup supervisor so a panic in the Serve call
// itself surfaces as a Stop error instead of crashing the process, matching
// the teacher's own long-running-server idiom (internal/backend/server.go's
// errgroup-supervised grpc/http servers).
type httpServerModule struct {
	kernel.Guard

	srv    *http.Server
	logger *zap.Logger

	eg *errgroup.Group
}

func newHTTPServerModule(kernelCap kernel.Capability, srv *http.Server, logger *zap.Logger) *httpServerModule {
	return &httpServerModule{Guard: kernel.NewGuard(kernelCap), srv: srv, logger: logger}
}

func (m *httpServerModule) Start(cap kernel.Capability) error {
	if err := m.Guard.Check(cap); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", m.srv.Addr)
	if err != nil {
		return err
	}

	eg, _ := errgroup.WithContext(context.Background())
	m.eg = eg

	m.eg.Go(func() error {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return http.ErrServerClosed
	})

	m.logger.Info("http server listening", logging.Component("cmd/platform"), zap.String("addr", m.srv.Addr))

	return nil
}

func (m *httpServerModule) Stop(cap kernel.Capability) error {
	if err := m.Guard.Check(cap); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := m.srv.Shutdown(ctx); err != nil {
		return err
	}

	if err := m.eg.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// ipcWorkerModule wraps the out-of-process, serving side of §6.5's IPC
// contract: a listener plus Handler, run until the kernel stops it. This is
// what "worker" mode runs: it lets cmd/platform also play the role a
// cross-language module process would, demonstrating both legs of the
// contract without a second binary. Like httpServerModule, the accept loop
// itself runs under internal/platform/errgroup so a panic in ln.Accept or
// ipc.Serve's own dispatch loop is recovered as an error instead of taking
// the process down.
type ipcWorkerModule struct {
	kernel.Guard

	ln      net.Listener
	handler ipc.Handler
	logger  *zap.Logger

	cancel context.CancelFunc
	eg     *errgroup.Group
}

func newIPCWorkerModule(kernelCap kernel.Capability, ln net.Listener, handler ipc.Handler, logger *zap.Logger) *ipcWorkerModule {
	return &ipcWorkerModule{Guard: kernel.NewGuard(kernelCap), ln: ln, handler: handler, logger: logger}
}

func (m *ipcWorkerModule) Start(cap kernel.Capability) error {
	if err := m.Guard.Check(cap); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	eg, egCtx := errgroup.WithContext(ctx)
	m.eg = eg

	m.eg.Go(func() error {
		return ipc.Serve(egCtx, m.ln, m.handler, m.logger)
	})

	m.logger.Info("ipc worker listening", logging.Component("cmd/platform"), zap.String("addr", m.ln.Addr().String()))

	return nil
}

func (m *ipcWorkerModule) Stop(cap kernel.Capability) error {
	if err := m.Guard.Check(cap); err != nil {
		return err
	}

	m.cancel()

	return m.eg.Wait()
}
