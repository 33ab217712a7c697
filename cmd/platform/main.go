// Command platform is the reference wiring for the auth HTTP surface, the
// worker executor, and the cross-language IPC contract (§1 non-goals: "CLI
// entry beyond a minimal cmd/platform wiring demo"). It is not a deployment
// tool: configuration is a handful of flags/env vars, not a descriptor
// loader, and the backing store is always in-memory.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/authapi"
	"github.com/arnforge/modkit/internal/platform/identity"
	"github.com/arnforge/modkit/internal/platform/ipc"
	"github.com/arnforge/modkit/internal/platform/kernel"
	"github.com/arnforge/modkit/internal/platform/logging"
	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
	"github.com/arnforge/modkit/internal/platform/worker"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger, err := logging.Build(cfg.production())
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	k, err := kernel.New(logger)
	if err != nil {
		logger.Fatal("failed to construct kernel", zap.Error(err))
	}

	if cfg.mode == "worker" {
		err = runWorker(k, cfg, logger)
	} else {
		err = runHost(k, cfg, logger)
	}

	if err != nil {
		logger.Fatal("platform exited with error", zap.Error(err))
	}
}

// verifierBox breaks the identity.Manager <-> session.TokenService
// construction cycle the same way authapi's own tests do: Manager needs a
// TokenVerifier up front, TokenService needs the Manager as its UserLookup,
// so the box is built empty and wired once both exist.
type verifierBox struct {
	tokens *session.TokenService
}

func (b *verifierBox) VerifyAccessToken(token string) (session.VerifyResult, error) {
	return b.tokens.VerifyAccessToken(token)
}

// bootstrapModule is the single Provider-kind module cmd/platform registers
// directly. Capability has no exported constructor outside the kernel
// package (kernel/capability_test.go's own helper has to go through Start to
// get one), so register handed the real token only once Start runs, and
// uses it to construct and register every capability-gated module the rest
// of the process needs before the kernel moves on to later kinds.
type bootstrapModule struct {
	register func(cap kernel.Capability) error
}

func (b *bootstrapModule) Start(cap kernel.Capability) error {
	return b.register(cap)
}

func (b *bootstrapModule) Stop(kernel.Capability) error { return nil }

// blockCallbacks wires the attempt tracker's transition hooks (§4.9) to real
// effects: UpdateBlockStatus persists the block onto the user record through
// identity.Manager.SetBlockStatus, SendAlertEmail logs a security-alert line
// since this reference wiring has no mail transport to send through.
// RecordLoginFailure tracks pre-resolution attempts under a tentative key
// (authapi.loginAttemptKey) that isn't a real user id, so a SetBlockStatus
// lookup failure there is expected and only logged at debug.
func blockCallbacks(idMgr *identity.Manager, logger *zap.Logger) session.BlockCallbacks {
	return session.BlockCallbacks{
		UpdateBlockStatus: func(userID string, blockedUntil *time.Time, permanent bool) {
			if err := idMgr.SetBlockStatus(userID, blockedUntil, permanent); err != nil {
				logger.Debug("block status not persisted",
					logging.Component("cmd/platform"),
					zap.String("userId", userID),
					zap.Error(err),
				)
			}
		},
		SendAlertEmail: func(userID, reason string) {
			logger.Warn("security alert",
				logging.Component("cmd/platform"),
				zap.String("userId", userID),
				zap.String("reason", reason),
			)
		},
	}
}

func runHost(k *kernel.Kernel, cfg *config, logger *zap.Logger) error {
	backing := store.NewMemory()

	box := &verifierBox{}
	idMgr := identity.NewManager(backing, box)

	key, err := cfg.signingKey()
	if err != nil {
		return err
	}

	keys := session.NewKeyStore(key)
	refreshRepo := session.NewRefreshRepository(backing)
	tokens := session.NewTokenService(keys, refreshRepo, idMgr, cfg.accessTTL, cfg.refreshTTL)
	box.tokens = tokens

	tracker := session.NewTrackerWithCounter(blockCallbacks(idMgr, logger), clock.New(), session.NewStoreCounter(backing))
	geo := session.NewGeoValidator(cfg.geoHeader)

	authServer := &authapi.Server{
		Identity: idMgr,
		Tokens:   tokens,
		Refresh:  refreshRepo,
		Attempts: tracker,
		Geo:      geo,
		Cookies:  session.CookieConfig{Secure: cfg.production()},
		Logger:   logger,
	}

	providers, err := buildOAuthProviders(cfg)
	if err != nil {
		return err
	}

	poolOpts := []worker.Option{}
	if cfg.workerMax > 0 {
		poolOpts = append(poolOpts, worker.WithMax(cfg.workerMax))
	}

	pool := worker.NewPool(cfg.workerMin, logger, poolOpts...)

	binding, closeRemote, err := buildDispatchBinding(cfg, pool)
	if err != nil {
		return err
	}
	if closeRemote != nil {
		defer closeRemote() //nolint:errcheck
	}

	router := buildRouter(authServer, providers, binding)

	srv := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           logging.NewHandler(router, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	k.Register(kernel.Provider, "bootstrap", "", nil, &bootstrapModule{
		register: func(cap kernel.Capability) error {
			k.Register(kernel.Utility, "workers", "", nil, newWorkerPoolModule(cap, pool))
			k.Register(kernel.Service, "identity", "", nil, identity.NewService(cap, idMgr))
			k.Register(kernel.Service, "attempts", "", nil, session.NewService(cap, tracker))
			k.Register(kernel.App, "http", "", []string{}, newHTTPServerModule(cap, srv, logger))

			return nil
		},
	})

	return runUntilSignal(k, logger)
}

func buildRouter(authServer *authapi.Server, providers oauthProviders, binding worker.Binding) *httprouter.Router {
	router := httprouter.New()

	router.POST("/auth/login", plain(authServer.Login))
	router.POST("/auth/register", plain(authServer.Register))
	router.GET("/auth/session", plain(authServer.Session))
	router.POST("/auth/refresh", plain(authServer.Refresh))
	router.POST("/auth/logout", plain(authServer.Logout))
	router.GET("/auth/oauth/:provider/start", providers.start(authServer))
	router.GET("/auth/oauth/:provider/callback", providers.callback(authServer))
	router.POST("/debug/dispatch", debugDispatchHandler(binding))

	return router
}

// buildOAuthProviders registers at most one OIDC provider from flags/env;
// the reference wiring doesn't try to support an arbitrary provider list
// from the command line, but the route table (oauthProviders) scales to
// more without change.
func buildOAuthProviders(cfg *config) (oauthProviders, error) {
	providers := oauthProviders{}

	if cfg.oidcProviderName == "" {
		return providers, nil
	}

	provider, err := authapi.NewOIDCProvider(
		context.Background(),
		cfg.oidcProviderName,
		cfg.oidcIssuer,
		cfg.oidcClientID,
		cfg.oidcClientSecret,
		cfg.oidcRedirectURL,
		nil,
		cfg.oidcAllowUnverified,
	)
	if err != nil {
		return nil, err
	}

	providers[cfg.oidcProviderName] = provider

	return providers, nil
}

// buildDispatchBinding wires /debug/dispatch's worker.Binding: a dialed
// remote worker process takes precedence over the local pool (§4.13), a
// close func is returned when a remote connection was opened.
func buildDispatchBinding(cfg *config, pool *worker.Pool) (worker.Binding, func() error, error) {
	if cfg.remoteWorkerSocket == "" {
		return worker.Binding{Pool: pool}, nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := ipc.Dial(ctx, cfg.remoteWorkerSocket)
	if err != nil {
		return worker.Binding{}, nil, err
	}

	client := ipc.NewClient(ipc.NewConn(conn))

	return worker.Binding{Remote: client}, client.Close, nil
}

func runWorker(k *kernel.Kernel, cfg *config, logger *zap.Logger) error {
	path := cfg.socketPathOrDefault()

	ln, err := ipc.Listen(path)
	if err != nil {
		return err
	}

	handler := workerModeHandler(cfg.moduleName)

	k.Register(kernel.Provider, "bootstrap", "", nil, &bootstrapModule{
		register: func(cap kernel.Capability) error {
			k.Register(kernel.Service, "ipc", "", nil, newIPCWorkerModule(cap, ln, handler, logger))

			return nil
		},
	})

	logger.Info("worker mode listening", logging.Component("cmd/platform"), zap.String("socket", path), zap.String("module", cfg.moduleName))

	return runUntilSignal(k, logger)
}

func runUntilSignal(k *kernel.Kernel, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := k.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	logger.Info("shutting down", logging.Component("cmd/platform"))

	return k.Stop(context.Background())
}
