package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/arnforge/modkit/internal/platform/ipc"
	"github.com/arnforge/modkit/internal/platform/session"
)

// config collects the flags and environment variables cmd/platform reads at
// startup. It is intentionally narrow: this binary is a reference wiring
// demo (§1 non-goals), not a general-purpose deployment tool.
type config struct {
	mode string // "host" or "worker"

	env      string // "development" or "production", mirrors NODE_ENV (§6.4)
	httpAddr string

	workerMin int
	workerMax int

	geoHeader string

	accessTTL  time.Duration
	refreshTTL time.Duration

	sessionKeyB64 string

	oidcProviderName  string
	oidcIssuer        string
	oidcClientID      string
	oidcClientSecret  string
	oidcRedirectURL   string
	oidcAllowUnverified bool

	// worker-mode fields: the out-of-process side of §6.5's IPC contract.
	moduleName    string
	moduleVersion string
	moduleLang    string
	platformTmp   string
	socketPath    string

	// host-mode field: dial an already-running worker process instead of
	// dispatching calls to the in-process pool (§4.13 "if a worker is
	// bound... forwards the call").
	remoteWorkerSocket string
}

func parseConfig(args []string) (*config, error) {
	fs := flag.NewFlagSet("platform", flag.ContinueOnError)

	cfg := &config{}

	fs.StringVar(&cfg.mode, "mode", "host", "run mode: host (auth API) or worker (serves one module over IPC)")
	fs.StringVar(&cfg.env, "env", envOrDefault("APP_ENV", "development"), "development or production; controls cookie Secure and hot-reload-equivalent behavior")
	fs.StringVar(&cfg.httpAddr, "addr", ":8080", "HTTP bind address (host mode)")
	fs.IntVar(&cfg.workerMin, "workers-min", 2, "minimum worker pool size")
	fs.IntVar(&cfg.workerMax, "workers-max", 0, "maximum worker pool size (0 = max(2, cpuCount-1))")
	fs.StringVar(&cfg.geoHeader, "geo-header", session.DefaultGeoHeaderName, "trusted header carrying the caller's country code")
	fs.DurationVar(&cfg.accessTTL, "access-ttl", 0, "access token lifetime (0 = default)")
	fs.DurationVar(&cfg.refreshTTL, "refresh-ttl", 0, "refresh token lifetime (0 = default)")
	fs.StringVar(&cfg.sessionKeyB64, "session-key", os.Getenv("MODKIT_SESSION_KEY"), "base64-encoded 32-byte access-token signing key; random if empty (dev only)")
	fs.StringVar(&cfg.oidcProviderName, "oidc-provider-name", os.Getenv("OIDC_PROVIDER_NAME"), "name of an OIDC provider to register, e.g. \"google\"")
	fs.StringVar(&cfg.oidcIssuer, "oidc-issuer", os.Getenv("OIDC_ISSUER"), "OIDC discovery issuer URL")
	fs.StringVar(&cfg.oidcClientID, "oidc-client-id", os.Getenv("OIDC_CLIENT_ID"), "OIDC client id")
	fs.StringVar(&cfg.oidcClientSecret, "oidc-client-secret", os.Getenv("OIDC_CLIENT_SECRET"), "OIDC client secret")
	fs.StringVar(&cfg.oidcRedirectURL, "oidc-redirect-url", os.Getenv("OIDC_REDIRECT_URL"), "OIDC callback URL registered with the provider")
	fs.BoolVar(&cfg.oidcAllowUnverified, "oidc-allow-unverified-email", false, "accept id_tokens with email_verified=false")
	fs.StringVar(&cfg.moduleName, "module", "demo-module", "module name this worker process serves (worker mode)")
	fs.StringVar(&cfg.moduleVersion, "module-version", "0.0.0", "module version (worker mode)")
	fs.StringVar(&cfg.moduleLang, "module-lang", "python", "module implementation language tag used in the socket path (worker mode)")
	fs.StringVar(&cfg.platformTmp, "platform-tmp", os.TempDir(), "base directory the conventional IPC socket path is rooted at")
	fs.StringVar(&cfg.socketPath, "socket", "", "explicit IPC socket path, overriding the conventional one")
	fs.StringVar(&cfg.remoteWorkerSocket, "remote-worker-socket", "", "dial this socket and bind dispatch to it instead of the local pool")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func (c *config) production() bool {
	return c.env == "production"
}

// signingKey decodes the configured base64 key, or mints a random one when
// none was supplied. A generated key is only usable for the lifetime of the
// process: tokens signed with it will not verify after a restart, which is
// acceptable for the reference wiring but never for a real deployment.
func (c *config) signingKey() (session.Key, error) {
	var key session.Key

	if c.sessionKeyB64 == "" {
		if _, err := rand.Read(key[:]); err != nil {
			return key, fmt.Errorf("generating session key: %w", err)
		}

		return key, nil
	}

	raw, err := base64.StdEncoding.DecodeString(c.sessionKeyB64)
	if err != nil {
		return key, fmt.Errorf("decoding -session-key: %w", err)
	}

	if len(raw) != len(key) {
		return key, fmt.Errorf("-session-key must decode to %d bytes, got %d", len(key), len(raw))
	}

	copy(key[:], raw)

	return key, nil
}

func (c *config) socketPathOrDefault() string {
	if c.socketPath != "" {
		return c.socketPath
	}

	return ipc.SocketPath(c.platformTmp, c.moduleName, c.moduleVersion, c.moduleLang)
}
