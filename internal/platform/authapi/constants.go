// Package authapi implements the native and OAuth auth endpoints (§4.11)
// over the session and identity packages.
package authapi

const (
	// RedirectQueryParam names the query parameter carrying the URL or route
	// to return to once an auth flow completes.
	RedirectQueryParam = "redirect"

	// FlowQueryParam names the query parameter selecting which auth flow
	// oauthCallback is completing on behalf of.
	FlowQueryParam = "flow"

	// CLIAuthFlow marks an OAuth flow started on behalf of a CLI client.
	CLIAuthFlow = "cli"

	// FrontendAuthFlow marks an OAuth flow started on behalf of the web frontend.
	FrontendAuthFlow = "frontend"

	// ProxyAuthFlow marks an OAuth flow started on behalf of a workload proxy.
	ProxyAuthFlow = "workload-proxy"
)
