package authapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnforge/modkit/internal/platform/authapi"
	"github.com/arnforge/modkit/internal/platform/session"
)

// stubProvider satisfies authapi.OAuthProvider without a real OAuth round
// trip, letting OAuthStart/OAuthCallback be exercised directly.
type stubProvider struct {
	id      string
	profile authapi.ProviderProfile
	err     error
}

func (p *stubProvider) ID() string { return p.id }

func (p *stubProvider) AuthorizationURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, _ string) (authapi.ProviderProfile, error) {
	return p.profile, p.err
}

func TestOAuthStartSetsStateCookiesAndRedirects(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/github/start?redirect=/dashboard", nil)
	rec := httptest.NewRecorder()

	s.OAuthStart(&stubProvider{id: "github"}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.NotEmpty(t, cookieValue(t, rec.Result(), session.OAuthStateCookieName))
	assert.Equal(t, "/dashboard", cookieValue(t, rec.Result(), session.OAuthOriginCookieName))
}

func TestOAuthCallbackCreatesUserOnFirstLogin(t *testing.T) {
	s, _ := newTestServer(t)
	provider := &stubProvider{id: "github", profile: authapi.ProviderProfile{
		ProviderUserID: "gh-123",
		Email:          "newuser@example.com",
		EmailVerified:  true,
		Name:           "New User",
	}}

	startReq := httptest.NewRequest(http.MethodGet, "/auth/oauth/github/start", nil)
	startRec := httptest.NewRecorder()
	s.OAuthStart(provider).ServeHTTP(startRec, startReq)
	state := cookieValue(t, startRec.Result(), session.OAuthStateCookieName)

	cbReq := httptest.NewRequest(http.MethodGet, "/auth/oauth/github/callback?state="+state+"&code=anycode", nil)
	cbReq.AddCookie(&http.Cookie{Name: session.OAuthStateCookieName, Value: state})
	cbRec := httptest.NewRecorder()

	s.OAuthCallback(provider).ServeHTTP(cbRec, cbReq)

	require.Equal(t, http.StatusSeeOther, cbRec.Code)
	assert.NotEmpty(t, cookieValue(t, cbRec.Result(), session.AccessCookieName))
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	s, _ := newTestServer(t)
	provider := &stubProvider{id: "github"}

	cbReq := httptest.NewRequest(http.MethodGet, "/auth/oauth/github/callback?state=bad&code=anycode", nil)
	cbReq.AddCookie(&http.Cookie{Name: session.OAuthStateCookieName, Value: "good"})
	cbRec := httptest.NewRecorder()

	s.OAuthCallback(provider).ServeHTTP(cbRec, cbReq)

	assert.Equal(t, http.StatusUnauthorized, cbRec.Code)
}
