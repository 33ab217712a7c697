package authapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/authapi"
	"github.com/arnforge/modkit/internal/platform/identity"
	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
)

// verifierBox breaks the identity.Manager <-> session.TokenService
// construction cycle: Manager needs a TokenVerifier at construction time,
// TokenService needs a UserLookup (the Manager) at its own construction
// time, so the box is built empty and wired after both exist.
type verifierBox struct {
	tokens *session.TokenService
}

func (b *verifierBox) VerifyAccessToken(token string) (session.VerifyResult, error) {
	return b.tokens.VerifyAccessToken(token)
}

func newTestServer(t *testing.T) (*authapi.Server, *clock.Mock) {
	t.Helper()

	backing := store.NewMemory()
	box := &verifierBox{}
	idMgr := identity.NewManager(backing, box)
	require.NoError(t, idMgr.Bootstrap(t.Context()))

	keys := session.NewKeyStore(randomKey(t))
	repo := session.NewRefreshRepository(backing)
	tokens := session.NewTokenService(keys, repo, idMgr, 0, 0)
	box.tokens = tokens

	mockClock := clock.NewMock()
	tracker := session.NewTrackerWithClock(session.BlockCallbacks{}, mockClock)

	return &authapi.Server{
		Identity: idMgr,
		Tokens:   tokens,
		Refresh:  repo,
		Attempts: tracker,
		Geo:      session.NewGeoValidator(""),
		Cookies:  session.CookieConfig{Secure: false},
		Logger:   zap.NewNop(),
	}, mockClock
}

func randomKey(t *testing.T) session.Key {
	t.Helper()

	var k session.Key

	copy(k[:], strings.Repeat("k", len(k)))

	return k
}

func cookieValue(t *testing.T, resp *http.Response, name string) string {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}

	return ""
}

func TestRegisterThenLoginIssuesCookies(t *testing.T) {
	s, _ := newTestServer(t)

	registerBody := `{"username":"alice","email":"alice@example.com","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(registerBody))
	rec := httptest.NewRecorder()

	s.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := rec.Result()
	assert.NotEmpty(t, cookieValue(t, resp, session.AccessCookieName))
	assert.NotEmpty(t, cookieValue(t, resp, session.RefreshCookieName))

	loginBody := `{"username":"alice","password":"hunter22"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(loginBody))
	loginRec := httptest.NewRecorder()

	s.Login(loginRec, loginReq)

	require.Equal(t, http.StatusOK, loginRec.Code)
	assert.NotEmpty(t, cookieValue(t, loginRec.Result(), session.AccessCookieName))
}

func TestLoginWrongPasswordThenBlockedAfterThreeFailures(t *testing.T) {
	s, _ := newTestServer(t)

	registerBody := `{"username":"bob","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(registerBody))
	rec := httptest.NewRecorder()
	s.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 3; i++ {
		body := `{"username":"bob","password":"wrong"}`
		loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		loginRec := httptest.NewRecorder()
		s.Login(loginRec, loginReq)
		require.Equal(t, http.StatusUnauthorized, loginRec.Code)
	}

	body := `{"username":"bob","password":"correct-horse"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	loginRec := httptest.NewRecorder()
	s.Login(loginRec, loginReq)

	assert.Equal(t, http.StatusForbidden, loginRec.Code)
}

func TestSessionReportsUnauthenticatedWithoutCookie(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()

	s.Session(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)
}

func TestSessionAuthenticatedAfterLogin(t *testing.T) {
	s, _ := newTestServer(t)

	registerBody := `{"username":"carol","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(registerBody))
	rec := httptest.NewRecorder()
	s.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	access := cookieValue(t, rec.Result(), session.AccessCookieName)

	sessReq := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sessReq.AddCookie(&http.Cookie{Name: session.AccessCookieName, Value: access})
	sessRec := httptest.NewRecorder()

	s.Session(sessRec, sessReq)

	assert.Equal(t, http.StatusOK, sessRec.Code)
	assert.Contains(t, sessRec.Body.String(), `"authenticated":true`)
}

func TestRefreshRotatesTokenAndLogoutClearsCookies(t *testing.T) {
	s, _ := newTestServer(t)

	registerBody := `{"username":"dave","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(registerBody))
	rec := httptest.NewRecorder()
	s.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	refreshToken := cookieValue(t, rec.Result(), session.RefreshCookieName)

	refreshReq := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	refreshReq.AddCookie(&http.Cookie{Name: session.RefreshCookieName, Value: refreshToken})
	refreshRec := httptest.NewRecorder()

	s.Refresh(refreshRec, refreshReq)

	require.Equal(t, http.StatusOK, refreshRec.Code)
	newRefresh := cookieValue(t, refreshRec.Result(), session.RefreshCookieName)
	assert.NotEqual(t, refreshToken, newRefresh)

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(&http.Cookie{Name: session.RefreshCookieName, Value: newRefresh})
	logoutRec := httptest.NewRecorder()

	s.Logout(logoutRec, logoutReq)

	require.Equal(t, http.StatusOK, logoutRec.Code)

	cleared := cookieValue(t, logoutRec.Result(), session.AccessCookieName)
	assert.Empty(t, cleared)
}

func TestRefreshWithGeoMismatchRevokesAllTokens(t *testing.T) {
	s, _ := newTestServer(t)

	registerBody := `{"username":"erin","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(registerBody))
	req.Header.Set("X-Forwarded-Country", "AR")
	rec := httptest.NewRecorder()
	s.Register(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	refreshToken := cookieValue(t, rec.Result(), session.RefreshCookieName)

	refreshReq := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	refreshReq.Header.Set("X-Forwarded-Country", "US")
	refreshReq.AddCookie(&http.Cookie{Name: session.RefreshCookieName, Value: refreshToken})
	refreshRec := httptest.NewRecorder()

	s.Refresh(refreshRec, refreshReq)

	assert.Equal(t, http.StatusUnauthorized, refreshRec.Code)
	assert.Contains(t, refreshRec.Body.String(), "requireRelogin")

	// The token was revoked too: replaying it from the original country no
	// longer refreshes.
	replayReq := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	replayReq.Header.Set("X-Forwarded-Country", "AR")
	replayReq.AddCookie(&http.Cookie{Name: session.RefreshCookieName, Value: refreshToken})
	replayRec := httptest.NewRecorder()

	s.Refresh(replayRec, replayReq)

	assert.NotEqual(t, http.StatusOK, replayRec.Code)
}
