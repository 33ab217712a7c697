package session

import (
	"net/http"
	"time"
)

// Cookie names (§4.7, §6.2).
const (
	AccessCookieName      = "access_token"
	RefreshCookieName     = "refresh_token"
	OAuthStateCookieName  = "oauth_state"
	OAuthOriginCookieName = "oauth_origin_path"
)

// CookieConfig toggles the Secure attribute, matching the "Secure in
// production" requirement of §4.7 without hardcoding an environment check
// into the helpers themselves.
type CookieConfig struct {
	Secure bool
	Domain string
}

// SetAccessCookie writes the short-lived access-token cookie: HttpOnly,
// SameSite=Lax, path=/ (§4.7).
func (c CookieConfig) SetAccessCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// SetRefreshCookie writes the longer-lived refresh-token cookie: HttpOnly,
// SameSite=Strict, path=/auth/refresh (§4.7).
func (c CookieConfig) SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/auth/refresh",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// SetOAuthStateCookies stashes the CSRF state and post-login return path
// ahead of redirecting to the provider (§4.11 oauthStart).
func (c CookieConfig) SetOAuthStateCookies(w http.ResponseWriter, state, originPath string) {
	http.SetCookie(w, &http.Cookie{
		Name: OAuthStateCookieName, Value: state, Path: "/auth", HttpOnly: true,
		Secure: c.Secure, SameSite: http.SameSiteLaxMode, MaxAge: int((10 * time.Minute).Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name: OAuthOriginCookieName, Value: originPath, Path: "/auth", HttpOnly: true,
		Secure: c.Secure, SameSite: http.SameSiteLaxMode, MaxAge: int((10 * time.Minute).Seconds()),
	})
}

// ClearAuthCookies expires the access and refresh cookies on logout.
func (c CookieConfig) ClearAuthCookies(w http.ResponseWriter) {
	expire := func(name, path string) {
		http.SetCookie(w, &http.Cookie{
			Name: name, Value: "", Path: path, HttpOnly: true,
			Secure: c.Secure, MaxAge: -1,
		})
	}

	expire(AccessCookieName, "/")
	expire(RefreshCookieName, "/auth/refresh")
}
