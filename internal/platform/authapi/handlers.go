package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnforge/modkit/internal/platform/errs"
	"github.com/arnforge/modkit/internal/platform/identity"
	"github.com/arnforge/modkit/internal/platform/session"
)

// validate is shared across request bodies; validator.Validate is safe for
// concurrent use once built, so a single package-level instance avoids
// rebuilding the struct-tag cache on every request.
var validate = validator.New(validator.WithRequiredStructEnabled())

// deviceHeader names the header clients may use to pin a stable device id
// across login/refresh calls; §4.7's createTokenPair takes a deviceId but
// the spec leaves its derivation to the transport, so we read it from a
// header and mint one when absent.
const deviceHeader = "X-Device-Id"

// Server bundles the session/identity collaborators the auth endpoints need
// (§4.11). Every handler is a plain http.HandlerFunc-shaped method, wired
// onto whatever router the host process chooses (§6.2).
type Server struct {
	Identity *identity.Manager
	Tokens   *session.TokenService
	Refresh  *session.RefreshRepository
	Attempts *session.Tracker
	Geo      *session.GeoValidator
	Cookies  session.CookieConfig
	Logger   *zap.Logger
}

func deviceIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(deviceHeader); id != "" {
		return id
	}

	return uuid.NewString()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}

	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the platform error taxonomy onto the wire Response shape
// of §6.2.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		blocked *errs.BlockedError
		authN   *errs.AuthenticationError
		authZ   *errs.AuthorizationError
		conf    *errs.ConflictError
	)

	switch {
	case errors.As(err, &blocked):
		key := errs.ErrorKeyAccountBlockedTemporary
		if blocked.Permanent {
			key = errs.ErrorKeyAccountBlockedPermanent
		}

		writeJSON(w, http.StatusForbidden, errs.Response{Status: http.StatusForbidden, ErrorKey: key, Message: blocked.Error()})
	case errors.As(err, &authN):
		data := map[string]any{}
		if authN.RequireRelogin {
			data["requireRelogin"] = true
		}

		writeJSON(w, http.StatusUnauthorized, errs.Response{
			Status: http.StatusUnauthorized, ErrorKey: errs.ErrorKeyInvalidCredentials,
			Message: authN.Error(), Data: data,
		})
	case errors.As(err, &authZ):
		writeJSON(w, http.StatusForbidden, errs.Response{Status: http.StatusForbidden, ErrorKey: errs.ErrorKeyForbidden, Message: authZ.Error()})
	case errors.As(err, &conf):
		key := errs.ErrorKeyUsernameTaken
		if conf.Field == "email" {
			key = errs.ErrorKeyEmailTaken
		}

		writeJSON(w, http.StatusConflict, errs.Response{Status: http.StatusConflict, ErrorKey: key, Message: conf.Error()})
	case errors.Is(err, errs.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errs.Response{Status: http.StatusBadRequest, ErrorKey: errs.ErrorKeyValidation, Message: err.Error()})
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrAuthentication):
		writeJSON(w, http.StatusUnauthorized, errs.Response{Status: http.StatusUnauthorized, ErrorKey: errs.ErrorKeyInvalidCredentials, Message: "invalid credentials"})
	default:
		logger.Error("unhandled auth endpoint error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errs.Response{Status: http.StatusInternalServerError, ErrorKey: errs.ErrorKeyInternal, Message: "internal error"})
	}
}

func toProfile(p session.Principal) *Profile {
	return &Profile{
		ID:          p.UserID,
		Username:    p.Username,
		Email:       p.Email,
		Permissions: p.Permissions,
		OrgID:       p.OrgID,
	}
}

// Login handles username/password login, emitting a token-pair on success or
// an org choice list when the user belongs to an org and orgId was not
// supplied (§4.11).
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.Logger, errs.ErrValidation)

		return
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, s.Logger, errs.ErrValidation)

		return
	}

	ctx := r.Context()
	country := s.Geo.CountryFromRequest(r)

	user, err := s.Identity.FindUserByUsername(ctx, req.Username)
	if err != nil {
		s.Attempts.RecordLoginFailure(loginAttemptKey(req.Username))
		writeError(w, s.Logger, &errs.AuthenticationError{Reason: "invalid credentials"})

		return
	}

	if status := s.Attempts.Status(user.ID); status.Blocked {
		writeError(w, s.Logger, &errs.BlockedError{BlockedUntil: status.BlockedUntil, Permanent: status.Permanent, Reason: status.Reason})

		return
	}

	ok, err := session.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		s.Attempts.RecordLoginFailure(user.ID)
		writeError(w, s.Logger, &errs.AuthenticationError{Reason: "invalid credentials"})

		return
	}

	if user.OrgID != "" && req.OrgID == "" {
		writeJSON(w, http.StatusOK, OrgChoice{Orgs: []OrgOption{{ID: user.OrgID, Name: user.OrgID}}})

		return
	}

	s.Attempts.RecordSuccess(user.ID)

	principal, err := s.Identity.Lookup(user.ID)
	if err != nil {
		writeError(w, s.Logger, err)

		return
	}

	pair, err := s.Tokens.CreateTokenPair(ctx, principal, deviceIDFromRequest(r), clientIP(r), country, r.UserAgent())
	if err != nil {
		writeError(w, s.Logger, err)

		return
	}

	s.Cookies.SetAccessCookie(w, pair.AccessToken, pair.AccessTTL)
	s.Cookies.SetRefreshCookie(w, pair.RefreshToken, pair.RefreshTTL)

	writeJSON(w, http.StatusOK, toProfile(principal))
}

// loginAttemptKey namespaces pre-resolution login attempts under a tentative
// id, matching §8's documented (and accepted) "counts failures before a user
// record is resolved" behavior so attack budget is spent even against
// nonexistent usernames.
func loginAttemptKey(username string) string {
	return "login_attempt_" + username
}

// Register creates a user and logs them in immediately (§4.11).
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.Logger, errs.ErrValidation)

		return
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, s.Logger, errs.ErrValidation)

		return
	}

	passwordHash, err := session.HashPassword(req.Password)
	if err != nil {
		writeError(w, s.Logger, err)

		return
	}

	ctx := r.Context()

	u, err := s.Identity.CreateUser(ctx, "", identity.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Metadata:     map[string]any{"provider": "internal"},
	})
	if err != nil {
		writeError(w, s.Logger, err)

		return
	}

	principal, err := s.Identity.Lookup(u.ID)
	if err != nil {
		writeError(w, s.Logger, err)

		return
	}

	pair, err := s.Tokens.CreateTokenPair(ctx, principal, deviceIDFromRequest(r), clientIP(r), s.Geo.CountryFromRequest(r), r.UserAgent())
	if err != nil {
		writeError(w, s.Logger, err)

		return
	}

	s.Cookies.SetAccessCookie(w, pair.AccessToken, pair.AccessTTL)
	s.Cookies.SetRefreshCookie(w, pair.RefreshToken, pair.RefreshTTL)

	writeJSON(w, http.StatusCreated, toProfile(principal))
}

// Session verifies the access cookie and reports whether it came from the
// previous signing key, signaling the caller should refresh soon (§4.11).
func (s *Server) Session(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.AccessCookieName)
	if err != nil {
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})

		return
	}

	result, err := s.Tokens.VerifyAccessToken(cookie.Value)
	if err != nil || !result.Valid {
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})

		return
	}

	if result.UsedPreviousKey {
		w.Header().Set("X-Refresh-Required", "true")
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Authenticated: true,
		User: &Profile{
			ID:          result.Session.UserID,
			Username:    result.Session.Metadata.Username,
			Email:       result.Session.Metadata.Email,
			Permissions: result.Session.Permissions,
			OrgID:       result.Session.Metadata.OrgID,
		},
	})
}

// refreshAttemptKey resolves the record's owning user for attempt tracking,
// falling back to the raw token string when it can't be resolved (e.g. an
// already-revoked or forged token), mirroring login's tentative-id pattern
// so attack budget is spent even when no user can be identified yet.
func (s *Server) refreshAttemptKey(ctx context.Context, token string) string {
	rec, err := s.Refresh.FindByToken(ctx, token)
	if err != nil {
		return "refresh_attempt_" + token
	}

	return rec.UserID
}

// Refresh rotates the refresh cookie, enforcing geographic consistency and
// the refresh-attempt block rules (§4.9, §4.10, §4.11).
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.RefreshCookieName)
	if err != nil {
		writeError(w, s.Logger, &errs.AuthenticationError{Reason: "missing refresh cookie"})

		return
	}

	ctx := r.Context()
	country := s.Geo.CountryFromRequest(r)
	attemptKey := s.refreshAttemptKey(ctx, cookie.Value)

	if status := s.Attempts.Status(attemptKey); status.Blocked {
		writeError(w, s.Logger, &errs.BlockedError{BlockedUntil: status.BlockedUntil, Permanent: status.Permanent, Reason: status.Reason})

		return
	}

	pair, err := s.Tokens.RefreshTokens(ctx, cookie.Value, clientIP(r), country, r.UserAgent(), s.Geo.ValidateTransition)
	if err != nil {
		if state := s.Attempts.RecordRefreshFailure(attemptKey); state == session.StatePermBlocked {
			_, _ = s.Refresh.RevokeAllForUser(ctx, attemptKey)
		}

		var authN *errs.AuthenticationError
		if errors.As(err, &authN) {
			s.Cookies.ClearAuthCookies(w)
		}

		writeError(w, s.Logger, err)

		return
	}

	s.Attempts.RecordSuccess(attemptKey)

	s.Cookies.SetAccessCookie(w, pair.AccessToken, pair.AccessTTL)
	s.Cookies.SetRefreshCookie(w, pair.RefreshToken, pair.RefreshTTL)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Logout revokes the caller's refresh token and clears both auth cookies
// (§4.11).
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.RefreshCookieName); err == nil {
		_ = s.Refresh.Revoke(r.Context(), cookie.Value)
	}

	s.Cookies.ClearAuthCookies(w)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
