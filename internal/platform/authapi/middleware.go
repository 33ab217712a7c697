package authapi

import (
	"context"
	"net/http"

	"github.com/arnforge/modkit/internal/platform/ctxstore"
	"github.com/arnforge/modkit/internal/platform/errs"
	"github.com/arnforge/modkit/internal/platform/session"
)

// PrincipalFromContext returns the access payload RequireAuth attached to
// the request context via ctxstore, the teacher's pattern of stashing
// verified identity on the context for downstream handlers keyed by type
// rather than a hand-rolled string/int key.
func PrincipalFromContext(ctx context.Context) (session.AccessPayload, bool) {
	return ctxstore.Value[session.AccessPayload](ctx)
}

// RequireAuth verifies the access cookie and rejects the request with 401 if
// it is missing, expired, or otherwise invalid; on success it stashes the
// decoded AccessPayload on the request context for next to read.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.AccessCookieName)
		if err != nil {
			writeError(w, s.Logger, errs.NewAuthenticationError("missing access cookie"))

			return
		}

		result, err := s.Tokens.VerifyAccessToken(cookie.Value)
		if err != nil || !result.Valid {
			writeError(w, s.Logger, err)

			return
		}

		if result.UsedPreviousKey {
			w.Header().Set("X-Refresh-Required", "true")
		}

		ctx := ctxstore.WithValue(r.Context(), result.Session)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
