package middleware

import (
	"net/http"
	"strings"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/logging"
)

// Authenticate attaches the caller's claims when a valid bearer token is
// present. Anonymous requests pass through; RequireAuth rejects them.
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted there. Paths under an exempt prefix carry their
// own credentials in the Authorization header and are passed through untouched.
func Authenticate(tokens *auth.TokenManager, next http.Handler, exempt ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range exempt {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		raw := bearerToken(r)
		if raw == "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			logging.FromContext(r.Context()).WithError(err).Debug("rejected bearer token")
			respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := auth.WithClaims(r.Context(), claims)
		ctx = logging.WithEntry(ctx, logging.FromContext(ctx).WithField("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without authenticated claims.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			respond.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
