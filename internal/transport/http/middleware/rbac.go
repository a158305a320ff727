package middleware

import (
	"net/http"

	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/logger"
)

// RequireAtLeast admits identities whose role ranks at or above minRole
// (admin > moderator > user). Authenticate must run first. An unknown
// minRole is a wiring bug and panics at construction.
func RequireAtLeast(minRole domain.Role, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if !domain.IsValidRole(string(minRole)) {
		panic("middleware: unknown role " + string(minRole))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeErr(w, r, domain.ErrUnauthorized())
				return
			}

			switch {
			case !domain.IsValidRole(identity.Role):
				logger.WithCtx(r.Context()).Warn().
					Str("role", identity.Role).
					Msg("identity carries unknown role")
				writeErr(w, r, domain.ErrForbidden())
				return
			case !domain.AtLeast(identity.Role, minRole):
				writeErr(w, r, domain.ErrInsufficientRole(string(minRole)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
