package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baechuer/contacts-api/internal/domain"
)

// Authenticator is satisfied by *auth.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string, requireVerified bool) (domain.Identity, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Authenticate verifies Authorization: Bearer <access_token> and injects the
// resolved identity into the request context. Every header problem is the
// same 401 so callers cannot probe token state.
func Authenticate(authn Authenticator, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeErr(w, r, domain.ErrUnauthorized())
				return
			}

			identity, err := authn.Authenticate(r.Context(), raw, false)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireVerified rejects identities whose email is not confirmed yet.
// Assumes Authenticate() ran first.
func RequireVerified(writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeErr(w, r, domain.ErrUnauthorized())
				return
			}
			if !identity.Verified {
				writeErr(w, r, domain.ErrEmailNotVerified())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}

	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
