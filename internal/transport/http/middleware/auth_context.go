package middleware

import (
	"context"

	"github.com/baechuer/contacts-api/internal/domain"
	pkgctx "github.com/baechuer/contacts-api/internal/pkg/context"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

// WithIdentity stores the authenticated identity and tags the context with
// its subject id for log correlation.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	ctx = pkgctx.WithSubject(ctx, identity.ID)
	return context.WithValue(ctx, ctxIdentity, identity)
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	v, ok := ctx.Value(ctxIdentity).(domain.Identity)
	return v, ok && v.ID != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := IdentityFromContext(ctx)
	return v.ID, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := IdentityFromContext(ctx)
	return v.Role, ok && v.Role != ""
}
