package auth

import (
	"context"
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

/*
IdentityStore
--------
Persistence port for identities (the primary store).
Reads issued after a write in the same flow must observe that write.
Not found is reported as domain.ErrUserNotFound.
*/
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Identity, error)
	FindByID(ctx context.Context, id string) (domain.Identity, error)
	Insert(ctx context.Context, id domain.Identity) (domain.Identity, error)

	UpdatePassword(ctx context.Context, id string, hash string) error
	SetVerified(ctx context.Context, id string) error
	SetRole(ctx context.Context, id string, role string) error
	CountByRole(ctx context.Context, role string) (int, error)
}

/*
PasswordHasher
--------------
Abstracts bcrypt. Verify never errors: a malformed digest is a mismatch.
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, digest string) bool
}

/*
TokenCodec
-----------
Issues and verifies purpose-scoped signed tokens.
Verify fails with domain.ErrTokenInvalid or domain.ErrTokenExpired.
*/
type TokenRequest struct {
	Subject string
	Purpose domain.TokenPurpose
	TTL     time.Duration
	// Binding pins the token to server-side state (the password hash
	// fingerprint for reset tokens). Empty for other purposes.
	Binding string
}

type TokenClaims struct {
	Subject   string
	Purpose   domain.TokenPurpose
	Nonce     string
	Binding   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenCodec interface {
	Issue(req TokenRequest) (string, error)
	Verify(token string, purpose domain.TokenPurpose) (TokenClaims, error)
}

/*
IdentityCache
-------------
Best-effort subject_id -> Identity cache. Get reports a miss on any backend
failure. Put swallows failures. Invalidate returns the backend error so the
caller can log it; it must never fail a request.
*/
type IdentityCache interface {
	Get(ctx context.Context, id string) (domain.Identity, bool)
	Put(ctx context.Context, identity domain.Identity, ttl time.Duration)
	Invalidate(ctx context.Context, id string) error
}

/*
ConsumedTokenStore
------------------
Records reset-token nonces that have been used. Claim reports false when the
nonce was already recorded.
*/
type ConsumedTokenStore interface {
	Claim(ctx context.Context, nonce, subject string, expiresAt time.Time) (bool, error)
	Release(ctx context.Context, nonce string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

/*
Notifier
--------
Hands confirmation and reset links to the mail gateway. Delivery is
asynchronous; an error only means the message could not be queued.
*/
type Notifier interface {
	ConfirmationEmail(ctx context.Context, to, link string) error
	PasswordResetEmail(ctx context.Context, to, link string) error
}
