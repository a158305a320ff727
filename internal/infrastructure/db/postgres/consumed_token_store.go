package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

// ConsumedTokenStore implements auth.ConsumedTokenStore on consumed_tokens.
// The primary key on nonce makes Claim atomic across instances.
type ConsumedTokenStore struct {
	db *sql.DB
}

func NewConsumedTokenStore(db *sql.DB) *ConsumedTokenStore {
	return &ConsumedTokenStore{db: db}
}

func (s *ConsumedTokenStore) Claim(ctx context.Context, nonce, subject string, expiresAt time.Time) (bool, error) {
	if nonce == "" {
		return false, domain.ErrMissingField("nonce")
	}

	const q = `
INSERT INTO consumed_tokens (nonce, subject, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (nonce) DO NOTHING;
`
	res, err := s.db.ExecContext(ctx, q, nonce, subject, expiresAt.UTC())
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return n == 1, nil
}

func (s *ConsumedTokenStore) Release(ctx context.Context, nonce string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM consumed_tokens WHERE nonce = $1;`, nonce); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

// PurgeExpired drops records whose token could no longer verify anyway.
func (s *ConsumedTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consumed_tokens WHERE expires_at <= $1;`, now.UTC())
	if err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	return n, nil
}

