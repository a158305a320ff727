package bootstrap

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/domain"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

type SeederStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Identity, error)
	Insert(ctx context.Context, id domain.Identity) (domain.Identity, error)
}

// SeedAdmin creates a verified admin when email is set and no account with
// that email exists yet. Restart safe.
func SeedAdmin(ctx context.Context, store SeederStore, hasher SeederHasher, email, password string, lg zerolog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	if password == "" {
		return domain.ErrMissingField("SEED_ADMIN_PASSWORD")
	}

	_, err := store.FindByEmail(ctx, email)
	if err == nil {
		lg.Debug().Str("email", email).Msg("seed admin already present")
		return nil
	}
	if !domain.Is(err, "user_not_found") {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	_, err = store.Insert(ctx, domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Verified:     true,
		Role:         string(domain.RoleAdmin),
	})
	if err != nil {
		// lost a race with another instance
		if domain.Is(err, "email_already_exists") {
			return nil
		}
		return err
	}

	lg.Info().Str("email", email).Msg("seed admin created")
	return nil
}
