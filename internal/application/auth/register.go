package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/contacts-api/internal/domain"
)

type RegisterRequest struct {
	Email    string
	Password string
}

// Register creates an unverified identity and sends the confirmation link.
// Mail problems are logged and never fail registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.Identity, error) {
	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return domain.Identity{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return domain.Identity{}, err
	}

	_, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.Identity{}, domain.ErrEmailAlreadyExists()
	case !domain.Is(err, "user_not_found"):
		return domain.Identity{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return domain.Identity{}, domain.ErrHashFailed(err)
	}

	now := time.Now().UTC()
	created, err := s.store.Insert(ctx, domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Verified:     false,
		Role:         string(domain.RoleUser),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// a concurrent registration may still win the unique index
		return domain.Identity{}, err
	}

	s.audit("auth.register", map[string]string{
		"user_id": created.ID,
		"email":   created.Email,
	})

	if err := s.SendConfirmation(ctx, created); err != nil {
		s.log.Warn().Err(err).Str("user_id", created.ID).Msg("confirmation email not queued")
	}
	return created, nil
}
