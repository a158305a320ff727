package postgres

import (
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

type identityRow struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *identityRow) dest() []any {
	return []any{
		&r.ID,
		&r.Email,
		&r.PasswordHash,
		&r.Verified,
		&r.Role,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

func (r identityRow) toDomain() domain.Identity {
	return domain.Identity{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Verified:     r.Verified,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}
