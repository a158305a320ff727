package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/contacts-api/internal/domain"
)

const identityColumns = `id, email, password_hash, verified, role, created_at, updated_at`

// IdentityStore implements auth.IdentityStore on the identities table.
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// ---------- helpers ----------

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches SQLSTATE 23505; the string check covers drivers
// that do not surface *pgconn.PgError.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

func (s *IdentityStore) findOne(ctx context.Context, where string, arg string) (domain.Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE ` + where + ` = $1 LIMIT 1;`

	var row identityRow
	if err := s.db.QueryRowContext(ctx, q, arg).Scan(row.dest()...); err != nil {
		if isNoRows(err) {
			return domain.Identity{}, domain.ErrUserNotFound()
		}
		return domain.Identity{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

// exec runs a single-row UPDATE and maps zero affected rows to not found.
func (s *IdentityStore) exec(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

// ---------- auth.IdentityStore ----------

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (domain.Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.Identity{}, domain.ErrMissingField("email")
	}
	return s.findOne(ctx, "email", email)
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (domain.Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Identity{}, domain.ErrMissingField("id")
	}
	return s.findOne(ctx, "id", id)
}

func (s *IdentityStore) Insert(ctx context.Context, in domain.Identity) (domain.Identity, error) {
	in.Email = normalizeEmail(in.Email)
	if in.ID == "" {
		return domain.Identity{}, domain.ErrMissingField("id")
	}
	if in.Email == "" {
		return domain.Identity{}, domain.ErrMissingField("email")
	}
	if in.PasswordHash == "" {
		return domain.Identity{}, domain.ErrMissingField("password_hash")
	}
	if in.Role == "" {
		in.Role = string(domain.RoleUser)
	}

	const q = `
INSERT INTO identities (id, email, password_hash, verified, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + identityColumns + `;
`
	var row identityRow
	err := s.db.QueryRowContext(ctx, q,
		in.ID, in.Email, in.PasswordHash, in.Verified, in.Role,
	).Scan(row.dest()...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Identity{}, domain.ErrEmailAlreadyExists()
		}
		return domain.Identity{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

func (s *IdentityStore) UpdatePassword(ctx context.Context, id string, hash string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrMissingField("user_id")
	}
	if hash == "" {
		return domain.ErrMissingField("password_hash")
	}

	const q = `
UPDATE identities
SET password_hash = $2,
    updated_at = NOW()
WHERE id = $1;
`
	return s.exec(ctx, q, id, hash)
}

// SetVerified is idempotent; verified never flips back to false.
func (s *IdentityStore) SetVerified(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrMissingField("user_id")
	}

	const q = `
UPDATE identities
SET verified = TRUE,
    updated_at = NOW()
WHERE id = $1;
`
	return s.exec(ctx, q, id)
}

func (s *IdentityStore) SetRole(ctx context.Context, id string, role string) error {
	id = strings.TrimSpace(id)
	role = strings.TrimSpace(role)

	if id == "" {
		return domain.ErrMissingField("user_id")
	}
	if !domain.IsValidRole(role) {
		return domain.ErrInvalidRole(role)
	}

	const q = `
UPDATE identities
SET role = $2,
    updated_at = NOW()
WHERE id = $1;
`
	return s.exec(ctx, q, id, role)
}

func (s *IdentityStore) CountByRole(ctx context.Context, role string) (int, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return 0, domain.ErrMissingField("role")
	}
	if !domain.IsValidRole(role) {
		return 0, domain.ErrInvalidRole(role)
	}

	const q = `SELECT COUNT(1) FROM identities WHERE role = $1;`

	var n int
	if err := s.db.QueryRowContext(ctx, q, role).Scan(&n); err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	return n, nil
}
