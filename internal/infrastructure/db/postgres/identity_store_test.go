package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/contacts-api/internal/domain"
)

var identityCols = []string{"id", "email", "password_hash", "verified", "role", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	e, ok := domain.As(err)
	require.True(t, ok, "expected *domain.Error, got %T: %v", err, err)
	require.Equal(t, code, e.Code)
}

func TestIdentityStore_FindByEmail_NormalizesAndMaps(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM identities WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(identityCols).
			AddRow("u1", "a@example.com", "h", true, "admin", now, now))

	got, err := s.FindByEmail(context.Background(), "  A@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{
		ID: "u1", Email: "a@example.com", PasswordHash: "h",
		Verified: true, Role: "admin", CreatedAt: now, UpdatedAt: now,
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityStore_FindByID_NotFound(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)

	mock.ExpectQuery(`SELECT .* FROM identities WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindByID(context.Background(), "missing")
	requireCode(t, err, "user_not_found")
}

func TestIdentityStore_FindByID_DriverError(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)

	mock.ExpectQuery(`SELECT .* FROM identities WHERE id = \$1`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.FindByID(context.Background(), "u1")
	requireCode(t, err, "db_unavailable")
}

func TestIdentityStore_Find_EmptyKey(t *testing.T) {
	t.Parallel()
	db, _ := newMockDB(t)
	s := NewIdentityStore(db)

	_, err := s.FindByEmail(context.Background(), "   ")
	requireCode(t, err, "missing_field")
	_, err = s.FindByID(context.Background(), "")
	requireCode(t, err, "missing_field")
}

func TestIdentityStore_Insert_DefaultsRole(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`INSERT INTO identities`).
		WithArgs("u1", "new@example.com", "h", false, "user").
		WillReturnRows(sqlmock.NewRows(identityCols).
			AddRow("u1", "new@example.com", "h", false, "user", now, now))

	got, err := s.Insert(context.Background(), domain.Identity{
		ID: "u1", Email: "New@Example.com", PasswordHash: "h",
	})
	require.NoError(t, err)
	assert.Equal(t, "user", got.Role)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityStore_Insert_UniqueViolation(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)

	mock.ExpectQuery(`INSERT INTO identities`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := s.Insert(context.Background(), domain.Identity{ID: "u2", Email: "a@example.com", PasswordHash: "h"})
	requireCode(t, err, "email_already_exists")
}

func TestIdentityStore_Insert_MissingFields(t *testing.T) {
	t.Parallel()
	db, _ := newMockDB(t)
	s := NewIdentityStore(db)
	ctx := context.Background()

	_, err := s.Insert(ctx, domain.Identity{Email: "a@example.com", PasswordHash: "h"})
	requireCode(t, err, "missing_field")
	_, err = s.Insert(ctx, domain.Identity{ID: "u1", PasswordHash: "h"})
	requireCode(t, err, "missing_field")
	_, err = s.Insert(ctx, domain.Identity{ID: "u1", Email: "a@example.com"})
	requireCode(t, err, "missing_field")
}

func TestIdentityStore_Updates(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE identities\s+SET password_hash = \$2`).
		WithArgs("u1", "h2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE identities\s+SET verified = TRUE`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE identities\s+SET role = \$2`).
		WithArgs("u1", "moderator").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdatePassword(ctx, "u1", "h2"))
	require.NoError(t, s.SetVerified(ctx, "u1"))
	require.NoError(t, s.SetRole(ctx, "u1", "moderator"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityStore_Update_NoRowsIsNotFound(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)

	mock.ExpectExec(`UPDATE identities`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetVerified(context.Background(), "ghost")
	requireCode(t, err, "user_not_found")
}

func TestIdentityStore_SetRole_RejectsUnknownRole(t *testing.T) {
	t.Parallel()
	db, _ := newMockDB(t)
	s := NewIdentityStore(db)

	err := s.SetRole(context.Background(), "u1", "root")
	requireCode(t, err, "invalid_role")
}

func TestIdentityStore_CountByRole(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	s := NewIdentityStore(db)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM identities WHERE role = \$1`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountByRole(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
