package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// gooseUpContext and gooseStatusContext are seams for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

var gooseStatusContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.StatusContext(ctx, db, dir, opts...)
}

func setupGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return nil
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrationStatus prints goose's status table to out.
func MigrationStatus(ctx context.Context, db *sql.DB, out io.Writer) error {
	if err := setupGoose(); err != nil {
		return err
	}
	goose.SetLogger(statusLogger{out: out})
	defer goose.SetLogger(goose.NopLogger())
	if err := gooseStatusContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	return nil
}

type statusLogger struct{ out io.Writer }

func (l statusLogger) Fatalf(format string, v ...any) { fmt.Fprintf(l.out, format, v...) }
func (l statusLogger) Printf(format string, v ...any) { fmt.Fprintf(l.out, format, v...) }
