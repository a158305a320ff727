package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/baechuer/contacts-api/internal/config"
	"github.com/baechuer/contacts-api/internal/infrastructure/db/postgres"
)

var (
	migrateDSN     string
	migrateTimeout time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			return postgres.MigrationStatus(ctx, db, cmd.OutOrStdout())
		})
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDSN, "database-url", "", "Postgres DSN (defaults to DATABASE_URL)")
	migrateCmd.PersistentFlags().DurationVar(&migrateTimeout, "timeout", time.Minute, "overall timeout")
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

var errNoDSN = errors.New("no database: set --database-url or DATABASE_URL")

func migrationDSN() (string, error) {
	dsn := migrateDSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return "", errNoDSN
	}
	return dsn, nil
}

func withDB(parent context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	dsn, err := migrationDSN()
	if err != nil {
		return err
	}
	db, err := config.NewDB(dsn, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, migrateTimeout)
	defer cancel()
	return fn(ctx, db)
}
