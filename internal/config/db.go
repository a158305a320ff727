package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/baechuer/contacts-api/internal/logger"
)

// PoolOptions tunes the database/sql pool and the startup ping.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	PingTimeout time.Duration
	// PingRetries is the number of extra ping attempts, spaced by
	// exponential backoff, before giving up.
	PingRetries uint64
}

var DefaultPool = PoolOptions{
	MaxOpen:     20,
	MaxIdle:     10,
	MaxIdleTime: 5 * time.Minute,
	MaxLifetime: time.Hour,
	PingTimeout: 3 * time.Second,
	PingRetries: 2,
}

// sqlOpen is swapped in tests.
var sqlOpen = sql.Open

// NewDB opens Postgres through the pgx stdlib driver with DefaultPool.
func NewDB(dsn string, debug bool) (*sql.DB, error) {
	return OpenDB(context.Background(), dsn, DefaultPool, debug)
}

// OpenDB opens and pings the database. With debug set it logs who and
// where it connected to; credentials are never logged.
func OpenDB(ctx context.Context, dsn string, opts PoolOptions, debug bool) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("empty DB DSN")
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpen)
	db.SetMaxIdleConns(opts.MaxIdle)
	db.SetConnMaxIdleTime(opts.MaxIdleTime)
	db.SetConnMaxLifetime(opts.MaxLifetime)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, opts.PingRetries), ctx)

	attempt := 0
	ping := func() error {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
		return db.PingContext(pctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("database ping failed")
	}
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if debug {
		logServerIdentity(ctx, db)
	}
	return db, nil
}

const serverIdentityQuery = `SELECT current_user, current_database(),
	coalesce(inet_server_addr()::text, ''), current_setting('server_version')`

func logServerIdentity(ctx context.Context, db *sql.DB) {
	var user, name, addr, version string
	if err := db.QueryRowContext(ctx, serverIdentityQuery).Scan(&user, &name, &addr, &version); err != nil {
		logger.Logger.Warn().Err(err).Msg("database identity query failed")
		return
	}
	logger.Logger.Info().
		Str("db_user", user).
		Str("db_name", name).
		Str("server_addr", addr).
		Str("server_version", version).
		Msg("database connected")
}
