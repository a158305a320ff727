package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/application/auth"
	"github.com/baechuer/contacts-api/internal/audit"
	"github.com/baechuer/contacts-api/internal/config"
	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/infrastructure/db/postgres"
	"github.com/baechuer/contacts-api/internal/infrastructure/mail"
	"github.com/baechuer/contacts-api/internal/infrastructure/memory"
	"github.com/baechuer/contacts-api/internal/infrastructure/redis"
	"github.com/baechuer/contacts-api/internal/infrastructure/security"
	"github.com/baechuer/contacts-api/internal/janitor"
	"github.com/baechuer/contacts-api/internal/logger"
	"github.com/baechuer/contacts-api/internal/metrics"
	http_handlers "github.com/baechuer/contacts-api/internal/transport/http/handlers"
	"github.com/baechuer/contacts-api/internal/transport/http/middleware"
	"github.com/baechuer/contacts-api/internal/transport/http/response"
	"github.com/baechuer/contacts-api/internal/transport/http/router"
)

const (
	shutdownTimeout = 10 * time.Second
	issuerDefault   = "contacts-api"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(dsn string, debug bool) (*sql.DB, error)

	NewRedis func(addr, password string, db int) *redis.Client

	NewMailGateway func(cfg *config.Config, lg zerolog.Logger) (MailGateway, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

// rateLimits per router scope. Counted per client IP.
var rateLimits = map[string]middleware.RateLimitConfig{
	router.ScopeRegister:     {Limit: 5, Window: 10 * time.Minute},
	router.ScopeLogin:        {Limit: 10, Window: time.Minute},
	router.ScopeResend:       {Limit: 3, Window: 10 * time.Minute},
	router.ScopeRequestReset: {Limit: 3, Window: 10 * time.Minute},
	router.ScopeReset:        {Limit: 5, Window: 10 * time.Minute},
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	if deps.LoadConfig == nil || deps.NewDB == nil {
		return nil, nil, errNilDep
	}

	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	lg := logger.Logger

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 1) primary store + consumed-token store
	var (
		store    auth.IdentityStore
		consumed auth.ConsumedTokenStore
		pingDB   func(ctx context.Context) error
	)
	if cfg.DatabaseURL != "" {
		db, err := deps.NewDB(cfg.DatabaseURL, cfg.DBDebug)
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		if cfg.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err := postgres.Migrate(ctx, db)
			cancel()
			if err != nil {
				return fail(err)
			}
			lg.Info().Msg("database migrations applied")
		}

		store = postgres.NewIdentityStore(db)
		consumed = postgres.NewConsumedTokenStore(db)
		pingDB = db.PingContext
	} else {
		lg.Warn().Msg("DATABASE_URL not set; using in-memory identity store")
		store = memory.NewIdentityStore()
		consumed = memory.NewConsumedTokenStore()
	}

	// 2) redis (best-effort): identity cache + rate limiting
	var (
		cache     auth.IdentityCache
		limiter   *redis.FixedWindowLimiter
		pingRedis func(ctx context.Context) error
	)
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Ping(ctx)
		cancel()

		if err != nil {
			lg.Warn().Err(err).Msg("redis unavailable; using in-process cache, rate limiting disabled")
			_ = c.Close()
		} else {
			lg.Info().Msg("redis connected")
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			cache = redis.NewIdentityCache(c, lg)
			limiter = redis.NewFixedWindowLimiter(c)
			pingRedis = c.Ping
		}
	}
	if cache == nil {
		cache = memory.NewIdentityCache(cfg.IdentityCacheSize, cfg.IdentityCacheTTL)
	}
	cache = metrics.NewInstrumentedCache(cache)

	// 3) security
	ring, watcher, err := BuildKeyring(cfg, lg)
	if err != nil {
		return fail(err)
	}
	issuer := cfg.JWTIssuer
	if issuer == "" {
		issuer = issuerDefault
	}
	lg.Info().Str("issuer", issuer).Str("active_kid", ring.ActiveID()).Msg("initializing token codec")
	codec := security.NewJWTCodec(ring, issuer, cfg.TokenLeeway)
	hasher := security.NewBcryptHasher(cfg.BcryptCost)

	if watcher != nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := watcher.Run(ctx); err != nil {
				lg.Error().Err(err).Msg("key file watcher stopped")
			}
		}()
		cleanupFns = append(cleanupFns, func() {
			cancel()
			<-done
		})
	}

	// 4) mail: gateway -> dispatcher -> notifier
	newGateway := deps.NewMailGateway
	if newGateway == nil {
		newGateway = newMailGateway
	}
	gw, err := newGateway(cfg, lg)
	if err != nil {
		return fail(err)
	}
	if gw.Close != nil {
		cleanupFns = append(cleanupFns, func() { _ = gw.Close() })
	}

	dispatcher := mail.NewDispatcher(gw, mail.DispatcherConfig{
		Workers:    cfg.MailWorkers,
		QueueSize:  cfg.MailQueueSize,
		MaxRetries: cfg.MailMaxRetries,
	}, lg)
	// registered after the gateway so it drains before the gateway closes
	cleanupFns = append(cleanupFns, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(ctx); err != nil {
			lg.Warn().Err(err).Msg("mail queue not fully drained")
		}
	})
	notifier := mail.NewNotifier(dispatcher, cfg.ConfirmTokenTTL, cfg.ResetTokenTTL)

	// 5) service
	auditLog := audit.New(lg)
	authSvc := auth.NewService(
		store,
		hasher,
		codec,
		cache,
		consumed,
		notifier,
		auth.Config{
			AccessTTL:      cfg.AccessTokenTTL,
			ConfirmTTL:     cfg.ConfirmTokenTTL,
			ResetTTL:       cfg.ResetTokenTTL,
			CacheTTL:       cfg.IdentityCacheTTL,
			ConfirmBaseURL: cfg.ConfirmBaseURL,
			ResetBaseURL:   cfg.ResetBaseURL,
		},
	).WithAudit(auditLog.Record).WithLogger(lg)

	// 6) seed admin
	if cfg.SeedAdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := SeedAdmin(ctx, store, hasher, cfg.SeedAdminEmail, cfg.SeedAdminPassword, lg)
		cancel()
		if err != nil {
			return fail(err)
		}
	}

	// 7) janitor
	jan, err := janitor.New(consumed, cfg.JanitorSchedule, lg)
	if err != nil {
		return fail(err)
	}
	jan.Start()
	cleanupFns = append(cleanupFns, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = jan.Stop(ctx)
	})

	// 8) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc, auditLog)
	healthH := http_handlers.NewHealthHandler(
		http_handlers.Check{Name: "database", Ping: pingDB},
		http_handlers.Check{Name: "redis", Ping: pingRedis},
		http_handlers.Check{Name: "mail", Ping: gw.Ping},
	)

	var rl func(scope string) router.Middleware
	if limiter.Enabled() {
		rl = func(scope string) router.Middleware {
			rc, ok := rateLimits[scope]
			if !ok {
				return nil
			}
			rc.Scope = scope
			rc.OnLimited = func(r *http.Request) {
				auditLog.RateLimited(r.Context(), scope, middleware.ClientIP(r))
			}
			return middleware.RateLimit(limiter, rc, response.WriteError)
		}
	}

	newRouter := deps.NewRouter
	if newRouter == nil {
		newRouter = router.New
	}

	// 9) router
	mux, err := newRouter(router.Deps{
		Health:     healthH,
		Auth:       authH,
		AuthMW:     middleware.Authenticate(authSvc, response.WriteError),
		VerifiedMW: middleware.RequireVerified(response.WriteError),
		AdminMW:    middleware.RequireAtLeast(domain.RoleAdmin, response.WriteError),
		RateLimit:  rl,
	})
	if err != nil {
		return fail(err)
	}

	// 10) server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig:     config.Load,
		NewDB:          config.NewDB,
		NewRedis:       redis.New,
		NewMailGateway: newMailGateway,
		NewRouter:      router.New,
	}
}

/*
========================
 helpers
========================
*/

var errNilDep = errors.New("bootstrap: missing dependency")

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
