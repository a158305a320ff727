package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
	"github.com/baechuer/contacts-api/internal/infrastructure/redis"
	"github.com/baechuer/contacts-api/internal/logger"
)

type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (redis.Decision, error)
}

// RateLimitConfig defines one fixed-window rule.
type RateLimitConfig struct {
	Scope  string
	Limit  int
	Window time.Duration
	// OnLimited, when set, is called for every rejected request.
	OnLimited func(r *http.Request)
}

// RateLimit limits per client IP (or per user once authenticated). A nil
// limiter or a limiter error lets the request through.
func RateLimit(limiter RateLimiter, cfg RateLimitConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Scope == "" {
		cfg.Scope = "unknown"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			dec, err := limiter.Allow(r.Context(), cfg.Scope, userOrIP(r), cfg.Limit, cfg.Window)
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Str("scope", cfg.Scope).Msg("rate limiter unavailable, allowing")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				e := domain.ErrRateLimited(cfg.Scope)
				secs := int((dec.RetryAfter + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				e.Meta["retry_after_seconds"] = strconv.Itoa(secs)
				if cfg.OnLimited != nil {
					cfg.OnLimited(r)
				}
				writeErr(w, r, e)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// userOrIP prefers the authenticated user id; otherwise the client IP.
func userOrIP(r *http.Request) string {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		return "u:" + uid
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop or the remote host.
func ClientIP(r *http.Request) string {
	// trust X-Forwarded-For only behind a proxy we control
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
