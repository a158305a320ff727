package audit

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	pkgctx "github.com/baechuer/contacts-api/internal/pkg/context"
)

// Logger provides structured audit logging for auth business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record is the sink handed to the auth service (Service.WithAudit).
// Fields named "email" are masked; error results log at warn.
func (l *Logger) Record(action string, fields map[string]string) {
	ev := l.log.Info()
	if fields["result"] == "error" {
		ev = l.log.Warn()
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev = ev.Str("action", action)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = MaskEmail(v)
		}
		ev = ev.Str(k, v)
	}
	ev.Msg("audit")
}

// LoginSuccess logs a successful login
func (l *Logger) LoginSuccess(ctx context.Context, userID, email, ip string) {
	l.log.Info().
		Str("action", "login_success").
		Str("user_id", userID).
		Str("email", MaskEmail(email)).
		Str("ip", ip).
		Str("request_id", pkgctx.GetRequestID(ctx)).
		Msg("User logged in successfully")
}

// LoginFailed logs a failed login attempt
func (l *Logger) LoginFailed(ctx context.Context, email, ip, reason string) {
	l.log.Warn().
		Str("action", "login_failed").
		Str("email", MaskEmail(email)).
		Str("ip", ip).
		Str("reason", reason).
		Str("request_id", pkgctx.GetRequestID(ctx)).
		Msg("Login attempt failed")
}

// RateLimited logs a request rejected by the limiter
func (l *Logger) RateLimited(ctx context.Context, scope, ip string) {
	l.log.Warn().
		Str("action", "rate_limited").
		Str("scope", scope).
		Str("ip", ip).
		Str("request_id", pkgctx.GetRequestID(ctx)).
		Msg("Request rate limited")
}

// MaskEmail partially masks email for privacy in logs
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 5 || at <= 0 {
		return "***"
	}
	// Show first 2 chars and domain
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
