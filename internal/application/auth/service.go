package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/baechuer/contacts-api/internal/domain"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

type Service struct {
	store    IdentityStore
	hasher   PasswordHasher
	codec    TokenCodec
	cache    IdentityCache
	consumed ConsumedTokenStore
	notifier Notifier

	accessTTL  time.Duration
	confirmTTL time.Duration
	resetTTL   time.Duration
	cacheTTL   time.Duration

	// e.g. https://app.example.com/auth/confirm/
	confirmBaseURL string
	// e.g. https://app.example.com/auth/reseted_password/
	resetBaseURL string

	audit func(action string, fields map[string]string)
	log   zerolog.Logger

	resolve   singleflight.Group
	fills     fillGens
	dummyHash string
}

type Config struct {
	AccessTTL      time.Duration
	ConfirmTTL     time.Duration
	ResetTTL       time.Duration
	CacheTTL       time.Duration
	ConfirmBaseURL string
	ResetBaseURL   string
}

func NewService(
	store IdentityStore,
	hasher PasswordHasher,
	codec TokenCodec,
	cache IdentityCache,
	consumed ConsumedTokenStore,
	notifier Notifier,
	cfg Config,
) *Service {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	confirmTTL := cfg.ConfirmTTL
	if confirmTTL <= 0 {
		confirmTTL = 7 * 24 * time.Hour
	}
	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	s := &Service{
		store:    store,
		hasher:   hasher,
		codec:    codec,
		cache:    cache,
		consumed: consumed,
		notifier: notifier,

		accessTTL:  accessTTL,
		confirmTTL: confirmTTL,
		resetTTL:   resetTTL,
		cacheTTL:   cacheTTL,

		confirmBaseURL: cfg.ConfirmBaseURL,
		resetBaseURL:   cfg.ResetBaseURL,

		audit: func(string, map[string]string) {},
		log:   zerolog.Nop(),
	}

	// Compared against when the email is unknown so login timing does not
	// reveal account existence.
	if h, err := hasher.Hash("login-timing-equalizer"); err == nil {
		s.dummyHash = h
	}
	return s
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithLogger(lg zerolog.Logger) *Service {
	s.log = lg
	return s
}

// AccessTTL is exposed for token responses.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return domain.ErrMissingField("email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.ErrInvalidField("email", "invalid email")
	}
	return nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return domain.ErrMissingField("password")
	}
	if len(pw) < minPasswordLen {
		return domain.ErrWeakPassword("min length 8")
	}
	if len(pw) > maxPasswordLen {
		return domain.ErrWeakPassword("max length 72 bytes")
	}
	return nil
}

// detached keeps request-scoped values (request id) but drops cancellation,
// for side effects that must outlive the HTTP response.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
