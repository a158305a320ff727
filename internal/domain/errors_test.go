package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_String(t *testing.T) {
	assert.Equal(t, "unauthorized (invalid_credentials): invalid email or password",
		ErrInvalidCredentials().Error())

	err := ErrDBUnavailable(errors.New("dial tcp 10.0.0.1:5432"))
	assert.Contains(t, err.Error(), "(db_unavailable)")
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestError_UnwrapAndIs(t *testing.T) {
	root := errors.New("root")
	err := Wrap(KindInternal, "hash_failed", "hash failed", root)

	assert.Same(t, root, errors.Unwrap(err))
	assert.ErrorIs(t, err, root)

	wrapped := fmt.Errorf("register: %w", err)
	assert.True(t, Is(wrapped, "hash_failed"))
	assert.False(t, Is(wrapped, "other"))
	assert.False(t, Is(errors.New("plain"), "hash_failed"))

	de, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInternal, de.Kind)
}

func TestCatalogue(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  *Error
		kind ErrKind
		code string
		meta map[string]string
	}{
		{ErrInvalidJSON(cause), KindValidation, "invalid_json", nil},
		{ErrMissingField("email"), KindValidation, "missing_field", map[string]string{"field": "email"}},
		{ErrInvalidField("email", "bad"), KindValidation, "invalid_field", map[string]string{"field": "email", "reason": "bad"}},
		{ErrWeakPassword("min length 8"), KindValidation, "weak_password", map[string]string{"reason": "min length 8"}},
		{ErrInvalidRole("root"), KindValidation, "invalid_role", map[string]string{"role": "root"}},
		{ErrInvalidCredentials(), KindAuth, "invalid_credentials", nil},
		{ErrUnauthorized(), KindAuth, "unauthorized", nil},
		{ErrTokenInvalid(), KindAuth, "token_invalid", nil},
		{ErrTokenExpired(), KindAuth, "token_expired", nil},
		{ErrForbidden(), KindForbidden, "forbidden", nil},
		{ErrInsufficientRole("admin"), KindForbidden, "insufficient_role", map[string]string{"required": "admin"}},
		{ErrEmailNotVerified(), KindForbidden, "email_not_verified", nil},
		{ErrUserNotFound(), KindNotFound, "user_not_found", nil},
		{ErrEmailAlreadyExists(), KindConflict, "email_already_exists", nil},
		{ErrDBUnavailable(cause), KindInfrastructure, "db_unavailable", nil},
		{ErrRedisUnavailable(cause), KindInfrastructure, "redis_unavailable", nil},
		{ErrRabbitUnavailable(cause), KindInfrastructure, "rabbit_unavailable", nil},
		{ErrHashFailed(cause), KindInternal, "hash_failed", nil},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
			for k, v := range tt.meta {
				assert.Equal(t, v, tt.err.Meta[k], "meta %s", k)
			}
		})
	}
}

func TestErrRateLimited_Meta(t *testing.T) {
	err := ErrRateLimited("login")
	assert.Equal(t, KindRateLimited, err.Kind)
	assert.Equal(t, "login", err.Meta["scope"])

	// callers add retry_after_seconds; each call must get its own map
	err.Meta["retry_after_seconds"] = "3"
	assert.NotContains(t, ErrRateLimited("login").Meta, "retry_after_seconds")
}

func TestCauseNeverInMessage(t *testing.T) {
	err := ErrDBUnavailable(errors.New("password=hunter2"))
	assert.NotContains(t, err.Message, "hunter2")
}

func TestRekind(t *testing.T) {
	orig := ErrTokenExpired()
	err := Rekind(orig, KindUnprocessable)

	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindUnprocessable, de.Kind)
	assert.Equal(t, "token_expired", de.Code)
	assert.Equal(t, KindAuth, orig.Kind, "original must not be mutated")

	plain := errors.New("plain")
	assert.Same(t, plain, Rekind(plain, KindUnprocessable))
}
