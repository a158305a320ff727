package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/baechuer/contacts-api/internal/domain"
)

// passwordBinding fingerprints a password hash. Reset tokens carry it so a
// token goes stale as soon as the password changes.
func passwordBinding(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// RequestPasswordReset always returns nil for a well-formed address, whether
// or not an account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !domain.Is(err, "user_not_found") {
			s.log.Warn().Err(err).Msg("password reset lookup failed")
		}
		return nil
	}

	token, err := s.codec.Issue(TokenRequest{
		Subject: id.ID,
		Purpose: domain.PurposePasswordReset,
		TTL:     s.resetTTL,
		Binding: passwordBinding(id.PasswordHash),
	})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", id.ID).Msg("reset token issue failed")
		return nil
	}

	if err := s.notifier.PasswordResetEmail(detached(ctx), id.Email, s.resetBaseURL+token); err != nil {
		s.log.Warn().Err(err).Str("user_id", id.ID).Msg("password reset email not queued")
	}

	s.audit("auth.password_reset_requested", map[string]string{"user_id": id.ID})
	return nil
}

// ValidateResetToken checks a reset link without consuming it and returns the
// account email it belongs to.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (string, error) {
	_, id, err := s.resolveResetToken(ctx, token)
	if err != nil {
		return "", err
	}
	return id.Email, nil
}

// ResetPassword sets a new password. A token works once: its nonce is
// recorded and its binding no longer matches the new hash.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const action = "auth.password_reset"

	claims, id, err := s.resolveResetToken(ctx, token)
	if err != nil {
		s.audit(action, map[string]string{"result": "error", "error_code": domainCode(err)})
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.ErrHashFailed(err)
	}

	claimed, err := s.consumed.Claim(ctx, claims.Nonce, claims.Subject, claims.ExpiresAt)
	if err != nil {
		return err
	}
	if !claimed {
		err := linkError(domain.ErrTokenInvalid())
		s.audit(action, map[string]string{"user_id": id.ID, "result": "error", "error_code": "token_replayed"})
		return err
	}

	err = s.updateIdentity(ctx, id.ID, "update_password", func(ctx context.Context) error {
		return s.store.UpdatePassword(ctx, id.ID, hash)
	})
	if err != nil {
		if rerr := s.consumed.Release(ctx, claims.Nonce); rerr != nil {
			s.log.Error().Err(rerr).Str("user_id", id.ID).Msg("reset nonce release failed")
		}
		return err
	}

	s.audit(action, map[string]string{"user_id": id.ID, "result": "success"})
	return nil
}

func (s *Service) resolveResetToken(ctx context.Context, token string) (TokenClaims, domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, domain.Identity{}, domain.ErrMissingField("token")
	}

	claims, err := s.codec.Verify(token, domain.PurposePasswordReset)
	if err != nil {
		return TokenClaims{}, domain.Identity{}, linkError(err)
	}
	if claims.Nonce == "" {
		return TokenClaims{}, domain.Identity{}, linkError(domain.ErrTokenInvalid())
	}

	id, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			return TokenClaims{}, domain.Identity{}, linkError(domain.ErrTokenInvalid())
		}
		return TokenClaims{}, domain.Identity{}, err
	}

	want := passwordBinding(id.PasswordHash)
	if subtle.ConstantTimeCompare([]byte(want), []byte(claims.Binding)) != 1 {
		return TokenClaims{}, domain.Identity{}, linkError(domain.ErrTokenInvalid())
	}
	return claims, id, nil
}
