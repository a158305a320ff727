package auth

import (
	"context"
	"strings"

	"github.com/baechuer/contacts-api/internal/domain"
)

type ConfirmResult struct {
	Email            string
	AlreadyConfirmed bool
}

// SendConfirmation issues an email_confirm token and queues the link.
func (s *Service) SendConfirmation(ctx context.Context, id domain.Identity) error {
	token, err := s.codec.Issue(TokenRequest{
		Subject: id.ID,
		Purpose: domain.PurposeEmailConfirm,
		TTL:     s.confirmTTL,
	})
	if err != nil {
		return err
	}
	return s.notifier.ConfirmationEmail(detached(ctx), id.Email, s.confirmBaseURL+token)
}

// ResendConfirmation answers identically for unknown, unverified and already
// verified addresses; only existing unverified identities get mail.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !domain.Is(err, "user_not_found") {
			s.log.Warn().Err(err).Msg("resend confirmation lookup failed")
		}
		return nil
	}
	if id.Verified {
		return nil
	}

	if err := s.SendConfirmation(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("user_id", id.ID).Msg("confirmation email not queued")
	}
	return nil
}

// ConfirmEmail marks the token's subject verified. Confirming twice succeeds
// both times; the second call changes nothing.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (ConfirmResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ConfirmResult{}, domain.ErrMissingField("token")
	}

	claims, err := s.codec.Verify(token, domain.PurposeEmailConfirm)
	if err != nil {
		return ConfirmResult{}, linkError(err)
	}

	id, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			return ConfirmResult{}, linkError(domain.ErrTokenInvalid())
		}
		return ConfirmResult{}, err
	}

	if id.Verified {
		return ConfirmResult{Email: id.Email, AlreadyConfirmed: true}, nil
	}

	err = s.updateIdentity(ctx, id.ID, "set_verified", func(ctx context.Context) error {
		return s.store.SetVerified(ctx, id.ID)
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	s.audit("auth.email_confirmed", map[string]string{"user_id": id.ID})
	return ConfirmResult{Email: id.Email}, nil
}
