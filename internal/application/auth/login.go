package auth

import (
	"context"

	"github.com/baechuer/contacts-api/internal/domain"
)

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	Identity    domain.Identity
	AccessToken string
	TokenType   string // "Bearer"
	ExpiresIn   int64  // seconds
}

// Login checks credentials and issues an access token.
// IMPORTANT: must not leak whether the email exists (avoid user enumeration).
// Unverified identities still get a token; verification is enforced per
// endpoint.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	id, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !domain.Is(err, "user_not_found") {
			return LoginResult{}, err
		}
		s.hasher.Verify(req.Password, s.dummyHash)
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	if !s.hasher.Verify(req.Password, id.PasswordHash) {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	token, err := s.codec.Issue(TokenRequest{
		Subject: id.ID,
		Purpose: domain.PurposeAccess,
		TTL:     s.accessTTL,
	})
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Identity:    id,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}
