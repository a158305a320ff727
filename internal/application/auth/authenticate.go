package auth

import (
	"context"
	"strings"
	"time"

	"github.com/baechuer/contacts-api/internal/domain"
)

const resolveTimeout = 5 * time.Second

// Authenticate resolves a bearer access token to an identity.
//
// Every token problem (missing, malformed, forged, expired, wrong purpose) and
// a subject that no longer exists surface as the same Unauthorized error.
// requireVerified turns an unverified identity into Forbidden.
func (s *Service) Authenticate(ctx context.Context, rawToken string, requireVerified bool) (domain.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" || strings.Count(rawToken, ".") != 2 {
		return domain.Identity{}, domain.ErrUnauthorized()
	}

	claims, err := s.codec.Verify(rawToken, domain.PurposeAccess)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized()
	}

	id, err := s.resolveIdentity(ctx, claims.Subject)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			return domain.Identity{}, domain.ErrUnauthorized()
		}
		return domain.Identity{}, err
	}

	if requireVerified && !id.Verified {
		return domain.Identity{}, domain.ErrEmailNotVerified()
	}
	return id, nil
}

// resolveIdentity is the read-through path: cache first, then the store.
// Concurrent misses for one subject share a single store lookup, which runs
// detached from the first caller so its disconnect does not fail the rest.
func (s *Service) resolveIdentity(ctx context.Context, id string) (domain.Identity, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}

	ch := s.resolve.DoChan(id, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return s.fill(fctx, id)
	})

	select {
	case <-ctx.Done():
		return domain.Identity{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Identity{}, res.Err
		}
		return res.Val.(domain.Identity), nil
	}
}

// fill loads id from the store and caches it unless a mutation of id landed
// while the load was running. A mutation that slips in between the check and
// the Put is caught by the second check.
func (s *Service) fill(ctx context.Context, id string) (domain.Identity, error) {
	gen := s.fills.begin(id)
	defer s.fills.end(id)

	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.Identity{}, err
	}
	if !s.fills.current(id, gen) {
		return found, nil
	}

	s.cache.Put(ctx, found, s.cacheTTL)
	if !s.fills.current(id, gen) {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.log.Error().Err(err).Str("user_id", id).Msg("identity cache invalidate after raced fill failed")
		}
	}
	return found, nil
}
