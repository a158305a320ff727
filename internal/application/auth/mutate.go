package auth

import (
	"context"
)

// updateIdentity is the only way identity state changes: the store write and
// the cache invalidation happen together, and the invalidation completes
// before the caller sees success. Fills that read id before the write are
// stopped from caching, and later lookups start a fresh fill instead of
// joining one of them.
func (s *Service) updateIdentity(ctx context.Context, id, op string, mutate func(ctx context.Context) error) error {
	if err := mutate(ctx); err != nil {
		return err
	}
	s.fills.bump(id)
	s.resolve.Forget(id)

	err := s.cache.Invalidate(ctx, id)
	if err != nil {
		err = s.cache.Invalidate(ctx, id)
	}
	if err != nil {
		// Cache TTL bounds how long a stale snapshot can be served.
		s.log.Error().
			Err(err).
			Str("user_id", id).
			Str("op", op).
			Msg("identity cache invalidate failed")
	}
	return nil
}
