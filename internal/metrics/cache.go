package metrics

import (
	"context"
	"time"

	"github.com/baechuer/contacts-api/internal/application/auth"
	"github.com/baechuer/contacts-api/internal/domain"
)

// InstrumentedCache counts lookups and invalidations of the wrapped cache.
type InstrumentedCache struct {
	next auth.IdentityCache
}

func NewInstrumentedCache(next auth.IdentityCache) *InstrumentedCache {
	return &InstrumentedCache{next: next}
}

func (c *InstrumentedCache) Get(ctx context.Context, id string) (domain.Identity, bool) {
	identity, ok := c.next.Get(ctx, id)
	if ok {
		IdentityCacheLookups.WithLabelValues("hit").Inc()
	} else {
		IdentityCacheLookups.WithLabelValues("miss").Inc()
	}
	return identity, ok
}

func (c *InstrumentedCache) Put(ctx context.Context, identity domain.Identity, ttl time.Duration) {
	c.next.Put(ctx, identity, ttl)
}

func (c *InstrumentedCache) Invalidate(ctx context.Context, id string) error {
	if err := c.next.Invalidate(ctx, id); err != nil {
		IdentityCacheInvalidations.WithLabelValues("error").Inc()
		return err
	}
	IdentityCacheInvalidations.WithLabelValues("ok").Inc()
	return nil
}
