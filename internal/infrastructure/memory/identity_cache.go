package memory

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/baechuer/contacts-api/internal/domain"
)

type cacheEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

/*
IdentityCache
----
Bounded in-process LRU. The LRU's own TTL is the upper bound; each entry also
carries the ttl passed to Put.
*/
type IdentityCache struct {
	lru *lru.LRU[string, cacheEntry]
	now func() time.Time
}

func NewIdentityCache(size int, maxTTL time.Duration) *IdentityCache {
	if size <= 0 {
		size = 10_000
	}
	return &IdentityCache{
		lru: lru.NewLRU[string, cacheEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *IdentityCache) Get(ctx context.Context, id string) (domain.Identity, bool) {
	e, ok := c.lru.Get(id)
	if !ok {
		return domain.Identity{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(id)
		return domain.Identity{}, false
	}
	return e.identity, true
}

func (c *IdentityCache) Put(ctx context.Context, identity domain.Identity, ttl time.Duration) {
	e := cacheEntry{identity: identity}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(identity.ID, e)
}

func (c *IdentityCache) Invalidate(ctx context.Context, id string) error {
	c.lru.Remove(id)
	return nil
}

func (c *IdentityCache) Len() int { return c.lru.Len() }
