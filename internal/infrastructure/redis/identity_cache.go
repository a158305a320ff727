package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/domain"
)

const identityKeyPrefix = "identity:"

// opTimeout caps each cache round trip so a slow Redis degrades to a miss
// instead of stalling the request.
const opTimeout = 500 * time.Millisecond

// IdentityCache stores JSON identity snapshots under identity:<id>.
// - Read path: GET -> miss on absence, decode error or Redis error
// - Write path: SET PX ttl, errors logged and dropped
// - Invalidate: DEL, error returned to the caller
// A nil client behaves as an always-empty cache.
type IdentityCache struct {
	rdb *goredis.Client
	log zerolog.Logger
}

func NewIdentityCache(c *Client, lg zerolog.Logger) *IdentityCache {
	return &IdentityCache{rdb: rawClient(c), log: lg}
}

func identityKey(id string) string { return identityKeyPrefix + id }

func (c *IdentityCache) Get(ctx context.Context, id string) (domain.Identity, bool) {
	if c.rdb == nil {
		return domain.Identity{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, identityKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn().Err(err).Str("user_id", id).Msg("identity cache get failed")
		}
		return domain.Identity{}, false
	}

	var out domain.Identity
	if err := json.Unmarshal(raw, &out); err != nil || out.ID != id {
		// corrupt entry: drop it and fall through to the store
		_ = c.rdb.Del(ctx, identityKey(id)).Err()
		return domain.Identity{}, false
	}
	return out, true
}

func (c *IdentityCache) Put(ctx context.Context, identity domain.Identity, ttl time.Duration) {
	if c.rdb == nil || identity.ID == "" || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.rdb.Set(ctx, identityKey(identity.ID), raw, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("user_id", identity.ID).Msg("identity cache put failed")
	}
}

func (c *IdentityCache) Invalidate(ctx context.Context, id string) error {
	if c.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.rdb.Del(ctx, identityKey(id)).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}
