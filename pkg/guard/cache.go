package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"sentinelgate/shared/logging"
)

// VerdictCache memoizes adjudication verdicts by prompt hash so repeated
// prompts skip the external model call. A nil cache or nil client disables
// caching; cache failures only mean a fresh adjudication.
type VerdictCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewVerdictCache(rdb *redis.Client, ttl time.Duration) *VerdictCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &VerdictCache{rdb: rdb, ttl: ttl}
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "sentinelgate:verdict:" + hex.EncodeToString(sum[:])
}

func (c *VerdictCache) Get(ctx context.Context, prompt string) (Verdict, bool) {
	if c == nil || c.rdb == nil {
		return Verdict{}, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(prompt)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.Warnf("verdict cache get: %v", err)
		}
		return Verdict{}, false
	}
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return Verdict{}, false
	}
	return v, true
}

func (c *VerdictCache) Put(ctx context.Context, prompt string, v Verdict) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(prompt), raw, c.ttl).Err(); err != nil {
		logging.Warnf("verdict cache put: %v", err)
	}
}
