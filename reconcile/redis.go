package reconcile

import (
	"context"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/utils"
)

// RedisLocker takes the redislock "StoreReconcile:<store>" lock.
type RedisLocker struct {
	TTL time.Duration
}

func (l RedisLocker) Lock(ctx context.Context, storeId string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return utils.StoreLock(ctx, storeId, "StoreReconcile", ttl, moduleName, "Lock")
}

// RedisStatsCache keeps Stats under "Stats:<store>".
type RedisStatsCache struct{}

func (RedisStatsCache) Get(ctx context.Context, storeId string) (*Stats, bool) {
	stats, err := utils.CacheGet[Stats](ctx, storeId)
	if err != nil {
		config.LogError(config.GetLogger(), moduleName, "RedisStatsCache.Get", "read stats cache", storeId, err)
		return nil, false
	}
	return stats, stats != nil
}

func (RedisStatsCache) Set(ctx context.Context, storeId string, stats Stats) {
	if err := utils.CachePut(ctx, &stats, storeId); err != nil {
		config.LogError(config.GetLogger(), moduleName, "RedisStatsCache.Set", "write stats cache", storeId, err)
	}
}

func (RedisStatsCache) Invalidate(ctx context.Context, storeId string) {
	if err := utils.CacheDrop[Stats](ctx, storeId); err != nil {
		config.LogError(config.GetLogger(), moduleName, "RedisStatsCache.Invalidate", "drop stats cache", storeId, err)
	}
}
