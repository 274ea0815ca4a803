package tiles

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"

	"reach-coverage/internal/logger"
	"reach-coverage/internal/metrics"
)

const defaultKeyPrefix = "popmesh:"

// 文档注释：带缓存的瓦片获取器（进程内 LRU → Redis → 上游）
// 背景：人口网格按年度更新，一次会话内只需获取一次；跨进程复用通过 Redis 实现。
// 约束：rc、mem 均可为 nil；缓存读写失败只记录日志，不影响上游获取；上游失败不写缓存。
type CachedFetcher struct {
	next   Fetcher
	rc     *redis.Client
	mem    *LRU
	ttl    time.Duration
	prefix string
}

func NewCachedFetcher(next Fetcher, rc *redis.Client, mem *LRU, ttl time.Duration) *CachedFetcher {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedFetcher{next: next, rc: rc, mem: mem, ttl: ttl, prefix: defaultKeyPrefix}
}

func (c *CachedFetcher) key(t Tile) string { return c.prefix + t.String() }

func (c *CachedFetcher) Fetch(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
	l := logger.L()
	k := c.key(t)
	if c.mem != nil {
		if b, ok := c.mem.Get(k); ok {
			if fc, err := geojson.UnmarshalFeatureCollection(b); err == nil {
				metrics.TileCacheTotal.WithLabelValues("memory", "hit").Inc()
				return fc, nil
			}
		}
		metrics.TileCacheTotal.WithLabelValues("memory", "miss").Inc()
	}
	if c.rc != nil {
		b, err := c.rc.Get(ctx, k).Bytes()
		switch {
		case err == nil && len(b) > 0:
			if fc, err := geojson.UnmarshalFeatureCollection(b); err == nil {
				metrics.TileCacheTotal.WithLabelValues("redis", "hit").Inc()
				if c.mem != nil {
					c.mem.Set(k, b)
				}
				return fc, nil
			}
			l.Debug("tile_cache_decode_error", "tile", t.String())
		case errors.Is(err, redis.Nil):
		case err != nil:
			l.Debug("tile_cache_redis_error", "tile", t.String(), "err", err)
		}
		metrics.TileCacheTotal.WithLabelValues("redis", "miss").Inc()
	}
	fc, err := c.next.Fetch(ctx, t)
	if err != nil {
		return nil, err
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		l.Debug("tile_cache_encode_error", "tile", t.String(), "err", err)
		return fc, nil
	}
	if c.mem != nil {
		c.mem.Set(k, b)
	}
	if c.rc != nil {
		if err := c.rc.Set(ctx, k, b, c.ttl).Err(); err != nil {
			l.Debug("tile_cache_set_error", "tile", t.String(), "err", err)
		}
	}
	return fc, nil
}
