// Package statscache caches rendered stats responses. The aggregations
// behind them scan whole building collections, so results are kept in Redis
// with a TTL, fronted by a small in-process LRU. Pipeline commands call
// Invalidate after writing so the API never serves stale counts past one
// load or assignment run.
package statscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/opencadastre/regiontag/internal/observability"
)

const keyPattern = "stats:*"

type Option func(*redis.Options)

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

type Cache struct {
	rdb *redis.Client
	mem *expirable.LRU[string, []byte]
	ttl time.Duration
}

// New connects to Redis and prepares the in-process tier. memSize bounds
// the number of responses held in memory; ttl applies to both tiers.
func New(ctx context.Context, addr string, ttl time.Duration, memSize int, opts ...Option) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if memSize < 1 {
		memSize = 64
	}

	ro := &redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{
		rdb: rdb,
		mem: expirable.NewLRU[string, []byte](memSize, nil, ttl),
		ttl: ttl,
	}, nil
}

// Get returns a cached response body. Redis errors degrade to a miss; the
// backend query is the fallback either way.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if body, ok := c.mem.Get(key); ok {
		observability.IncStatsCache("hit", "memory")
		return body, true
	}
	observability.IncStatsCache("miss", "memory")

	body, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observability.IncStatsCache("miss", "redis")
		} else {
			observability.IncStatsCache("error", "redis")
		}
		return nil, false
	}
	observability.IncStatsCache("hit", "redis")
	c.mem.Add(key, body)
	return body, true
}

// Put stores a response body in both tiers. Write failures are ignored;
// the cache is advisory.
func (c *Cache) Put(ctx context.Context, key string, body []byte) {
	c.mem.Add(key, body)
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		observability.IncStatsCache("error", "redis")
	}
}

// Invalidate drops every stats entry. Called by the loaders and the
// assigner after a successful run; collection contents changed under
// whatever was cached.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mem.Purge()

	iter := c.rdb.Scan(ctx, 0, keyPattern, 256).Iterator()
	batch := make([]string, 0, 256)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis DEL %d keys: %w", len(batch), err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis SCAN %q: %w", keyPattern, err)
	}
	if len(batch) > 0 {
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis DEL %d keys: %w", len(batch), err)
		}
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
