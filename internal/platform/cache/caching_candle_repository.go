// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"market_sync/internal/feature/candles/domain/entity"
	"market_sync/internal/feature/candles/usecase"
)

// CandleStore is the repository being decorated.
type CandleStore interface {
	usecase.CandleRepository
	usecase.CandleReader
}

var _ CandleStore = (*CachingCandleRepository)(nil)

// CachingCandleRepository decorates a CandleStore with Redis caching.
// Latest-timestamp lookups and read queries are cached; timestamp listings used by gap
// detection always go to the underlying store.
type CachingCandleRepository struct {
	inner     CandleStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	now       func() time.Time
}

// NewCachingCandleRepository decorates a CandleStore with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "candles".
// A nil rdb disables caching.
func NewCachingCandleRepository(rdb *redis.Client, ttl time.Duration, inner CandleStore, namespace string) *CachingCandleRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "candles"
	}
	return &CachingCandleRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		now:       time.Now,
	}
}

// InsertMarketData inserts candles and invalidates cache entries of every series that gained rows.
func (c *CachingCandleRepository) InsertMarketData(ctx context.Context, candles []entity.Candle, batchSize int) (int, error) {
	n, err := c.inner.InsertMarketData(ctx, candles, batchSize)
	if c.rdb == nil || len(candles) == 0 {
		return n, err
	}
	// 一部のチャンクがコミット済みの場合もあるため、エラー時も無効化する
	if n == 0 && err == nil {
		return n, nil
	}

	seen := map[string]struct{}{}
	for _, cd := range candles {
		prefix := c.seriesPrefix(cd.Symbol, cd.Timeframe, cd.Provider)
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		if derr := c.deleteByPattern(ctx, prefix+"*"); derr != nil {
			slog.Warn("cache invalidation failed", "prefix", prefix, "error", derr)
		}
	}
	return n, err
}

// LatestTimestamp returns the cached newest timestamp of a series, falling back to the store.
// Absence is not cached.
func (c *CachingCandleRepository) LatestTimestamp(ctx context.Context, symbol string, tf entity.Timeframe, provider string) (time.Time, bool, error) {
	if c.rdb == nil {
		return c.inner.LatestTimestamp(ctx, symbol, tf, provider)
	}

	key := c.seriesPrefix(symbol, tf, provider) + "latest"
	if s, err := c.rdb.Get(ctx, key).Result(); err == nil && s != "" {
		if ts, perr := time.Parse(time.RFC3339Nano, s); perr == nil {
			return ts.UTC(), true, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	ts, ok, err := c.inner.LatestTimestamp(ctx, symbol, tf, provider)
	if err != nil || !ok {
		return ts, ok, err
	}

	ttl := c.ttl
	if interval, ierr := tf.Interval(); ierr == nil {
		ttl = min(ttl, TimeUntilNextBoundary(c.now(), interval))
	}
	_ = c.rdb.Set(ctx, key, ts.UTC().Format(time.RFC3339Nano), ttl).Err()
	return ts, true, nil
}

// ListTimestamps is never cached.
func (c *CachingCandleRepository) ListTimestamps(ctx context.Context, symbol string, tf entity.Timeframe, provider string, start, end time.Time) ([]time.Time, error) {
	return c.inner.ListTimestamps(ctx, symbol, tf, provider, start, end)
}

// Find retrieves candles, checking cache first then falling back to the database.
func (c *CachingCandleRepository) Find(ctx context.Context, symbol string, tf entity.Timeframe, provider string, limit int) ([]entity.Candle, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Find(ctx, symbol, tf, provider, limit)
	}

	key := c.findKey(symbol, tf, provider, limit)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.Candle
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := c.inner.Find(ctx, symbol, tf, provider, limit)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

func (c *CachingCandleRepository) findKey(symbol string, tf entity.Timeframe, provider string, limit int) string {
	return fmt.Sprintf("%sfind:%d", c.seriesPrefix(symbol, tf, provider), limit)
}

// seriesPrefix generates the prefix shared by every cache entry of one series.
func (c *CachingCandleRepository) seriesPrefix(symbol string, tf entity.Timeframe, provider string) string {
	return fmt.Sprintf("%s:%s:%s:%s:",
		c.namespace,
		safe(symbol),
		safe(string(tf)),
		safe(provider),
	)
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingCandleRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
