// Package redis caches the ingredient price catalog in Redis so that all
// service replicas share one fetch of the backend catalog.
package redis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/catalog"
)

const pricesKey = "checkout:ingredient-prices"

var _ catalog.PriceCache = (*PriceCache)(nil)

// PriceCache implements catalog.PriceCache on a Redis hash keyed by
// ingredient ID.
type PriceCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
	jitter  time.Duration
}

// NewPriceCache returns a cache whose entries expire after ttl plus up to
// ttl/5 of random jitter.
func NewPriceCache(client redis.UniversalClient, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PriceCache{
		client:  client,
		baseTTL: ttl,
		jitter:  ttl / 5,
	}
}

// Load returns the cached book or catalog.ErrCacheMiss.
func (c *PriceCache) Load(ctx context.Context) (catalog.PriceBook, error) {
	raw, err := c.client.HGetAll(ctx, pricesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(raw) == 0 {
		return nil, catalog.ErrCacheMiss
	}

	book := make(catalog.PriceBook, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(value)
		if err != nil {
			continue
		}
		book[id] = price
	}
	return book, nil
}

// Store replaces the cached book atomically.
func (c *PriceCache) Store(ctx context.Context, book catalog.PriceBook) error {
	if len(book) == 0 {
		return nil
	}
	fields := make(map[string]any, len(book))
	for id, price := range book {
		fields[strconv.FormatInt(id, 10)] = price.String()
	}

	ttl := c.baseTTL
	if c.jitter > 0 {
		ttl += rand.N(c.jitter)
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pricesKey)
		pipe.HSet(ctx, pricesKey, fields)
		pipe.Expire(ctx, pricesKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store prices failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached book.
func (c *PriceCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, pricesKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping checks the connection. Used by readiness checks.
func (c *PriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
