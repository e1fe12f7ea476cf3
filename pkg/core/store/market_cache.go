package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultCachePrefix = "dcf"
	DefaultCacheTTL    = 6 * time.Hour
)

// MarketDataCache is a read-through Redis cache in front of a MarketData
// provider. Cache failures are logged and never fail the fetch.
type MarketDataCache struct {
	next   valuation.MarketData
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

type CacheOption func(*MarketDataCache)

func WithCachePrefix(prefix string) CacheOption {
	return func(c *MarketDataCache) { c.prefix = prefix }
}

func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *MarketDataCache) { c.ttl = ttl }
}

func WithCacheLogger(l zerolog.Logger) CacheOption {
	return func(c *MarketDataCache) { c.log = l }
}

func NewMarketDataCache(next valuation.MarketData, client *redis.Client, opts ...CacheOption) *MarketDataCache {
	c := &MarketDataCache{
		next:   next,
		client: client,
		prefix: DefaultCachePrefix,
		ttl:    DefaultCacheTTL,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisClient connects and pings
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (c *MarketDataCache) PriceHistory(ctx context.Context, symbol string, window models.Window) ([]models.PricePoint, error) {
	key := c.wrapKey("history", symbol, string(window))

	var points []models.PricePoint
	if c.get(ctx, key, &points) {
		return points, nil
	}
	points, err := c.next.PriceHistory(ctx, symbol, window)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, points)
	return points, nil
}

func (c *MarketDataCache) Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	key := c.wrapKey("profile", ticker)

	var profile models.CompanyProfile
	if c.get(ctx, key, &profile) {
		return &profile, nil
	}
	p, err := c.next.Profile(ctx, ticker)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, p)
	return p, nil
}

func (c *MarketDataCache) Statements(ctx context.Context, ticker string) (models.FinancialStatementSet, error) {
	key := c.wrapKey("statements", ticker)

	var fs models.FinancialStatementSet
	if c.get(ctx, key, &fs) {
		return fs, nil
	}
	fs, err := c.next.Statements(ctx, ticker)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fs)
	return fs, nil
}

// Invalidate drops every cached entry for a symbol. Only whole key segments
// match, so ACME leaves ACMEX alone.
func (c *MarketDataCache) Invalidate(ctx context.Context, symbol string) error {
	sym := strings.ToUpper(symbol)
	var keys []string
	for _, pattern := range []string{c.prefix + ":*:" + sym, c.prefix + ":*:" + sym + ":*"} {
		found, err := c.client.Keys(ctx, pattern).Result()
		if err != nil {
			return err
		}
		keys = append(keys, found...)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Unlink(ctx, keys...).Err()
}

func (c *MarketDataCache) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	return true
}

func (c *MarketDataCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *MarketDataCache) wrapKey(parts ...string) string {
	for i, p := range parts {
		if i > 0 {
			parts[i] = strings.ToUpper(p)
		}
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}
