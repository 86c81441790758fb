package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

var ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")

// ResultCache stores document results as JSON under prefix+key.
type ResultCache struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
	jitter float64
}

var _ consolidation.ResultCache = (*ResultCache)(nil)

type CacheOption func(*ResultCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *ResultCache) { c.prefix = prefix }
}

// WithDefaultTTL sets the entry lifetime; zero keeps entries forever.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *ResultCache) { c.ttl = ttl }
}

// WithTTLJitter spreads expiry by +/- fraction of the TTL.
func WithTTLJitter(fraction float64) CacheOption {
	return func(c *ResultCache) { c.jitter = fraction }
}

func NewResultCache(client *Client, log logging.Logger, opts ...CacheOption) *ResultCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ResultCache{
		client: client,
		logger: log,
		prefix: "gastm:",
		ttl:    24 * time.Hour,
		jitter: 0.1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResultCache) fullKey(key string) string {
	return c.prefix + key
}

func (c *ResultCache) expiry() time.Duration {
	if c.ttl <= 0 || c.jitter <= 0 {
		return c.ttl
	}
	jitter := float64(c.ttl) * c.jitter * (rand.Float64()*2 - 1)
	return c.ttl + time.Duration(jitter)
}

// Get returns the cached result for key, or (nil, nil) on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*cc.DocumentResult, error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}

	var res cc.DocumentResult
	if err := json.Unmarshal(data, &res); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		c.logger.Warn("discarding undecodable cache entry", logging.String("key", key), logging.Err(err))
		return nil, nil
	}
	return &res, nil
}

// Set stores res under key with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, key string, res *cc.DocumentResult) error {
	if res == nil {
		return errors.InvalidParam("cannot cache a nil result")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, c.expiry()).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache entry")
	}
	return nil
}

// Delete removes the given keys.
func (c *ResultCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete cache entries")
	}
	return nil
}

func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
