package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeCache, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache serialization failed")
)

// Cache is the Redis-backed read-through cache. GetOrCompute is the method
// the screening service consumes for descriptor sets; the rest exists for
// direct cache management.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	GetOrCompute(ctx context.Context, key string, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error
	Ping(ctx context.Context) error
}

// commander is the slice of the client's command surface the cache uses.
// Tests substitute an in-memory implementation.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) error
}

// Serializer converts cached values to and from their stored byte form.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

type redisCache struct {
	client     commander
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	serializer Serializer
	flight     singleflight.Group
}

type CacheOption func(*redisCache)

// WithPrefix namespaces every key the cache touches.
func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

// WithDefaultTTL sets the expiry used when callers pass a zero TTL.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

// WithSerializer replaces the JSON codec.
func WithSerializer(s Serializer) CacheOption {
	return func(c *redisCache) { c.serializer = s }
}

// NewCache builds a read-through cache on top of the client. Defaults:
// "fragelab:" key prefix, 15 minute TTL, JSON codec.
func NewCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	return newCache(client, log, opts...)
}

func newCache(client commander, log logging.Logger, opts ...CacheOption) *redisCache {
	c := &redisCache{
		client:     client,
		logger:     log.Named("cache"),
		prefix:     "fragelab:",
		defaultTTL: 15 * time.Minute,
		serializer: jsonSerializer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) fullKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expiry by up to +/-10% so entries written together do not
// expire together.
func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCache, "cache get")
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCache, "cache set")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCache, "cache delete")
	}
	return nil
}

// DeleteByPrefix removes every key under prefix and reports how many went.
// Scan-based so it stays incremental on large keyspaces.
func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	var cursor uint64
	match := c.fullKey(prefix) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCache, "cache scan")
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCache, "cache delete")
			}
			deleted += int64(len(keys))
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// GetOrCompute returns the cached value for key, or runs compute on a miss.
// Concurrent misses on the same key are collapsed to a single compute; every
// caller decodes the same stored bytes into its own dest. A failed cache write
// is logged and the computed value is still returned.
func (c *redisCache) GetOrCompute(ctx context.Context, key string, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	data, err, _ := c.flight.Do(key, func() (interface{}, error) {
		v, computeErr := compute(ctx)
		if computeErr != nil {
			return nil, computeErr
		}
		encoded, marshalErr := c.serializer.Marshal(v)
		if marshalErr != nil {
			return nil, ErrSerializationFailed.WithCause(marshalErr)
		}
		if setErr := c.client.Set(ctx, c.fullKey(key), encoded, c.jitterTTL(c.defaultTTL)).Err(); setErr != nil {
			c.logger.Warn("cache write failed, serving computed value",
				logging.String("key", key),
				logging.Err(setErr),
			)
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	if err := c.serializer.Unmarshal(data.([]byte), dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
