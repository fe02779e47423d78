// Package cache stores pipeline results under the SHA-256 of the uploaded
// bytes so identical documents are recognized once per TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key returns the lowercase hex SHA-256 of data. Filename, document type and
// locale are not part of the key.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HitRecorder receives the outcome of every cache lookup.
type HitRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Cache is a write-once result store. Implementations never fail the
// caller: backend problems degrade to misses.
type Cache interface {
	Get(ctx context.Context, hash string) (*types.CacheEntry, bool)
	// Put stores entry unless the key already holds a value. It reports
	// whether the entry was written.
	Put(ctx context.Context, hash string, entry *types.CacheEntry, ttl time.Duration) bool
	Ping(ctx context.Context) error
}

type Option func(*RedisCache)

// WithHitRecorder reports every Get outcome to r.
func WithHitRecorder(r HitRecorder) Option {
	return func(c *RedisCache) {
		c.recorder = r
	}
}

// WithOperationTimeout bounds each Redis round trip.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *RedisCache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// RedisCache keeps JSON encoded entries in Redis under keyPrefix+hash.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	opTimeout time.Duration
	recorder  HitRecorder
	log       *zap.SugaredLogger
}

func NewRedisCache(client *redis.Client, keyPrefix string, opts ...Option) *RedisCache {
	c := &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		opTimeout: 500 * time.Millisecond,
		log:       logger.GetLogger().Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(hash string) string {
	return c.keyPrefix + hash
}

func (c *RedisCache) Get(ctx context.Context, hash string) (*types.CacheEntry, bool) {
	if hash == "" {
		c.miss()
		return nil, false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.client.Get(opCtx, c.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.log.Warnw("Cache lookup failed, treating as miss",
			"hash", hash, "error", apperrors.CacheUnavailable("get", err))
		c.miss()
		return nil, false
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warnw("Discarding undecodable cache entry", "hash", hash, "error", err)
		c.miss()
		return nil, false
	}

	c.hit()
	return &entry, true
}

func (c *RedisCache) Put(ctx context.Context, hash string, entry *types.CacheEntry, ttl time.Duration) bool {
	if hash == "" || entry == nil {
		return false
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.log.Warnw("Failed to encode cache entry", "hash", hash, "error", err)
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	stored, err := c.client.SetNX(opCtx, c.key(hash), data, ttl).Result()
	if err != nil {
		c.log.Warnw("Cache write failed, result not cached",
			"hash", hash, "error", apperrors.CacheUnavailable("put", err))
		return false
	}
	if !stored {
		c.log.Debugw("Cache entry already present, keeping original", "hash", hash)
	}
	return stored
}

func (c *RedisCache) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Ping(opCtx).Err(); err != nil {
		return apperrors.CacheUnavailable("ping", err)
	}
	return nil
}

func (c *RedisCache) hit() {
	if c.recorder != nil {
		c.recorder.RecordCacheHit()
	}
}

func (c *RedisCache) miss() {
	if c.recorder != nil {
		c.recorder.RecordCacheMiss()
	}
}

// NoopCache is used when caching is disabled. Every lookup misses.
type NoopCache struct {
	Recorder HitRecorder
}

func (n NoopCache) Get(context.Context, string) (*types.CacheEntry, bool) {
	if n.Recorder != nil {
		n.Recorder.RecordCacheMiss()
	}
	return nil, false
}

func (NoopCache) Put(context.Context, string, *types.CacheEntry, time.Duration) bool {
	return false
}

func (NoopCache) Ping(context.Context) error {
	return nil
}
