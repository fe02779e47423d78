package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "ocr:rate_limit:"

// RateLimitDecision is the outcome of one fixed-window check.
type RateLimitDecision struct {
	Allowed   bool
	Count     int64
	Remaining int
	// ResetIn is the time left in the current window.
	ResetIn time.Duration
}

// RateLimiterInterface defines the contract for rate limiting operations.
type RateLimiterInterface interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}

// RateLimitService counts requests per key in fixed windows stored in Redis.
type RateLimitService struct {
	redis     *redis.Client
	keyPrefix string
}

func NewRateLimitService(client *redis.Client) *RateLimitService {
	return &RateLimitService{
		redis:     client,
		keyPrefix: defaultRateLimitPrefix,
	}
}

// Allow increments the counter for key. The window starts with the first
// request; later requests do not extend it.
func (s *RateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error) {
	rKey := s.keyPrefix + key

	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, rKey)
	ttlCmd := pipe.TTL(ctx, rKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateLimitDecision{}, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		if err := s.redis.Expire(ctx, rKey, window).Err(); err != nil {
			return RateLimitDecision{}, err
		}
		ttl = window
	}

	count := incr.Val()
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitDecision{
		Allowed:   count <= int64(limit),
		Count:     count,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}
