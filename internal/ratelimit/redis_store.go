package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quotagate/quotagate/internal/storage"
	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketScript string

// Sentinel returned by the script when the bucket does not exist and no
// configuration was passed.
const uninitialized = -2

// A BucketStore backed by Redis. All bucket mutation happens inside a
// single Lua script, so consumption is linearizable across every
// gateway instance sharing the backend; no in-process lock is held.
type RedisBucketStore struct {
	redis  *storage.RedisClient
	script *redis.Script
}

func NewRedisBucketStore(redisClient *storage.RedisClient) *RedisBucketStore {
	return &RedisBucketStore{
		redis:  redisClient,
		script: redis.NewScript(tokenBucketScript),
	}
}

func bucketKey(userID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:bucket:%s", userID)
}

// Atomically consumes cost tokens from the user's bucket. When no
// bucket exists yet, the supplier is consulted for the user's plan
// limits and the bucket is initialized full, then the consumption is
// applied in the same script invocation. Two racing initializers for
// one user resolve the same configuration, so the second pass is
// idempotent.
func (s *RedisBucketStore) Consume(ctx context.Context, userID uuid.UUID, cost int64, supplier ConfigSupplier) (ConsumptionResult, error) {
	key := bucketKey(userID)
	now := time.Now().UnixNano()

	result, err := s.run(ctx, key, cost, now, BucketConfig{})
	if err != nil {
		return ConsumptionResult{}, err
	}

	if result.uninitialized {
		config, err := supplier(ctx)
		if err != nil {
			return ConsumptionResult{}, err
		}

		result, err = s.run(ctx, key, cost, now, config)
		if err != nil {
			return ConsumptionResult{}, err
		}
		if result.uninitialized {
			return ConsumptionResult{}, errors.New("bucket initialization rejected by script")
		}
	}

	return result.ConsumptionResult, nil
}

// Removes the user's bucket state entirely. Idempotent; the next
// consumption lazily rebuilds the bucket from current configuration.
func (s *RedisBucketStore) Evict(ctx context.Context, userID uuid.UUID) error {
	return s.redis.Del(ctx, bucketKey(userID))
}

type scriptResult struct {
	ConsumptionResult
	uninitialized bool
}

func (s *RedisBucketStore) run(ctx context.Context, key string, cost, now int64, config BucketConfig) (scriptResult, error) {
	reply, err := s.script.Run(ctx, s.redis.Client, []string{key},
		cost,
		now,
		config.Capacity,
		config.RefillPerHour,
		time.Hour.Nanoseconds(),
	).Result()
	if err != nil {
		return scriptResult{}, fmt.Errorf("token bucket script failed: %w", err)
	}

	values, ok := reply.([]interface{})
	if !ok || len(values) != 3 {
		return scriptResult{}, errors.New("invalid token bucket script response")
	}

	allowed := toInt64(values[0])
	if allowed == uninitialized {
		return scriptResult{uninitialized: true}, nil
	}

	return scriptResult{
		ConsumptionResult: ConsumptionResult{
			Allowed:         allowed == 1,
			RemainingTokens: toInt64(values[1]),
			NanosToRefill:   toInt64(values[2]),
		},
	}, nil
}

func toInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
