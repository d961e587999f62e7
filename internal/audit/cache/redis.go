package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/redis"
	"github.com/sitepulse/engine/pkg/types"
)

// redisEnvelope wraps a stored report with its storage time so the age
// survives the round trip through Redis.
type redisEnvelope struct {
	CreatedAt time.Time     `json:"createdAt"`
	Report    *types.Report `json:"report"`
}

// Redis is the ReportCache for multi-process deployments. Expiry is
// delegated to the Redis key TTL.
type Redis struct {
	client *redis.Client
	keys   *redis.KeyGenerator
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a Redis-backed cache. A non-positive ttl falls back
// to DefaultTTL.
func NewRedis(client *redis.Client, keys *redis.KeyGenerator, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		keys:   keys,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (*types.Report, time.Duration, bool) {
	redisKey := r.keys.ReportKey(key)

	raw, err := r.client.Get(ctx, redisKey)
	if err != nil {
		r.logger.Warn("Cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, 0, false
	}
	if raw == "" {
		return nil, 0, false
	}

	var envelope redisEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope.Report == nil {
		r.logger.Warn("Cache entry corrupted, evicting",
			zap.String("key", key),
			zap.Error(err))
		// Self-healing: drop the entry so the next audit repopulates it.
		if delErr := r.client.Del(ctx, redisKey); delErr != nil {
			r.logger.Warn("Failed to evict corrupted cache entry",
				zap.String("key", key),
				zap.Error(delErr))
		}
		return nil, 0, false
	}

	return envelope.Report, time.Since(envelope.CreatedAt), true
}

func (r *Redis) Set(ctx context.Context, key string, report *types.Report) {
	if report == nil {
		return
	}

	payload, err := json.Marshal(redisEnvelope{
		CreatedAt: time.Now().UTC(),
		Report:    report,
	})
	if err != nil {
		r.logger.Error("Failed to encode report for cache",
			zap.String("key", key),
			zap.Error(err))
		return
	}

	if err := r.client.Set(ctx, r.keys.ReportKey(key), payload, r.ttl); err != nil {
		r.logger.Warn("Cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}
}
