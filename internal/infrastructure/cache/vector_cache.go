package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
)

// VectorCache stores embeddings keyed by vectorizer backend and input text.
// A miss returns (nil, false, nil); only transport failures produce errors.
type VectorCache interface {
	Get(ctx context.Context, backendID, text string) ([]float64, bool, error)
	Put(ctx context.Context, backendID, text string, vector []float64) error
}

// RedisVectorCache caches embeddings in Redis with a TTL. Keys are
// emb:{backend}:{sha256(text)} so a model upgrade never serves stale vectors
// from the previous backend.
type RedisVectorCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

func NewRedisVectorCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisVectorCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisVectorCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisVectorCache) Get(ctx context.Context, backendID, text string) ([]float64, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(backendID, text)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached embedding: %w", err)
	}

	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		// A corrupt entry is treated as a miss and overwritten on Put.
		c.logger.Warn("discarding corrupt cached embedding",
			zap.String("backend", backendID),
			zap.Error(err))
		return nil, false, nil
	}

	return vector, true, nil
}

func (c *RedisVectorCache) Put(ctx context.Context, backendID, text string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(backendID, text), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing cached embedding: %w", err)
	}

	return nil
}

func cacheKey(backendID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + backendID + ":" + hex.EncodeToString(sum[:])
}

// NoopVectorCache always misses. It stands in when Redis is not configured.
type NoopVectorCache struct{}

func (NoopVectorCache) Get(context.Context, string, string) ([]float64, bool, error) {
	return nil, false, nil
}

func (NoopVectorCache) Put(context.Context, string, string, []float64) error {
	return nil
}
