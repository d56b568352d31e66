package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/config"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

// Layer names reported to the Recorder.
const (
	LayerMemory = "l1"
	LayerRedis  = "l2"
)

// Recorder receives cache lookup outcomes.
type Recorder interface {
	CacheResult(layer string, hit bool)
}

// Options size the forecast cache.
type Options struct {
	Size      int
	TTL       time.Duration
	KeyPrefix string
}

// ForecastCache keeps forecast results keyed by input fingerprint in memory and,
// when a Redis client is supplied, in Redis. Redis errors are logged and read as misses.
// Returned results are shared and must be treated as read-only.
type ForecastCache struct {
	local    *LRUWithTTL[string, *forecast.Result]
	remote   redis.Cmdable
	opts     Options
	recorder Recorder
	logger   zerolog.Logger
}

// New builds a cache. remote and recorder may be nil.
func New(opts Options, remote redis.Cmdable, recorder Recorder, logger zerolog.Logger) (*ForecastCache, error) {
	if opts.Size <= 0 {
		return nil, errors.New("cache size must be greater than zero")
	}
	local, err := NewLRUWithTTL[string, *forecast.Result](opts.Size, opts.TTL)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &ForecastCache{
		local:    local,
		remote:   remote,
		opts:     opts,
		recorder: recorder,
		logger:   logger.With().Str("component", "forecast_cache").Logger(),
	}, nil
}

// NewFromConfig wires the cache from configuration, connecting to Redis when an
// address is configured. It returns nil when caching is disabled.
func NewFromConfig(ctx context.Context, cfg config.CacheConfig, recorder Recorder, logger zerolog.Logger) (*ForecastCache, *redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	var client *redis.Client
	if cfg.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
	}

	opts := Options{Size: cfg.Size, TTL: cfg.TTL, KeyPrefix: cfg.KeyPrefix}
	var remote redis.Cmdable
	if client != nil {
		remote = client
	}
	c, err := New(opts, remote, recorder, logger)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return nil, nil, err
	}
	return c, client, nil
}

// Get looks key up in memory, then in Redis. A Redis hit is promoted into memory.
func (c *ForecastCache) Get(ctx context.Context, key string) (*forecast.Result, bool) {
	if c == nil {
		return nil, false
	}

	if result, ok := c.local.Get(key); ok {
		c.record(LayerMemory, true)
		return result, true
	}
	c.record(LayerMemory, false)

	if c.remote == nil {
		return nil, false
	}

	payload, err := c.remote.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed, treating as miss")
		}
		c.record(LayerRedis, false)
		return nil, false
	}

	var result forecast.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached forecast")
		c.record(LayerRedis, false)
		return nil, false
	}
	c.record(LayerRedis, true)
	c.local.Set(key, &result)
	return &result, true
}

// Set stores result in both layers.
func (c *ForecastCache) Set(ctx context.Context, key string, result *forecast.Result) {
	if c == nil || result == nil {
		return
	}

	c.local.Set(key, result)
	if c.remote == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("encode forecast for redis")
		return
	}
	if err := c.remote.Set(ctx, c.redisKey(key), payload, c.opts.TTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Stats exposes the in-memory layer counters.
func (c *ForecastCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.local.Stats()
}

func (c *ForecastCache) redisKey(key string) string {
	return c.opts.KeyPrefix + key
}

func (c *ForecastCache) record(layer string, hit bool) {
	if c.recorder != nil {
		c.recorder.CacheResult(layer, hit)
	}
}
