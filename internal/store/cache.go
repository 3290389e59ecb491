package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

const (
	latestCacheKey = "earwax:latest"

	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// CachedLedger serves Latest from Redis and falls through to the wrapped
// ledger on a miss or any Redis error. Inserts overwrite the cached row with
// the new one; a miss only fills an empty key, so a slow reader never
// replaces a row written by a newer insert.
type CachedLedger struct {
	next   earwax.Ledger
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedLedger wraps next with a Redis read-through cache.
func NewCachedLedger(next earwax.Ledger, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLedger{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Insert writes through to the wrapped ledger, then caches the inserted row as the latest.
func (c *CachedLedger) Insert(ctx context.Context, obs *earwax.Observation) error {
	if err := c.next.Insert(ctx, obs); err != nil {
		return err
	}

	payload, err := json.Marshal(obs)
	if err == nil {
		err = c.client.Set(ctx, latestCacheKey, payload, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("cache update failed, invalidating", zap.String("key", latestCacheKey), zap.Error(err))
		c.invalidate(ctx)
	}
	return nil
}

// Latest returns the cached latest row, loading it from the wrapped ledger when absent.
func (c *CachedLedger) Latest(ctx context.Context) (earwax.Observation, error) {
	data, err := c.client.Get(ctx, latestCacheKey).Bytes()
	switch {
	case err == nil:
		var obs earwax.Observation
		if err := json.Unmarshal(data, &obs); err == nil {
			return obs, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", latestCacheKey))
		c.invalidate(ctx)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache read failed", zap.String("key", latestCacheKey), zap.Error(err))
	}

	obs, err := c.next.Latest(ctx)
	if err != nil {
		return earwax.Observation{}, err
	}

	payload, err := json.Marshal(obs)
	if err != nil {
		return obs, nil
	}
	if err := c.client.SetNX(ctx, latestCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache fill failed", zap.String("key", latestCacheKey), zap.Error(err))
	}
	return obs, nil
}

func (c *CachedLedger) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, latestCacheKey).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("key", latestCacheKey), zap.Error(err))
	}
}
