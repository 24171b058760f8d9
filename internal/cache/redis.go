// Package cache wraps the Redis client used for catalog caching and rate limits.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
	Prefix   string
}

// Redis is a thin JSON-aware wrapper around go-redis.
type Redis struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Redis, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewFromClient(client, cfg.Prefix), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "botcrm:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Client exposes the underlying go-redis client.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Key applies the configured prefix.
func (r *Redis) Key(key string) string {
	return r.prefix + key
}

// GetJSON decodes the value stored at key into dest. It reports false on a miss.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value as JSON with the given TTL.
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.Key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Allow implements a fixed-window counter: the first hit in a window sets the
// expiry, and hits beyond limit are refused until the key expires.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	full := r.Key(key)
	n, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return true, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, full, window).Err(); err != nil {
			return true, fmt.Errorf("redis expire: %w", err)
		}
	}
	return n <= int64(limit), nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
