// Package redis holds the shared cache connection used for generated titles.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdfrenamer/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss mirrors redis.Nil for callers.
var ErrCacheMiss = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// Client wraps the go-redis client behind the few calls the title cache needs.
type Client struct {
	inner *redis.Client
}

// New dials redis with the settings from cfg and verifies the connection.
func New(cfg config.RedisConfig) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	inner := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := inner.Ping(ctx).Err(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", host, port, err)
	}
	return &Client{inner: inner}, nil
}

// Set stores value under key for ttl.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.Set(ctx, key, value, ttl).Err()
}

// Get returns the string stored at key or ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.inner == nil {
		return "", errNotInitialized
	}
	return c.inner.Get(ctx, key).Result()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
