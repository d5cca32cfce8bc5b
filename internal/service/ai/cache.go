package ai

import (
	"context"
	"errors"
	"log"
	"time"

	"pdfrenamer/internal/redis"
)

const (
	titleCachePrefix     = "pdfrenamer:title:"
	DefaultTitleCacheTTL = 24 * time.Hour
)

// TitleCache remembers titles per excerpt so identical first pages are not
// sent to the model twice.
type TitleCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, title string)
}

type redisTitleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTitleCache stores titles in redis with the given TTL.
func NewRedisTitleCache(client *redis.Client, ttl time.Duration) TitleCache {
	if ttl <= 0 {
		ttl = DefaultTitleCacheTTL
	}
	return &redisTitleCache{client: client, ttl: ttl}
}

func (c *redisTitleCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	title, err := c.client.Get(ctx, titleCachePrefix+key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("title cache get failed: %v", err)
		}
		return "", false
	}
	return title, true
}

func (c *redisTitleCache) Set(ctx context.Context, key, title string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, titleCachePrefix+key, title, c.ttl); err != nil {
		log.Printf("title cache set failed: %v", err)
	}
}
