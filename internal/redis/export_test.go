package redis

import (
	"context"
	"time"
)

func (c *Client) ttl(ctx context.Context, key string) (time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, errNotInitialized
	}
	return c.inner.TTL(ctx, key).Result()
}

func (c *Client) flushDB(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	return c.inner.FlushDB(ctx).Err()
}
