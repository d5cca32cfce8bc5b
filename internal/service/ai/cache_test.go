package ai

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrenamer/internal/config"
	"pdfrenamer/internal/redis"
)

func TestRedisTitleCacheRoundTrip(t *testing.T) {
	client := newRedisClient(t)
	cache := NewRedisTitleCache(client, time.Minute)
	ctx := context.Background()
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Set(ctx, key, "Board Minutes")
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "Board Minutes", got)

	raw, err := client.Get(ctx, titleCachePrefix+key)
	require.NoError(t, err)
	assert.Equal(t, "Board Minutes", raw)
}

func TestNilRedisCacheIsInert(t *testing.T) {
	cache := NewRedisTitleCache(nil, 0)
	cache.Set(context.Background(), "k", "v")
	_, ok := cache.Get(context.Background(), "k")
	assert.False(t, ok)
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed cache tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	client, err := redis.New(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}
