package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/pkg/logger"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	log, err := logger.New(&logger.Config{
		Level:  "debug",
		Format: "json",
		Output: "console",
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()

	client, err := New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{Addr: ""}, nil)
	assert.Error(t, err)

	_, err = New(&Config{Addr: "localhost:6379", DB: 42}, nil)
	assert.Error(t, err)
}

func TestSetGetDel(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0))

	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	n, err := client.Del(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = client.Get(ctx, "k")
	assert.True(t, IsNil(err))
}

func TestSetWithExpiration(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	ttl, err := client.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(2 * time.Minute)

	_, err = client.Get(ctx, "k")
	assert.True(t, IsNil(err))
}
