//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedis_RoundTrip(t *testing.T) {
	client := startRedis(t)
	c := NewRedis(client, "test:")
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.SetMulti(ctx, map[string]string{"a": "1", "empty": ""}, time.Minute))

	got, err := c.GetMulti(ctx, []string{"a", "empty", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "empty": ""}, got)

	ttl, err := client.TTL(ctx, "test:a").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestRedis_Expiry(t *testing.T) {
	client := startRedis(t)
	c := NewRedis(client, "test:")
	ctx := context.Background()

	require.NoError(t, c.SetMulti(ctx, map[string]string{"short": "x"}, time.Second))
	require.Eventually(t, func() bool {
		got, err := c.GetMulti(ctx, []string{"short"})
		return err == nil && len(got) == 0
	}, 5*time.Second, 100*time.Millisecond)
}
