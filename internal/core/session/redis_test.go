package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore(t *testing.T) {
	rdb := startRedis(t)
	s := NewRedisStore(rdb, time.Hour, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	id, err := s.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, id, fmt.Sprintf("q%d", i), "a")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := s.History(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Len(t, sess.Messages, 20)
	assert.True(t, sess.LastActivityAt.After(sess.CreatedAt))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 20, list[0].MessageCount)

	ttl, err := rdb.TTL(ctx, "session:"+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	deleted, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	sess, err = s.History(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = s.Append(ctx, id, "late", "a")
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
}
