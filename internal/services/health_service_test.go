package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/markdave123-py/newsdesk/internal/config"
	corepkg "github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/core/cache"
	"github.com/markdave123-py/newsdesk/internal/core/session"
)

type countStub struct {
	n   int64
	err error
}

func (c countStub) CountArticles(context.Context) (int64, error) { return c.n, c.err }

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func TestHealthService_Check(t *testing.T) {
	ctx := context.Background()
	r := NewReadiness(nil)
	sessions := session.NewMemoryStore(time.Hour)
	_, _ = sessions.Create(ctx)
	c := cache.NewMemoryCache(time.Minute, 0)
	_ = c.Put(ctx, "h", "a")

	h := NewHealthService(r, countStub{n: 48}, sessions, config.StoreBackendMemory, c, nil)

	rep := h.Check(ctx)
	assert.Equal(t, "uninitialized", rep.Status)
	assert.False(t, rep.RAG.Initialized)

	require.NoError(t, r.Run(ctx, func(context.Context) error { return nil }))
	rep = h.Check(ctx)
	assert.Equal(t, "healthy", rep.Status)
	assert.True(t, rep.RAG.Initialized)
	assert.EqualValues(t, 48, rep.RAG.Articles)
	assert.Equal(t, 1, rep.Sessions)
	require.NotNil(t, rep.Cache)
	assert.Equal(t, 1, rep.Cache.Entries)
	assert.Equal(t, "memory", rep.Store.Backend)
}

func TestHealthService_Failures(t *testing.T) {
	ctx := context.Background()
	r := NewReadiness(nil)
	require.NoError(t, r.Run(ctx, func(context.Context) error { return nil }))

	obs, logs := observer.New(zap.WarnLevel)
	countErr := corepkg.NewIndexError("count failed", errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	h := NewHealthService(r, countStub{err: countErr}, session.NewMemoryStore(time.Hour),
		config.StoreBackendRedis, nil, zap.New(obs), pingStub{err: errors.New("NOAUTH redis-password-hint")})

	rep := h.Check(ctx)
	assert.Equal(t, "error", rep.Status)
	assert.Equal(t, "index_unavailable", rep.RAG.Error)
	assert.Equal(t, "error", rep.Store.Status)
	assert.Equal(t, "unreachable", rep.Store.Error)
	assert.Nil(t, rep.Cache)

	body, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "10.0.0.5")
	assert.NotContains(t, string(body), "redis-password-hint")

	assert.Equal(t, 1, logs.FilterMessage("counting articles failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("store ping failed").Len())
}

func TestHealthService_FailedInitReportsKindOnly(t *testing.T) {
	ctx := context.Background()
	r := NewReadiness(nil)
	_ = r.Run(ctx, func(context.Context) error {
		return corepkg.NewEmbeddingError("batch 2", errors.New("api key AIza-secret rejected"))
	})

	rep := NewHealthService(r, nil, session.NewMemoryStore(time.Hour), config.StoreBackendMemory, nil, nil).Check(ctx)
	assert.Equal(t, "failed", rep.Status)
	assert.Equal(t, "embedding_service", rep.RAG.Error)
}
