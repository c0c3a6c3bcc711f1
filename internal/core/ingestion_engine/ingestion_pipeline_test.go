package ingestion_engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	objectclient "github.com/markdave123-py/newsdesk/internal/core/object-client"
	"github.com/markdave123-py/newsdesk/internal/models"
)

type stubFeeds struct {
	articles []models.Article
	err      error
}

func (s *stubFeeds) Fetch(context.Context) ([]models.Article, error) {
	return s.articles, s.err
}

type stubEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

type stubStore struct {
	mu         sync.Mutex
	upserts    map[string][]models.Article
	pruned     []string
	superseded []string
	upsertEr   error
	pruneErr   error
}

func newStubStore() *stubStore { return &stubStore{upserts: map[string][]models.Article{}} }

func (s *stubStore) Search(context.Context, []float32, int) ([]models.RetrievedMatch, error) {
	return nil, nil
}
func (s *stubStore) EnsureCollection(context.Context) error { return nil }
func (s *stubStore) UpsertArticles(_ context.Context, runID string, a []models.Article, v [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertEr != nil {
		return s.upsertEr
	}
	for i := range a {
		a[i].ID = runID + "-" + a[i].Title
		a[i].RunID = runID
	}
	s.upserts[runID] = append(s.upserts[runID], a...)
	return nil
}
func (s *stubStore) CountArticles(context.Context) (int64, error) { return 50, nil }
func (s *stubStore) PruneRuns(_ context.Context, keep string) ([]string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, keep)
	if s.pruneErr != nil {
		return nil, 0, s.pruneErr
	}
	return s.superseded, 3, nil
}
func (s *stubStore) Close() error { return nil }

var _ core.ArticleStore = (*stubStore)(nil)

type memObjects struct {
	mu        sync.Mutex
	keys      []string
	deleted   []string
	deleteErr error
}

func (m *memObjects) UploadFile(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	_, _ = io.ReadAll(data)
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	return "mem://" + key, nil
}
func (m *memObjects) DeleteFile(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return m.deleteErr
}

func articles(n int) []models.Article {
	out := make([]models.Article, n)
	for i := range out {
		out[i] = models.Article{Title: "t" + string(rune('a'+i%26)) + strings.Repeat("x", i/26), Content: "<p>body</p>"}
	}
	return out
}

func TestNewsIngestor_Run(t *testing.T) {
	store := newStubStore()
	emb := &stubEmbedder{}
	objects := &memObjects{}
	raw := append(articles(55), models.Article{Title: "  ", Content: "untitled"})

	ing := NewNewsIngestor(store, &stubFeeds{articles: raw}, emb, NewDocconvExtractor(false),
		objectclient.NewArchive(objects), []string{"https://feed"},
		IngestConfig{MaxArticles: 50, BatchSize: 20}, zap.NewNop())

	res, err := ing.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 56, res.Fetched)
	assert.Equal(t, 50, res.Indexed)
	assert.EqualValues(t, 3, res.Pruned)
	assert.EqualValues(t, 50, res.Total)
	assert.Equal(t, "mem://ingestion-runs/"+res.RunID+".json", res.ArchiveURL)
	assert.Equal(t, []string{res.RunID}, store.pruned)
	require.Len(t, emb.calls, 3)
	assert.Len(t, emb.calls[0], 20)
	assert.Len(t, emb.calls[2], 10)
	assert.Equal(t, "ta body", emb.calls[0][0])

	stored := store.upserts[res.RunID]
	require.Len(t, stored, 50)
	assert.Equal(t, "ta", stored[0].Title)
	assert.Equal(t, "body", stored[0].Content)
}

func TestNewsIngestor_RemovesSnapshotsOfPrunedRuns(t *testing.T) {
	store := newStubStore()
	store.superseded = []string{"run-old-1", "run-old-2"}
	objects := &memObjects{}

	ing := NewNewsIngestor(store, &stubFeeds{articles: articles(3)}, &stubEmbedder{}, nil,
		objectclient.NewArchive(objects), nil, IngestConfig{}, zap.NewNop())

	res, err := ing.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"run-old-1", "run-old-2"}, res.PrunedRuns)
	assert.Equal(t, []string{"ingestion-runs/run-old-1.json", "ingestion-runs/run-old-2.json"}, objects.deleted)
	assert.Equal(t, []string{"ingestion-runs/" + res.RunID + ".json"}, objects.keys)

	t.Run("delete failure does not fail the run", func(t *testing.T) {
		objects := &memObjects{deleteErr: errors.New("access denied")}
		ing := NewNewsIngestor(store, &stubFeeds{articles: articles(3)}, &stubEmbedder{}, nil,
			objectclient.NewArchive(objects), nil, IngestConfig{}, zap.NewNop())

		res, err := ing.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, objects.deleted, 2)
		assert.Equal(t, 3, res.Indexed)
	})

	t.Run("prune failure removes nothing", func(t *testing.T) {
		failing := newStubStore()
		failing.superseded = []string{"run-old-1"}
		failing.pruneErr = errors.New("lock timeout")
		objects := &memObjects{}
		ing := NewNewsIngestor(failing, &stubFeeds{articles: articles(3)}, &stubEmbedder{}, nil,
			objectclient.NewArchive(objects), nil, IngestConfig{}, zap.NewNop())

		res, err := ing.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.PrunedRuns)
		assert.Empty(t, objects.deleted)
	})
}

func TestNewsIngestor_TruncatesEmbeddingText(t *testing.T) {
	emb := &stubEmbedder{}
	long := models.Article{Title: "Long", Content: strings.Repeat("a", 9000)}
	ing := NewNewsIngestor(newStubStore(), &stubFeeds{articles: []models.Article{long}}, emb, nil, nil, nil,
		IngestConfig{}, zap.NewNop())

	_, err := ing.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, emb.calls, 1)
	assert.Len(t, emb.calls[0][0], 8000)
}

func TestNewsIngestor_Failures(t *testing.T) {
	t.Run("no articles", func(t *testing.T) {
		store := newStubStore()
		ing := NewNewsIngestor(store, &stubFeeds{}, &stubEmbedder{}, nil, nil, nil, IngestConfig{}, zap.NewNop())
		_, err := ing.Run(context.Background())
		assert.ErrorIs(t, err, ErrNoArticles)
		assert.Empty(t, store.pruned)
	})

	t.Run("embedding failure keeps previous run", func(t *testing.T) {
		store := newStubStore()
		emb := &stubEmbedder{err: core.NewEmbeddingError("quota", nil)}
		ing := NewNewsIngestor(store, &stubFeeds{articles: articles(3)}, emb, nil, nil, nil, IngestConfig{}, zap.NewNop())

		_, err := ing.Run(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrEmbeddingService))
		assert.Empty(t, store.pruned)
	})

	t.Run("persist failure", func(t *testing.T) {
		store := newStubStore()
		store.upsertEr = core.NewIndexError("down", nil)
		ing := NewNewsIngestor(store, &stubFeeds{articles: articles(3)}, &stubEmbedder{}, nil, nil, nil, IngestConfig{}, zap.NewNop())

		_, err := ing.Run(context.Background())
		assert.True(t, errors.Is(err, core.ErrIndexUnavailable))
		assert.Empty(t, store.pruned)
	})

	t.Run("scrape failure", func(t *testing.T) {
		ing := NewNewsIngestor(newStubStore(), &stubFeeds{err: context.Canceled}, &stubEmbedder{}, nil, nil, nil, IngestConfig{}, zap.NewNop())
		_, err := ing.Run(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRefreshScheduler(t *testing.T) {
	_, err := NewRefreshScheduler("not a cron", nil, zap.NewNop())
	require.Error(t, err)

	s, err := NewRefreshScheduler("*/15 * * * *", nil, zap.NewNop())
	require.NoError(t, err)
	base := time.Date(2024, 5, 1, 10, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC), s.Next(base))
}

type countingIngestor struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (c *countingIngestor) Run(context.Context) (*RunResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.block != nil {
		<-c.block
	}
	return &RunResult{RunID: "r"}, nil
}

func TestRefreshScheduler_SkipsOverlappingRuns(t *testing.T) {
	ing := &countingIngestor{block: make(chan struct{})}
	s, err := NewRefreshScheduler("@hourly", ing, zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	s.OnRun(func(res *RunResult, err error) {
		assert.NoError(t, err)
		close(done)
	})

	go s.fire(context.Background())
	require.Eventually(t, func() bool {
		ing.mu.Lock()
		defer ing.mu.Unlock()
		return ing.calls == 1
	}, time.Second, 5*time.Millisecond)

	s.fire(context.Background())
	close(ing.block)
	<-done

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Equal(t, 1, ing.calls)
}
