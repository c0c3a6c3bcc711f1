package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/config"
	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/core/cache"
	"github.com/markdave123-py/newsdesk/internal/core/session"
	"github.com/markdave123-py/newsdesk/internal/models"
	"github.com/markdave123-py/newsdesk/internal/services"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, core.EmbeddingDimension)
	}
	return out, nil
}

type stubIndex struct{ err error }

func (s stubIndex) Search(context.Context, []float32, int) ([]models.RetrievedMatch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.RetrievedMatch{{
		Article: models.Article{Title: "Quake", URL: "https://news.example/quake", Content: "A quake hit."},
		Score:   0.87,
		Rank:    1,
	}}, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string, string) (string, error) {
	return "A quake hit.", nil
}

type testAPI struct {
	router    http.Handler
	readiness *services.Readiness
	sessions  *session.MemoryStore
}

func newTestAPI(t *testing.T, ready bool, index core.VectorIndex) *testAPI {
	t.Helper()
	log := zap.NewNop()
	readiness := services.NewReadiness(nil)
	if ready {
		require.NoError(t, readiness.Run(context.Background(), func(context.Context) error { return nil }))
	}
	sessions := session.NewMemoryStore(time.Hour)
	respCache := cache.NewMemoryCache(30*time.Minute, 0)

	rag := services.NewRAGService(stubEmbedder{}, index, stubGenerator{}, respCache, readiness,
		services.RAGConfig{}, nil, log)
	chat := NewChatHandler(services.NewChatService(rag, sessions, log), log)
	sess := NewSessionHandler(services.NewSessionService(sessions), log)
	health := NewHealthHandler(services.NewHealthService(readiness, nil, sessions, config.StoreBackendMemory, respCache, nil), readiness)

	r := chi.NewRouter()
	r.Get("/", health.Root)
	r.Get("/health", health.Health)
	r.Route("/api", func(api chi.Router) {
		api.Post("/session/new", sess.Create)
		api.Get("/session/{sessionId}/history", sess.History)
		api.Delete("/session/{sessionId}", sess.Delete)
		api.Get("/sessions", sess.List)
		api.Post("/chat", chat.Chat)
	})
	return &testAPI{router: r, readiness: readiness, sessions: sessions}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (a *testAPI) newSession(t *testing.T) string {
	rec, body := a.do(t, http.MethodPost, "/api/session/new", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return body["sessionId"].(string)
}

func TestChat_EndToEnd(t *testing.T) {
	api := newTestAPI(t, true, stubIndex{})
	id := api.newSession(t)

	rec, body := api.do(t, http.MethodPost, "/api/chat", `{"sessionId":"`+id+`","message":"Was there a quake?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A quake hit.", body["message"])
	arts := body["relevantArticles"].([]any)
	require.Len(t, arts, 1)
	assert.Equal(t, "Quake", arts[0].(map[string]any)["title"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)

	rec, body = api.do(t, http.MethodPost, "/api/chat", `{"sessionId":"`+id+`","message":"  was there a QUAKE?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["relevantArticles"], "cached answers carry no citations")

	rec, body = api.do(t, http.MethodGet, "/api/session/"+id+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["messages"], 2)
}

func TestChat_Errors(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		api := newTestAPI(t, true, stubIndex{})
		rec, body := api.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "sessionId and message are required", body["error"])
	})

	t.Run("bad json", func(t *testing.T) {
		api := newTestAPI(t, true, stubIndex{})
		rec, _ := api.do(t, http.MethodPost, "/api/chat", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		api := newTestAPI(t, false, stubIndex{})
		id := api.newSession(t)
		rec, body := api.do(t, http.MethodPost, "/api/chat", `{"sessionId":"`+id+`","message":"hi"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, msgInitializing, body["error"])
	})

	t.Run("unknown session", func(t *testing.T) {
		api := newTestAPI(t, true, stubIndex{})
		rec, body := api.do(t, http.MethodPost, "/api/chat", `{"sessionId":"nope","message":"hi"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, msgSessionNotFound, body["error"])
	})

	t.Run("pipeline failure hides detail", func(t *testing.T) {
		api := newTestAPI(t, true, stubIndex{err: errors.New("pq: password authentication failed")})
		id := api.newSession(t)
		rec, body := api.do(t, http.MethodPost, "/api/chat", `{"sessionId":"`+id+`","message":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, msgInternal, body["error"])
		assert.NotContains(t, rec.Body.String(), "password")
	})
}

func TestSessionRoutes(t *testing.T) {
	api := newTestAPI(t, true, stubIndex{})
	id := api.newSession(t)

	rec, _ := api.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].SessionID)

	rec, body := api.do(t, http.MethodDelete, "/api/session/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Session cleared successfully", body["message"])

	rec, body = api.do(t, http.MethodGet, "/api/session/"+id+"/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgSessionNotFound, body["error"])

	rec, _ = api.do(t, http.MethodDelete, "/api/session/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	api := newTestAPI(t, false, stubIndex{})

	rec, body := api.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["ragInitialized"])

	rec, body = api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "uninitialized", body["status"])

	require.NoError(t, api.readiness.Run(context.Background(), func(context.Context) error { return nil }))
	rec, body = api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["rag"].(map[string]any)["isInitialized"])
}
