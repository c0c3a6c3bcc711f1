package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/core/cache"
)

// ArticleCounter reports the size of the article index.
type ArticleCounter interface {
	CountArticles(ctx context.Context) (int64, error)
}

// CacheStats is implemented by caches that keep local statistics.
type CacheStats interface {
	Stats() cache.Stats
}

type RAGHealth struct {
	State       string `json:"state"`
	Initialized bool   `json:"isInitialized"`
	Articles    int64  `json:"articlesCount"`
	Error       string `json:"error,omitempty"`
}

type StoreHealth struct {
	Backend string `json:"type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type HealthReport struct {
	Status    string       `json:"status"`
	RAG       RAGHealth    `json:"rag"`
	Store     StoreHealth  `json:"store"`
	Sessions  int          `json:"sessions"`
	Cache     *cache.Stats `json:"cache,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// HealthService assembles the health document.
type HealthService struct {
	readiness *Readiness
	articles  ArticleCounter
	sessions  core.SessionStore
	backend   string
	pingers   []core.Pinger
	cache     CacheStats
	log       *zap.Logger
	now       func() time.Time
}

// NewHealthService builds the reporter. articles, cache, log and pingers may
// be nil. Failure details are logged; the report only carries their kind.
func NewHealthService(r *Readiness, articles ArticleCounter, sessions core.SessionStore, backend string, stats CacheStats, log *zap.Logger, pingers ...core.Pinger) *HealthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthService{
		readiness: r,
		articles:  articles,
		sessions:  sessions,
		backend:   backend,
		pingers:   pingers,
		cache:     stats,
		log:       log.Named("health"),
		now:       time.Now,
	}
}

func (h *HealthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rep := HealthReport{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		RAG: RAGHealth{
			State:       h.readiness.State().String(),
			Initialized: h.readiness.Ready(),
		},
		Store: StoreHealth{Backend: h.backend, Status: "healthy"},
	}

	if err := h.readiness.Err(); err != nil {
		rep.RAG.Error = string(core.KindOf(err))
	}
	if !rep.RAG.Initialized {
		rep.Status = rep.RAG.State
	}

	if h.articles != nil {
		n, err := h.articles.CountArticles(ctx)
		if err != nil {
			h.log.Warn("counting articles failed", zap.Error(err))
			rep.Status = "error"
			rep.RAG.Error = string(core.KindOf(err))
		} else {
			rep.RAG.Articles = n
		}
	}

	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("store ping failed", zap.String("backend", h.backend), zap.Error(err))
			rep.Status = "error"
			rep.Store.Status = "error"
			rep.Store.Error = "unreachable"
			break
		}
	}

	if list, err := h.sessions.List(ctx); err == nil {
		rep.Sessions = len(list)
	}

	if h.cache != nil {
		st := h.cache.Stats()
		rep.Cache = &st
	}
	return rep
}
