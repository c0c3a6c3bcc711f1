package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/config"
	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/core/cache"
	db "github.com/markdave123-py/newsdesk/internal/core/database"
	"github.com/markdave123-py/newsdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/newsdesk/internal/core/llm"
	objectclient "github.com/markdave123-py/newsdesk/internal/core/object-client"
	"github.com/markdave123-py/newsdesk/internal/core/session"
	"github.com/markdave123-py/newsdesk/internal/metrics"
	"github.com/markdave123-py/newsdesk/internal/services"
)

const sweepInterval = time.Minute

type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	DBClient  db.DbClient
	Ingestor  ingestion_engine.Ingestor
	Readiness *services.Readiness
	RAG       *services.RAGService
	Server    *Server

	sessions    core.SessionStore
	memCache    *cache.MemoryCache
	memSessions *session.MemoryStore
	redis       *redis.Client
	closers     []io.Closer
}

// NewApp connects every collaborator. It does not ingest; call Start.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}
	a.Readiness = services.NewReadiness(a.Metrics)

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient)
	log.Info("database connected")

	embedder, err := a.newEmbedder(appCtx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	generator, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel, cfg.GenTimeout, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the generator: %w", err)
	}
	a.closers = append(a.closers, generator)

	respCache, pingers := a.newStores()

	var archive *objectclient.Archive
	if cfg.ArchiveEnabled() {
		objClient, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		archive = objectclient.NewArchive(objClient)
	}

	feeds := ingestion_engine.NewFeedScraper(cfg.FeedURLs, cfg.FeedItemLimit, cfg.FeedDelay, log)
	a.Ingestor = ingestion_engine.NewNewsIngestor(
		dbClient, feeds, embedder, ingestion_engine.NewDocconvExtractor(false), archive, cfg.FeedURLs,
		ingestion_engine.IngestConfig{
			MaxArticles: cfg.MaxArticles,
			BatchSize:   cfg.EmbedBatchSize,
			BatchDelay:  cfg.EmbedBatchDelay,
		},
		log,
	)

	a.RAG = services.NewRAGService(embedder, dbClient, generator, respCache, a.Readiness,
		services.RAGConfig{
			TopK:             cfg.RetrievalTopK,
			MaxGroundingDocs: cfg.MaxGroundingDocs,
			EmbedDim:         cfg.EmbedDim,
			EmbedTimeout:     cfg.EmbedTimeout,
			SearchTimeout:    cfg.SearchTimeout,
			GenTimeout:       cfg.GenTimeout,
		},
		a.Metrics, log,
	)

	var stats services.CacheStats
	if a.memCache != nil {
		stats = a.memCache
	}
	health := services.NewHealthService(a.Readiness, dbClient, a.sessions, cfg.StoreBackend, stats, log, pingers...)

	a.Server = NewServer(cfg, log, a.Metrics, Services{
		Chat:      services.NewChatService(a.RAG, a.sessions, log),
		Sessions:  services.NewSessionService(a.sessions),
		Health:    health,
		Readiness: a.Readiness,
	})
	return a, nil
}

func (a *App) newEmbedder(ctx context.Context) (core.EmbeddingClient, error) {
	cfg := a.Config
	opts := llm.EmbedOptions{
		Dim:        cfg.EmbedDim,
		BatchSize:  cfg.EmbedBatchSize,
		BatchDelay: cfg.EmbedBatchDelay,
		Timeout:    cfg.EmbedTimeout,
	}
	switch cfg.EmbedProvider {
	case config.EmbedProviderJina:
		return llm.NewJinaEmbedder(cfg.JinaAPIURL, cfg.JinaAPIKey, cfg.EmbedModel, opts, a.Log), nil
	default:
		emb, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel, opts, a.Log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, emb)
		return emb, nil
	}
}

// newStores builds the response cache and the session store for the
// configured backend.
func (a *App) newStores() (core.ResponseCache, []core.Pinger) {
	cfg := a.Config
	if cfg.StoreBackend == config.StoreBackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, a.redis)
		rc := cache.NewRedisCache(a.redis, cfg.CacheTTL)
		rs := session.NewRedisStore(a.redis, cfg.SessionTTL, a.Log)
		a.sessions = rs
		a.Log.Info("using redis stores", zap.String("addr", cfg.RedisAddr))
		return rc, []core.Pinger{rc}
	}

	a.memCache = cache.NewMemoryCache(cfg.CacheTTL, cfg.CacheMaxEntries, cache.WithLogger(a.Log))
	a.memSessions = session.NewMemoryStore(cfg.SessionTTL, session.WithLogger(a.Log))
	a.sessions = a.memSessions
	a.Log.Info("using in-memory stores")
	return a.memCache, nil
}

// Initialize runs the first ingestion and flips readiness. A failure leaves
// the service not ready until restart.
func (a *App) Initialize(ctx context.Context) error {
	err := a.Readiness.Run(ctx, func(ctx context.Context) error {
		a.Log.Info("initializing rag pipeline")
		res, err := a.Ingestor.Run(ctx)
		a.Metrics.IngestRun(err == nil, indexed(res))
		if err != nil {
			return err
		}
		a.Log.Info("rag pipeline initialized",
			zap.String("run_id", res.RunID),
			zap.Int("articles", res.Indexed),
		)
		return nil
	})
	if err != nil {
		a.Log.Error("rag pipeline initialization failed", zap.Error(err))
	}
	return err
}

// Start launches the store sweepers and, in the background, the first
// ingestion. The refresh scheduler starts only after that run succeeded.
func (a *App) Start(ctx context.Context) error {
	if a.memCache != nil {
		a.memCache.StartCleanupWorker(ctx, sweepInterval)
	}
	if a.memSessions != nil {
		a.memSessions.StartJanitor(ctx, sweepInterval)
	}

	var sched *ingestion_engine.RefreshScheduler
	if a.Config.RefreshCron != "" {
		var err error
		sched, err = ingestion_engine.NewRefreshScheduler(a.Config.RefreshCron, a.Ingestor, a.Log)
		if err != nil {
			return err
		}
		sched.OnRun(func(res *ingestion_engine.RunResult, err error) {
			a.Metrics.IngestRun(err == nil, indexed(res))
		})
	}

	go func() {
		if err := a.Initialize(ctx); err != nil || sched == nil {
			return
		}
		sched.Start(ctx)
	}()
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func indexed(res *ingestion_engine.RunResult) int {
	if res == nil {
		return 0
	}
	return res.Indexed
}
