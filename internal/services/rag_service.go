package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/metrics"
	"github.com/markdave123-py/newsdesk/internal/models"
)

// RAGConfig bounds one query.
type RAGConfig struct {
	TopK             int
	MaxGroundingDocs int
	EmbedDim         int
	EmbedTimeout     time.Duration
	SearchTimeout    time.Duration
	GenTimeout       time.Duration
}

func (c RAGConfig) withDefaults() RAGConfig {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MaxGroundingDocs <= 0 {
		c.MaxGroundingDocs = 4
	}
	if c.EmbedDim <= 0 {
		c.EmbedDim = core.EmbeddingDimension
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 10 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 10 * time.Second
	}
	if c.GenTimeout <= 0 {
		c.GenTimeout = 30 * time.Second
	}
	return c
}

// RAGService answers questions from the article index. Identical in-flight
// misses share one pipeline run.
type RAGService struct {
	embedder  core.EmbeddingClient
	index     core.VectorIndex
	generator core.GenerationClient
	cache     core.ResponseCache
	readiness *Readiness
	cfg       RAGConfig
	metrics   *metrics.Metrics
	log       *zap.Logger

	inflight singleflight.Group
}

func NewRAGService(
	emb core.EmbeddingClient,
	index core.VectorIndex,
	gen core.GenerationClient,
	cache core.ResponseCache,
	readiness *Readiness,
	cfg RAGConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) *RAGService {
	return &RAGService{
		embedder:  emb,
		index:     index,
		generator: gen,
		cache:     cache,
		readiness: readiness,
		cfg:       cfg.withDefaults(),
		metrics:   m,
		log:       log.Named("rag"),
	}
}

// CheckReady reports whether queries are accepted.
func (s *RAGService) CheckReady() error {
	return s.readiness.Check()
}

// AnswerQuery returns a grounded answer for message. Cached answers come back
// without citations.
func (s *RAGService) AnswerQuery(ctx context.Context, message string) (*models.QueryResult, error) {
	if err := s.readiness.Check(); err != nil {
		s.metrics.QueryOutcome("not_ready")
		return nil, err
	}

	normalized := Normalize(message)
	if normalized == "" {
		s.metrics.QueryOutcome("invalid")
		return nil, core.NewValidationError("message is required")
	}
	hash := QueryHash(normalized)

	answer, ok, err := s.cache.Get(ctx, hash)
	if err != nil {
		s.metrics.QueryOutcome("failed")
		return nil, fmt.Errorf("response cache lookup: %w", err)
	}
	s.metrics.CacheLookup(ok)
	if ok {
		s.metrics.QueryOutcome("cached")
		return &models.QueryResult{Answer: answer, Citations: []models.Citation{}, Cached: true}, nil
	}

	question := strings.TrimSpace(message)
	ch := s.inflight.DoChan(hash, func() (any, error) {
		// Detached so one caller leaving does not fail the others.
		return s.compute(context.WithoutCancel(ctx), question, normalized, hash)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.Coalesced()
		}
		if res.Err != nil {
			s.metrics.QueryOutcome("failed")
			return nil, res.Err
		}
		s.metrics.QueryOutcome("answered")
		return copyResult(res.Val.(*models.QueryResult)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *RAGService) compute(ctx context.Context, question, normalized, hash string) (*models.QueryResult, error) {
	log := s.log.With(zap.String("query_hash", hash[:12]))

	vector, err := s.embed(ctx, normalized)
	if err != nil {
		log.Warn("embedding stage failed", zap.Error(err))
		return nil, core.NewPipelineError(core.StageEmbedding, err)
	}

	matches, err := s.search(ctx, vector)
	if err != nil {
		log.Warn("retrieval stage failed", zap.Error(err))
		return nil, core.NewPipelineError(core.StageRetrieval, err)
	}

	unique := DedupByTitle(matches)
	grounding := unique
	if len(grounding) > s.cfg.MaxGroundingDocs {
		grounding = grounding[:s.cfg.MaxGroundingDocs]
	}

	answer, err := s.generate(ctx, BuildPrompt(question, grounding))
	if err != nil {
		log.Warn("generation stage failed", zap.Error(err))
		return nil, core.NewPipelineError(core.StageGeneration, err)
	}

	if err := s.cache.Put(ctx, hash, answer); err != nil {
		log.Warn("caching answer failed", zap.Error(err))
	}

	log.Info("query answered",
		zap.Int("matches", len(matches)),
		zap.Int("unique", len(unique)),
		zap.Int("grounding", len(grounding)),
	)
	return &models.QueryResult{
		Answer:    answer,
		Citations: citations(unique),
		Grounding: grounding,
	}, nil
}

func (s *RAGService) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()
	defer s.observe(core.StageEmbedding, time.Now())

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, core.NewEmbeddingError(fmt.Sprintf("expected 1 vector, got %d", len(vecs)), nil)
	}
	if len(vecs[0]) != s.cfg.EmbedDim {
		return nil, core.NewEmbeddingError(fmt.Sprintf("expected dimension %d, got %d", s.cfg.EmbedDim, len(vecs[0])), nil)
	}
	return vecs[0], nil
}

func (s *RAGService) search(ctx context.Context, vector []float32) ([]models.RetrievedMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()
	defer s.observe(core.StageRetrieval, time.Now())

	return s.index.Search(ctx, vector, s.cfg.TopK)
}

func (s *RAGService) generate(ctx context.Context, p models.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenTimeout)
	defer cancel()
	defer s.observe(core.StageGeneration, time.Now())

	return s.generator.Generate(ctx, p.System, p.User)
}

func (s *RAGService) observe(stage string, start time.Time) {
	s.metrics.ObserveStage(stage, time.Since(start))
}

// copyResult gives every coalesced caller its own slices.
func copyResult(r *models.QueryResult) *models.QueryResult {
	out := *r
	out.Citations = append([]models.Citation{}, r.Citations...)
	out.Grounding = append([]models.RetrievedMatch(nil), r.Grounding...)
	return &out
}
