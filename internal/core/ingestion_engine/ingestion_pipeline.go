package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/newsdesk/internal/core"
	objectclient "github.com/markdave123-py/newsdesk/internal/core/object-client"
	"github.com/markdave123-py/newsdesk/internal/models"
)

// ErrNoArticles is returned when every feed came back empty.
var ErrNoArticles = errors.New("no articles scraped")

// NewNewsIngestor wires an ingestor. archive may be nil.
func NewNewsIngestor(
	store core.ArticleStore,
	feeds core.FeedSource,
	emb core.EmbeddingClient,
	extractor core.TextExtractor,
	archive *objectclient.Archive,
	feedURLs []string,
	cfg IngestConfig,
	log *zap.Logger,
) *NewsIngestor {
	return &NewsIngestor{
		store:     store,
		feeds:     feeds,
		embedder:  emb,
		extractor: extractor,
		archive:   archive,
		feedURLs:  feedURLs,
		cfg:       cfg.withDefaults(),
		log:       log.Named("ingestor"),
		now:       time.Now,
	}
}

// Run scrapes, embeds and indexes one generation of articles, then prunes
// every older generation. Nothing is pruned when the run fails.
func (i *NewsIngestor) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString(), StartedAt: i.now()}
	log := i.log.With(zap.String("run_id", res.RunID))

	if err := i.store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	raw, err := i.feeds.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape feeds: %w", err)
	}
	res.Fetched = len(raw)

	articles := i.prepare(raw, log)
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	log.Info("ingestion started", zap.Int("fetched", len(raw)), zap.Int("articles", len(articles)))

	indexed, err := i.indexAll(ctx, res.RunID, articles)
	if err != nil {
		log.Error("ingestion failed", zap.Error(err))
		return nil, err
	}
	res.Indexed = len(indexed)

	if i.archive != nil {
		url, err := i.archive.Save(ctx, objectclient.RunSnapshot{
			RunID:      res.RunID,
			StartedAt:  res.StartedAt,
			FinishedAt: i.now(),
			Feeds:      i.feedURLs,
			Articles:   indexed,
		})
		if err != nil {
			log.Warn("snapshot archive failed", zap.Error(err))
		} else {
			res.ArchiveURL = url
		}
	}

	prunedRuns, pruned, err := i.store.PruneRuns(ctx, res.RunID)
	if err != nil {
		log.Warn("pruning previous runs failed", zap.Error(err))
	}
	res.Pruned = pruned
	res.PrunedRuns = prunedRuns
	i.dropSnapshots(ctx, prunedRuns, log)
	res.FinishedAt = i.now()

	if total, err := i.store.CountArticles(ctx); err != nil {
		log.Warn("count after ingestion failed", zap.Error(err))
	} else if total < int64(res.Indexed) {
		log.Warn("index holds fewer articles than were written",
			zap.Int64("count", total), zap.Int("indexed", res.Indexed))
	} else {
		res.Total = total
	}

	log.Info("ingestion finished",
		zap.Int("indexed", res.Indexed),
		zap.Int64("pruned", res.Pruned),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// dropSnapshots removes the archived snapshots of runs no longer in the index.
func (i *NewsIngestor) dropSnapshots(ctx context.Context, runIDs []string, log *zap.Logger) {
	if i.archive == nil {
		return
	}
	for _, id := range runIDs {
		if err := i.archive.Remove(ctx, id); err != nil {
			log.Warn("removing superseded snapshot failed", zap.String("pruned_run_id", id), zap.Error(err))
		}
	}
}

// prepare cleans markup, drops untitled items and keeps the first MaxArticles.
func (i *NewsIngestor) prepare(raw []models.Article, log *zap.Logger) []models.Article {
	out := make([]models.Article, 0, min(len(raw), i.cfg.MaxArticles))
	for _, a := range raw {
		if len(out) >= i.cfg.MaxArticles {
			break
		}
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		if i.extractor != nil {
			text, err := i.extractor.ExtractText(a.Content)
			if err != nil {
				log.Debug("keeping raw content", zap.String("title", a.Title), zap.Error(err))
			} else {
				a.Content = text
			}
		}
		out = append(out, a)
	}
	return out
}

// indexAll runs articles -> batches -> embed+persist as one errgroup.
func (i *NewsIngestor) indexAll(ctx context.Context, runID string, articles []models.Article) ([]models.Article, error) {
	g, gctx := errgroup.WithContext(ctx)

	artCh := streamArticles(gctx, g, articles)
	batchCh := streamBatches(gctx, g, artCh, i.cfg.BatchSize)

	var (
		mu      sync.Mutex
		indexed []models.Article
	)
	g.Go(func() error {
		first := true
		for batch := range batchCh {
			if !first && i.cfg.BatchDelay > 0 {
				select {
				case <-time.After(i.cfg.BatchDelay):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			first = false

			if err := i.embedAndPersist(gctx, runID, batch); err != nil {
				return err
			}
			mu.Lock()
			indexed = append(indexed, batch...)
			mu.Unlock()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return indexed, nil
}

func (i *NewsIngestor) embedAndPersist(ctx context.Context, runID string, batch []models.Article) error {
	texts := make([]string, len(batch))
	for j, a := range batch {
		texts[j] = a.EmbeddingText(i.cfg.MaxEmbedChars)
	}

	vecs, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(batch) {
		return core.NewEmbeddingError(fmt.Sprintf("got %d vectors for %d articles", len(vecs), len(batch)), nil)
	}

	if err := i.store.UpsertArticles(ctx, runID, batch, vecs); err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}
	return nil
}
