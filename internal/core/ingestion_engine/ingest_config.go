package ingestion_engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	objectclient "github.com/markdave123-py/newsdesk/internal/core/object-client"
)

// IngestConfig tunes one ingestion run.
//
// MaxArticles:   articles kept from the concatenated feeds, in feed order.
// MaxEmbedChars: cap on the title+content text sent to the embedder.
// BatchSize:     articles embedded and persisted together.
// BatchDelay:    pause between persisted batches.
type IngestConfig struct {
	MaxArticles   int
	MaxEmbedChars int
	BatchSize     int
	BatchDelay    time.Duration
}

func (c IngestConfig) withDefaults() IngestConfig {
	if c.MaxArticles <= 0 {
		c.MaxArticles = 50
	}
	if c.MaxEmbedChars <= 0 {
		c.MaxEmbedChars = 8000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	return c
}

// RunResult summarizes a finished ingestion run.
type RunResult struct {
	RunID      string
	Fetched    int
	Indexed    int
	Pruned     int64
	PrunedRuns []string
	Total      int64
	ArchiveURL string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewsIngestor scrapes feeds, embeds the articles and writes them to the
// article index. A successful run replaces the previous one.
type NewsIngestor struct {
	store     core.ArticleStore
	feeds     core.FeedSource
	embedder  core.EmbeddingClient
	extractor core.TextExtractor
	archive   *objectclient.Archive
	feedURLs  []string
	cfg       IngestConfig
	log       *zap.Logger
	now       func() time.Time
}
