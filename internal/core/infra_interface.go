package core

import (
	"context"
	"io"

	"github.com/markdave123-py/newsdesk/internal/models"
)

// ArticleStore is the write side of the vector index, used by ingestion.
type ArticleStore interface {
	VectorIndex
	EnsureCollection(ctx context.Context) error
	UpsertArticles(ctx context.Context, runID string, articles []models.Article, vectors [][]float32) error
	CountArticles(ctx context.Context) (int64, error)
	// PruneRuns deletes every other run and reports which run ids it removed
	// and how many articles went with them.
	PruneRuns(ctx context.Context, keepRunID string) (runIDs []string, articles int64, err error)
	Close() error
}

// ResponseCache maps a normalized query hash to a generated answer.
// Get reports ok=false for missing and expired entries.
type ResponseCache interface {
	Get(ctx context.Context, hash string) (answer string, ok bool, err error)
	Put(ctx context.Context, hash string, answer string) error
}

// SessionStore owns conversation history. History returns (nil, nil) for
// unknown or expired sessions; Append fails with ErrSessionNotFound.
type SessionStore interface {
	Create(ctx context.Context) (string, error)
	Append(ctx context.Context, sessionID, userMessage, botResponse string) (string, error)
	History(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	List(ctx context.Context) ([]models.SessionSummary, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
}

// FeedSource fetches raw articles from upstream news feeds.
type FeedSource interface {
	Fetch(ctx context.Context) ([]models.Article, error)
}
