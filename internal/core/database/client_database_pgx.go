package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/config"
	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

type DatabaseClient struct {
	db  *sql.DB
	dim int
	log *zap.Logger
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return NewDatabaseClientFromDB(db, cfg.EmbedDim, log), nil
}

// NewDatabaseClientFromDB wraps an already opened handle.
func NewDatabaseClientFromDB(db *sql.DB, dim int, log *zap.Logger) *DatabaseClient {
	if dim <= 0 {
		dim = core.EmbeddingDimension
	}
	return &DatabaseClient{db: db, dim: dim, log: log.Named("pgvector")}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (c *DatabaseClient) EnsureCollection(ctx context.Context) error {
	if err := EnsureBootstrapped(ctx, c.db, schemaVersion, c.log); err != nil {
		return core.NewIndexError("bootstrap "+CollectionName, err)
	}
	return nil
}

// Search returns the nearest articles by cosine distance. Score is cosine
// similarity (1 - distance), rank is 1-based.
func (c *DatabaseClient) Search(ctx context.Context, vector []float32, limit int) ([]models.RetrievedMatch, error) {
	if len(vector) != c.dim {
		return nil, core.NewIndexError(fmt.Sprintf("query vector has dimension %d, want %d", len(vector), c.dim), nil)
	}
	if limit <= 0 {
		return nil, nil
	}

	const q = `
		SELECT id, run_id, title, content, url, published_at, source, 1 - (embedding <=> $1) AS score
		FROM news_articles
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, core.NewIndexError("search "+CollectionName, err)
	}
	defer rows.Close()

	var out []models.RetrievedMatch
	for rows.Next() {
		var m models.RetrievedMatch
		if err := rows.Scan(
			&m.Article.ID, &m.Article.RunID, &m.Article.Title, &m.Article.Content,
			&m.Article.URL, &m.Article.PublishedAt, &m.Article.Source, &m.Score,
		); err != nil {
			return nil, core.NewIndexError("scan match", err)
		}
		m.Rank = len(out) + 1
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewIndexError("iterate matches", err)
	}
	return out, nil
}

// UpsertArticles inserts articles in a single transaction. Every point gets a
// fresh id, so re-ingesting the same article adds a new point.
func (c *DatabaseClient) UpsertArticles(ctx context.Context, runID string, articles []models.Article, vectors [][]float32) error {
	if len(articles) != len(vectors) {
		return fmt.Errorf("upsert: %d articles but %d vectors", len(articles), len(vectors))
	}
	if len(articles) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return core.NewIndexError("begin upsert", err)
	}

	const q = `
		INSERT INTO news_articles
			(id, run_id, title, content, url, published_at, source, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			url = EXCLUDED.url,
			published_at = EXCLUDED.published_at,
			source = EXCLUDED.source,
			embedding = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return core.NewIndexError("prepare upsert", err)
	}
	defer stmt.Close()

	for i := range articles {
		a := &articles[i]
		if len(vectors[i]) != c.dim {
			_ = tx.Rollback()
			return fmt.Errorf("upsert: vector %d has dimension %d, want %d", i, len(vectors[i]), c.dim)
		}
		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			id, runID, a.Title, a.Content, a.URL, a.PublishedAt, a.Source, pgvector.NewVector(vectors[i]),
		); err != nil {
			_ = tx.Rollback()
			return core.NewIndexError("insert article", err)
		}
		a.ID = id
		a.RunID = runID
	}
	if err := tx.Commit(); err != nil {
		return core.NewIndexError("commit upsert", err)
	}
	c.log.Info("articles upserted", zap.String("run_id", runID), zap.Int("count", len(articles)))
	return nil
}

func (c *DatabaseClient) CountArticles(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM news_articles`).Scan(&n); err != nil {
		return 0, core.NewIndexError("count "+CollectionName, err)
	}
	return n, nil
}

// PruneRuns deletes every point that does not belong to keepRunID and
// returns the superseded run ids in ascending order.
func (c *DatabaseClient) PruneRuns(ctx context.Context, keepRunID string) ([]string, int64, error) {
	if keepRunID == "" {
		return nil, 0, errors.New("prune: empty run id")
	}

	const q = `
		WITH gone AS (
			DELETE FROM news_articles WHERE run_id <> $1 RETURNING run_id
		)
		SELECT run_id, count(*) FROM gone GROUP BY run_id ORDER BY run_id
	`
	rows, err := c.db.QueryContext(ctx, q, keepRunID)
	if err != nil {
		return nil, 0, core.NewIndexError("prune "+CollectionName, err)
	}
	defer rows.Close()

	var (
		runIDs []string
		total  int64
	)
	for rows.Next() {
		var (
			id string
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, 0, core.NewIndexError("scan pruned run", err)
		}
		runIDs = append(runIDs, id)
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, core.NewIndexError("iterate pruned runs", err)
	}
	if len(runIDs) > 0 {
		c.log.Info("previous runs pruned", zap.Strings("run_ids", runIDs), zap.Int64("articles", total))
	}
	return runIDs, total, nil
}

// Ping reports whether the database is reachable.
func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

var (
	_ core.ArticleStore = (*DatabaseClient)(nil)
	_ core.Pinger       = (*DatabaseClient)(nil)
)
