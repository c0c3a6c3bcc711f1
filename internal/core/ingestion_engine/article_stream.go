package ingestion_engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/newsdesk/internal/models"
)

// streamArticles emits articles one by one on a bounded channel.
func streamArticles(ctx context.Context, g *errgroup.Group, articles []models.Article) <-chan models.Article {
	out := make(chan models.Article, 8)

	g.Go(func() error {
		defer close(out)
		for _, a := range articles {
			select {
			case out <- a:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	return out
}

// streamBatches groups incoming articles into batches of at most size.
// The final partial batch is flushed when the input closes.
func streamBatches(ctx context.Context, g *errgroup.Group, in <-chan models.Article, size int) <-chan []models.Article {
	out := make(chan []models.Article, 2)

	g.Go(func() error {
		defer close(out)

		buf := make([]models.Article, 0, size)
		flush := func() error {
			if len(buf) == 0 {
				return nil
			}
			batch := buf
			buf = make([]models.Article, 0, size)
			select {
			case out <- batch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for a := range in {
			buf = append(buf, a)
			if len(buf) >= size {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})
	return out
}
