package ingestion_engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

var _ core.FeedSource = (*FeedScraper)(nil)

const defaultSource = "RSS"

// FeedScraper reads RSS/Atom feeds sequentially with a pause between feeds.
// A feed that fails to load is skipped.
type FeedScraper struct {
	urls      []string
	itemLimit int
	delay     time.Duration
	parser    *gofeed.Parser
	log       *zap.Logger
}

func NewFeedScraper(urls []string, itemLimit int, delay time.Duration, log *zap.Logger) *FeedScraper {
	if itemLimit <= 0 {
		itemLimit = 20
	}
	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: 30 * time.Second}
	fp.UserAgent = "newsdesk/1.0"
	return &FeedScraper{
		urls:      urls,
		itemLimit: itemLimit,
		delay:     delay,
		parser:    fp,
		log:       log.Named("feeds"),
	}
}

func (s *FeedScraper) Fetch(ctx context.Context) ([]models.Article, error) {
	var all []models.Article
	for i, u := range s.urls {
		if i > 0 && s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return all, ctx.Err()
			}
		}

		s.log.Info("scraping feed", zap.String("url", u))
		articles, err := s.fetchOne(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			s.log.Warn("feed skipped", zap.String("url", u), zap.Error(err))
			continue
		}
		all = append(all, articles...)
	}
	s.log.Info("feeds scraped", zap.Int("articles", len(all)), zap.Int("feeds", len(s.urls)))
	return all, nil
}

func (s *FeedScraper) fetchOne(ctx context.Context, url string) ([]models.Article, error) {
	feed, err := s.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = defaultSource
	}

	out := make([]models.Article, 0, min(len(feed.Items), s.itemLimit))
	for i, item := range feed.Items {
		if i >= s.itemLimit {
			break
		}
		content := item.Description
		if strings.TrimSpace(content) == "" {
			content = item.Content
		}
		out = append(out, models.Article{
			Title:       strings.TrimSpace(item.Title),
			Content:     strings.TrimSpace(content),
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: item.Published,
			Source:      source,
		})
	}
	return out, nil
}
