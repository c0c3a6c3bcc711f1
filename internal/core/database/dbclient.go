package db

import "github.com/markdave123-py/newsdesk/internal/core"

// CollectionName is the fixed name of the article vector collection.
const CollectionName = "news_articles"

// DbClient is the pgvector-backed article collection.
type DbClient interface {
	core.ArticleStore
}
