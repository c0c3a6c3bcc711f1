package core

import (
	"context"

	"github.com/markdave123-py/newsdesk/internal/models"
)

// EmbeddingDimension is the fixed vector size of the news_articles collection.
const EmbeddingDimension = 768

// EmbeddingClient turns texts into vectors, one per input, in input order.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex returns the nearest articles to a vector, highest score first.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int) ([]models.RetrievedMatch, error)
}

// GenerationClient produces an answer for an assembled grounding prompt.
type GenerationClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
