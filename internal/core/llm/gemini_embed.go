package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/markdave123-py/newsdesk/internal/core"
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	opts      EmbedOptions
	log       *zap.Logger
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, opts EmbedOptions, log *zap.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, opts: opts.withDefaults(), log: log.Named("gemini-embed")}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Embed sends texts to Gemini in batches of at most opts.BatchSize.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := g.client.EmbeddingModel(g.modelName)

	return embedInBatches(ctx, texts, g.opts, func(ctx context.Context, texts []string) ([][]float32, error) {
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			g.log.Warn("batch embed failed", zap.Int("batch_size", len(texts)), zap.Error(err))
			return nil, core.NewEmbeddingError("gemini batch embed", err)
		}

		return vectorsFromResponse(resp)
	})
}

// vectorsFromResponse keeps the upstream order. Count and dimension are
// checked by embedInBatches.
func vectorsFromResponse(resp *genai.BatchEmbedContentsResponse) ([][]float32, error) {
	if resp == nil {
		return nil, core.NewEmbeddingError("gemini returned no embeddings", nil)
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, core.NewEmbeddingError(fmt.Sprintf("gemini embedding %d missing", i), nil)
		}
		out = append(out, e.Values)
	}
	return out, nil
}

var _ core.EmbeddingClient = (*GeminiEmbedder)(nil)
