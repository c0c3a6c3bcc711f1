package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
)

// JinaEmbedder calls the Jina embeddings REST API.
type JinaEmbedder struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	modelName  string
	opts       EmbedOptions
	log        *zap.Logger
}

type jinaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type jinaResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewJinaEmbedder(apiURL, apiKey, modelName string, opts EmbedOptions, log *zap.Logger) *JinaEmbedder {
	if apiURL == "" {
		apiURL = "https://api.jina.ai/v1/embeddings"
	}
	if modelName == "" {
		modelName = "jina-embeddings-v2-base-en"
	}
	return &JinaEmbedder{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		apiKey:     apiKey,
		modelName:  modelName,
		opts:       opts.withDefaults(),
		log:        log.Named("jina-embed"),
	}
}

func (j *JinaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return embedInBatches(ctx, texts, j.opts, j.embedBatch)
}

func (j *JinaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(jinaRequest{Model: j.modelName, Input: texts})
	if err != nil {
		return nil, core.NewEmbeddingError("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewEmbeddingError("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+j.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, core.NewEmbeddingError("jina request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		j.log.Warn("jina returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return nil, core.NewEmbeddingError(fmt.Sprintf("jina status %d", resp.StatusCode), nil)
	}

	var parsed jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, core.NewEmbeddingError("decode response", err)
	}

	sort.SliceStable(parsed.Data, func(a, b int) bool { return parsed.Data[a].Index < parsed.Data[b].Index })
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

var _ core.EmbeddingClient = (*JinaEmbedder)(nil)
