package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/newsdesk/internal/core"
)

// EmbedOptions tunes the batching contract shared by all embedders.
//
// Dim:        expected vector size; every returned vector is checked.
// BatchSize:  max texts per upstream call (the upstream limit is 10).
// BatchDelay: pause between consecutive upstream calls.
// Timeout:    bound on a single upstream call.
type EmbedOptions struct {
	Dim        int
	BatchSize  int
	BatchDelay time.Duration
	Timeout    time.Duration
}

func (o EmbedOptions) withDefaults() EmbedOptions {
	if o.Dim <= 0 {
		o.Dim = core.EmbeddingDimension
	}
	if o.BatchSize <= 0 || o.BatchSize > 10 {
		o.BatchSize = 10
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return o
}

type embedCall func(ctx context.Context, batch []string) ([][]float32, error)

// embedInBatches splits texts into upstream-sized batches, waits BatchDelay
// between them and validates count and dimensionality of the result.
func embedInBatches(ctx context.Context, texts []string, opts EmbedOptions, call embedCall) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += opts.BatchSize {
		if start > 0 && opts.BatchDelay > 0 {
			timer := time.NewTimer(opts.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, core.NewEmbeddingError("cancelled between batches", ctx.Err())
			case <-timer.C:
			}
		}

		end := min(start+opts.BatchSize, len(texts))
		batch := texts[start:end]

		callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		vecs, err := call(callCtx, batch)
		cancel()
		if err != nil {
			if core.KindOf(err) == core.KindEmbeddingService {
				return nil, err
			}
			return nil, core.NewEmbeddingError(fmt.Sprintf("batch %d-%d", start, end), err)
		}
		if len(vecs) != len(batch) {
			return nil, core.NewEmbeddingError(fmt.Sprintf("embed size mismatch: got %d want %d", len(vecs), len(batch)), nil)
		}
		for i, v := range vecs {
			if len(v) != opts.Dim {
				return nil, core.NewEmbeddingError(fmt.Sprintf("vector %d has dimension %d, want %d", start+i, len(v), opts.Dim), nil)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
