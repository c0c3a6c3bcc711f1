package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := NewSessionNotFoundError("abc")

	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.False(t, errors.Is(err, ErrNotReady))
	assert.Contains(t, err.Error(), "abc")

	wrapped := fmt.Errorf("append: %w", err)
	assert.True(t, errors.Is(wrapped, ErrSessionNotFound))
	assert.Equal(t, KindSessionNotFound, KindOf(wrapped))
}

func TestNewPipelineError(t *testing.T) {
	t.Run("keeps typed service error", func(t *testing.T) {
		cause := NewGenerationError("gemini generate", errors.New("quota"))
		err := NewPipelineError(StageGeneration, cause)

		assert.True(t, errors.Is(err, ErrPipeline))
		assert.True(t, errors.Is(err, ErrGenerationService))
		assert.Equal(t, KindPipeline, KindOf(err))
		assert.Equal(t, StageGeneration, StageOf(err))
		assert.Contains(t, err.Error(), "quota")
	})

	t.Run("classifies foreign errors by stage", func(t *testing.T) {
		err := NewPipelineError(StageRetrieval, context.DeadlineExceeded)

		assert.True(t, errors.Is(err, ErrIndexUnavailable))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, StageRetrieval, StageOf(err))
	})

	t.Run("embedding stage", func(t *testing.T) {
		err := NewPipelineError(StageEmbedding, errors.New("boom"))
		assert.True(t, errors.Is(err, ErrEmbeddingService))
	})
}

func TestKindOf_Foreign(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "", StageOf(errors.New("plain")))
	assert.Equal(t, "", StageOf(nil))
}
