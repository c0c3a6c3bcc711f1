package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the transport can map them without
// inspecting messages.
type ErrorKind string

const (
	KindNotReady          ErrorKind = "not_ready"
	KindValidation        ErrorKind = "validation"
	KindSessionNotFound   ErrorKind = "session_not_found"
	KindEmbeddingService  ErrorKind = "embedding_service"
	KindIndexUnavailable  ErrorKind = "index_unavailable"
	KindGenerationService ErrorKind = "generation_service"
	KindPipeline          ErrorKind = "pipeline"
	KindInternal          ErrorKind = "internal"
)

// Pipeline stage names carried by pipeline errors.
const (
	StageEmbedding  = "embedding"
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
)

// Error is the single error type of the query core.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += "[" + e.Stage + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrNotReady          = &Error{Kind: KindNotReady, Message: "pipeline not initialized"}
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrSessionNotFound   = &Error{Kind: KindSessionNotFound, Message: "session not found"}
	ErrEmbeddingService  = &Error{Kind: KindEmbeddingService, Message: "embedding service failed"}
	ErrIndexUnavailable  = &Error{Kind: KindIndexUnavailable, Message: "vector index unavailable"}
	ErrGenerationService = &Error{Kind: KindGenerationService, Message: "generation service failed"}
	ErrPipeline          = &Error{Kind: KindPipeline, Message: "query pipeline failed"}
	ErrInternal          = &Error{Kind: KindInternal, Message: "internal error"}
)

func NewNotReadyError(state string) error {
	return &Error{Kind: KindNotReady, Message: fmt.Sprintf("pipeline is %s", state)}
}

func NewValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewSessionNotFoundError(sessionID string) error {
	return &Error{Kind: KindSessionNotFound, Message: fmt.Sprintf("session %s not found", sessionID)}
}

func NewEmbeddingError(message string, err error) error {
	return &Error{Kind: KindEmbeddingService, Message: message, Err: err}
}

func NewIndexError(message string, err error) error {
	return &Error{Kind: KindIndexUnavailable, Message: message, Err: err}
}

func NewGenerationError(message string, err error) error {
	return &Error{Kind: KindGenerationService, Message: message, Err: err}
}

// NewPipelineError wraps a stage failure. Errors that are not already a
// service error are classified by stage first.
func NewPipelineError(stage string, err error) error {
	if KindOf(err) == KindInternal {
		switch stage {
		case StageEmbedding:
			err = NewEmbeddingError("embedding failed", err)
		case StageRetrieval:
			err = NewIndexError("search failed", err)
		case StageGeneration:
			err = NewGenerationError("generation failed", err)
		}
	}
	return &Error{Kind: KindPipeline, Stage: stage, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StageOf returns the failing stage of a pipeline error, or "".
func StageOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Stage != "" {
			return e.Stage
		}
		err = e.Err
	}
	return ""
}
