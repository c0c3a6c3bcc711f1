package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

// QueryAnswerer is the part of RAGService the chat flow needs.
type QueryAnswerer interface {
	CheckReady() error
	AnswerQuery(ctx context.Context, message string) (*models.QueryResult, error)
}

// ChatService answers a message inside a session and records the exchange.
type ChatService struct {
	rag      QueryAnswerer
	sessions core.SessionStore
	now      func() time.Time
	log      *zap.Logger
}

func NewChatService(rag QueryAnswerer, sessions core.SessionStore, log *zap.Logger) *ChatService {
	return &ChatService{rag: rag, sessions: sessions, now: time.Now, log: log.Named("chat")}
}

func (s *ChatService) Send(ctx context.Context, sessionID, message string) (*models.ChatReply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(message) == "" {
		return nil, core.NewValidationError("sessionId and message are required")
	}

	if err := s.rag.CheckReady(); err != nil {
		return nil, err
	}

	// Unknown sessions are rejected before the pipeline is paid for.
	sess, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, core.NewSessionNotFoundError(sessionID)
	}

	res, err := s.rag.AnswerQuery(ctx, message)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Append(ctx, sessionID, message, res.Answer); err != nil {
		return nil, err
	}

	s.log.Debug("chat answered",
		zap.String("session_id", sessionID),
		zap.Bool("cached", res.Cached),
		zap.Int("citations", len(res.Citations)),
	)

	cites := res.Citations
	if cites == nil {
		cites = []models.Citation{}
	}
	return &models.ChatReply{
		Message:          res.Answer,
		RelevantArticles: cites,
		Timestamp:        s.now().UTC().Format(time.RFC3339),
	}, nil
}
