package services

import (
	"context"
	"strings"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

type SessionService struct {
	store core.SessionStore
}

func NewSessionService(store core.SessionStore) *SessionService {
	return &SessionService{store: store}
}

func (s *SessionService) Create(ctx context.Context) (string, error) {
	return s.store.Create(ctx)
}

// History fails with a session-not-found error for unknown or expired ids.
func (s *SessionService) History(ctx context.Context, sessionID string) (*models.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, core.NewValidationError("sessionId is required")
	}
	sess, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, core.NewSessionNotFoundError(sessionID)
	}
	return sess, nil
}

func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return core.NewValidationError("sessionId is required")
	}
	ok, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewSessionNotFoundError(sessionID)
	}
	return nil
}

func (s *SessionService) List(ctx context.Context) ([]models.SessionSummary, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.SessionSummary{}
	}
	return list, nil
}
