package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

const (
	keyPrefix        = "session:"
	maxAppendRetries = 100
)

// RedisStore keeps sessions as JSON documents whose key TTL is the idle
// timeout. Appends are optimistic transactions on the session key.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
	log *zap.Logger
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now, log: log.Named("sessions")}
}

func key(id string) string { return keyPrefix + id }

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	now := s.now().UTC()
	sess := models.Session{
		SessionID:      uuid.NewString(),
		CreatedAt:      now,
		LastActivityAt: now,
		Messages:       []models.MessageEntry{},
	}
	body, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, key(sess.SessionID), body, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set session: %w", err)
	}
	s.log.Debug("session created", zap.String("session_id", sess.SessionID))
	return sess.SessionID, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID, userMessage, botResponse string) (string, error) {
	k := key(sessionID)
	var msgID string

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return core.NewSessionNotFoundError(sessionID)
		}
		if err != nil {
			return fmt.Errorf("redis get session: %w", err)
		}

		var sess models.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("decode session %s: %w", sessionID, err)
		}

		msg := models.MessageEntry{
			ID:          uuid.NewString(),
			Timestamp:   advance(sess.LastActivityAt, s.now().UTC()),
			UserMessage: userMessage,
			BotResponse: botResponse,
		}
		sess.Messages = append(sess.Messages, msg)
		sess.LastActivityAt = msg.Timestamp

		body, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, body, s.ttl)
			return nil
		})
		if err == nil {
			msgID = msg.ID
		}
		return err
	}

	for i := 0; i < maxAppendRetries; i++ {
		err := s.rdb.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return "", err
		}
		return msgID, nil
	}
	return "", fmt.Errorf("append to session %s: too much contention", sessionID)
}

func (s *RedisStore) History(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := s.rdb.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Del(ctx, key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del session: %w", err)
	}
	return n > 0, nil
}

// List scans session keys. Keys expiring mid-scan are skipped.
func (s *RedisStore) List(ctx context.Context) ([]models.SessionSummary, error) {
	var out []models.SessionSummary
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sess, err := s.History(ctx, iter.Val()[len(keyPrefix):])
		if err != nil {
			return nil, err
		}
		if sess == nil {
			continue
		}
		out = append(out, summarize(sess))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan sessions: %w", err)
	}
	sortSummaries(out)
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

var (
	_ core.SessionStore = (*RedisStore)(nil)
	_ core.Pinger       = (*RedisStore)(nil)
)
