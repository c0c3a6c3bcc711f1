package session

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/models"
)

const shardCount = 16

// entry guards one session. Appends on different sessions never contend.
type entry struct {
	mu      sync.Mutex
	sess    models.Session
	removed bool
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// MemoryStore keeps sessions in process. Sessions idle for the TTL are gone.
type MemoryStore struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*MemoryStore)

func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *MemoryStore) { s.log = log }
}

func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{ttl: ttl, now: time.Now, log: zap.NewNop()}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*entry)}
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("sessions")
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) expired(sess *models.Session, now time.Time) bool {
	return now.Sub(sess.LastActivityAt) >= s.ttl
}

func (s *MemoryStore) lookup(id string) *entry {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.sessions[id]
}

func (s *MemoryStore) remove(id string, e *entry) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	if sh.sessions[id] == e {
		delete(sh.sessions, id)
	}
	sh.mu.Unlock()
}

func (s *MemoryStore) Create(_ context.Context) (string, error) {
	now := s.now()
	id := uuid.NewString()
	e := &entry{sess: models.Session{
		SessionID:      id,
		CreatedAt:      now,
		LastActivityAt: now,
		Messages:       []models.MessageEntry{},
	}}

	sh := s.shardFor(id)
	sh.mu.Lock()
	sh.sessions[id] = e
	sh.mu.Unlock()

	s.log.Debug("session created", zap.String("session_id", id))
	return id, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID, userMessage, botResponse string) (string, error) {
	e := s.lookup(sessionID)
	if e == nil {
		return "", core.NewSessionNotFoundError(sessionID)
	}

	e.mu.Lock()
	now := s.now()
	if e.removed || s.expired(&e.sess, now) {
		e.removed = true
		e.mu.Unlock()
		s.remove(sessionID, e)
		return "", core.NewSessionNotFoundError(sessionID)
	}

	msg := models.MessageEntry{
		ID:          uuid.NewString(),
		Timestamp:   advance(e.sess.LastActivityAt, now),
		UserMessage: userMessage,
		BotResponse: botResponse,
	}
	e.sess.Messages = append(e.sess.Messages, msg)
	e.sess.LastActivityAt = msg.Timestamp
	e.mu.Unlock()

	return msg.ID, nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) (*models.Session, error) {
	e := s.lookup(sessionID)
	if e == nil {
		return nil, nil
	}

	e.mu.Lock()
	if e.removed || s.expired(&e.sess, s.now()) {
		e.removed = true
		e.mu.Unlock()
		s.remove(sessionID, e)
		return nil, nil
	}
	snap := e.sess.Clone()
	e.mu.Unlock()
	return snap, nil
}

// Delete reports whether a live session was removed.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	e, ok := sh.sessions[sessionID]
	if ok {
		delete(sh.sessions, sessionID)
	}
	sh.mu.Unlock()
	if !ok {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	live := !e.removed && !s.expired(&e.sess, s.now())
	e.removed = true
	return live, nil
}

// List returns live sessions, most recently active first.
func (s *MemoryStore) List(_ context.Context) ([]models.SessionSummary, error) {
	now := s.now()
	var entries []*entry
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.sessions {
			entries = append(entries, e)
		}
		sh.mu.RUnlock()
	}

	out := make([]models.SessionSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed && !s.expired(&e.sess, now) {
			out = append(out, summarize(&e.sess))
		}
		e.mu.Unlock()
	}
	sortSummaries(out)
	return out, nil
}

// CleanupExpired drops idle sessions and returns how many went.
func (s *MemoryStore) CleanupExpired() int {
	now := s.now()
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.sessions {
			e.mu.Lock()
			if e.removed || s.expired(&e.sess, now) {
				e.removed = true
				delete(sh.sessions, id)
				n++
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return n
}

// StartJanitor sweeps idle sessions every interval until ctx ends.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.CleanupExpired(); n > 0 {
					s.log.Debug("idle sessions expired", zap.Int("removed", n))
				}
			}
		}
	}()
}

// Len counts stored sessions, including ones not yet swept.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// advance returns now, or the instant right after last when the clock has
// not moved past it.
func advance(last, now time.Time) time.Time {
	if now.After(last) {
		return now
	}
	return last.Add(time.Nanosecond)
}

func summarize(sess *models.Session) models.SessionSummary {
	return models.SessionSummary{
		SessionID:      sess.SessionID,
		CreatedAt:      sess.CreatedAt,
		LastActivityAt: sess.LastActivityAt,
		MessageCount:   len(sess.Messages),
	}
}

func sortSummaries(out []models.SessionSummary) {
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
}

var _ core.SessionStore = (*MemoryStore)(nil)
