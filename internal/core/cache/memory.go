package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/core"
)

const shardCount = 16

type entry struct {
	answer   string
	storedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// MemoryCache is an in-process TTL cache of generated answers. An entry is
// served while its age is below the TTL; Put on an existing key restarts it.
type MemoryCache struct {
	shards     [shardCount]*shard
	active     uint32
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	log        *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*MemoryCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) { c.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *MemoryCache) { c.log = log }
}

// NewMemoryCache builds a cache. maxEntries <= 0 means unbounded. A bound
// smaller than the shard count spreads keys over maxEntries shards only, so
// the total never exceeds it.
func NewMemoryCache(ttl time.Duration, maxEntries int, opts ...Option) *MemoryCache {
	active := uint32(shardCount)
	if maxEntries > 0 && maxEntries < shardCount {
		active = uint32(maxEntries)
	}
	c := &MemoryCache{
		active:     active,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]entry)}
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("cache")
	return c
}

func (c *MemoryCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%c.active]
}

func (c *MemoryCache) expired(e entry, now time.Time) bool {
	return now.Sub(e.storedAt) >= c.ttl
}

func (c *MemoryCache) Get(_ context.Context, hash string) (string, bool, error) {
	s := c.shardFor(hash)
	now := c.now()

	s.mu.RLock()
	e, ok := s.entries[hash]
	s.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return "", false, nil
	}
	if c.expired(e, now) {
		s.mu.Lock()
		if cur, still := s.entries[hash]; still && c.expired(cur, now) {
			delete(s.entries, hash)
		}
		s.mu.Unlock()
		c.misses.Add(1)
		return "", false, nil
	}
	c.hits.Add(1)
	return e.answer, true, nil
}

func (c *MemoryCache) Put(_ context.Context, hash string, answer string) error {
	s := c.shardFor(hash)
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[hash]; !exists && c.maxEntries > 0 {
		if len(s.entries) >= c.maxEntries/int(c.active) {
			c.evictLocked(s, now)
		}
	}
	s.entries[hash] = entry{answer: answer, storedAt: now}
	return nil
}

// evictLocked drops expired entries, or the oldest one if none expired.
func (c *MemoryCache) evictLocked(s *shard, now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
		removed   bool
	)
	for k, e := range s.entries {
		if c.expired(e, now) {
			delete(s.entries, k)
			removed = true
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
		}
	}
	if !removed && oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// CleanupExpired removes every expired entry and returns how many went.
func (c *MemoryCache) CleanupExpired() int {
	now := c.now()
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if c.expired(e, now) {
				delete(s.entries, k)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}

// StartCleanupWorker sweeps expired entries every interval until ctx ends.
func (c *MemoryCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
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
				if n := c.CleanupExpired(); n > 0 {
					c.log.Debug("expired answers swept", zap.Int("removed", n))
				}
			}
		}
	}()
}

func (c *MemoryCache) Stats() Stats {
	st := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	for _, s := range c.shards {
		s.mu.RLock()
		st.Entries += len(s.entries)
		s.mu.RUnlock()
	}
	return st
}

var _ core.ResponseCache = (*MemoryCache)(nil)
