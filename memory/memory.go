package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/logging"
)

// Entry is one stored value with its lifecycle metadata. Entries may carry
// optional task/agent tags enabling bulk invalidation.
type Entry struct {
	Key       string        `json:"key"`
	Value     string        `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
	TaskID    string        `json:"task_id,omitempty"`
	AgentID   string        `json:"agent_id,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
// A zero TTL never expires.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// DurableStore is the backing tier behind the in-memory cache. Implementations
// must provide atomic per-key semantics; cross-key atomicity is not required.
type DurableStore interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, key string) (Entry, bool, error)
	Delete(ctx context.Context, key string) error
	DeleteByTag(ctx context.Context, tag string) error
}

// NullStore is a DurableStore that retains nothing. Used when no durable
// backend is configured; the service degrades to a pure bounded cache.
type NullStore struct{}

// Put discards the entry.
func (NullStore) Put(context.Context, Entry) error { return nil }

// Get always misses.
func (NullStore) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }

// Delete is a no-op.
func (NullStore) Delete(context.Context, string) error { return nil }

// DeleteByTag is a no-op.
func (NullStore) DeleteByTag(context.Context, string) error { return nil }

// SetOption tags an entry at Set time.
type SetOption func(*Entry)

// WithTaskID tags the entry with a task id for bulk invalidation.
func WithTaskID(taskID string) SetOption {
	return func(e *Entry) { e.TaskID = taskID }
}

// WithAgentID tags the entry with an agent id for bulk invalidation.
func WithAgentID(agentID string) SetOption {
	return func(e *Entry) { e.AgentID = agentID }
}

// Options configure the Service.
type Options struct {
	// Capacity bounds the in-memory tier. Exceeding it evicts oldest-first.
	Capacity int
	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration
	// Durable is the write-through backing store.
	Durable DurableStore
	// Logger receives cache diagnostics.
	Logger logging.Logger
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Service is the memory/persistence façade. All methods are safe for
// concurrent use; per-key get/set/delete are atomic under one mutex (the
// store is small and bounded, sharding is not warranted here).
type Service struct {
	mu         sync.Mutex
	entries    map[string]Entry
	order      []string // insertion order, oldest first
	capacity   int
	defaultTTL time.Duration
	durable    DurableStore
	logger     logging.Logger
	now        func() time.Time
}

// New constructs a Service with optional overrides. Defaults: capacity 1000,
// TTL 30 minutes, NullStore, NoOp logger.
func New(optFns ...func(o *Options)) *Service {
	opts := Options{
		Capacity:   1000,
		DefaultTTL: 30 * time.Minute,
		Durable:    NullStore{},
		Logger:     logging.NoOpLogger{},
		Clock:      time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		entries:    make(map[string]Entry),
		capacity:   opts.Capacity,
		defaultTTL: opts.DefaultTTL,
		durable:    opts.Durable,
		logger:     opts.Logger,
		now:        opts.Clock,
	}
}

// Set stores the value under key with the given ttl (<= 0 uses the default),
// refreshing CreatedAt when the key already exists, and writes through to the
// durable store. Durable write failures are logged, not propagated: the cache
// remains authoritative for the entry's lifetime.
func (s *Service) Set(ctx context.Context, key, value string, ttl time.Duration, optFns ...SetOption) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	e := Entry{Key: key, Value: value, CreatedAt: s.now(), TTL: ttl}
	for _, fn := range optFns {
		fn(&e)
	}

	s.mu.Lock()
	if _, exists := s.entries[key]; exists {
		s.removeFromOrder(key)
	}
	s.entries[key] = e
	s.order = append(s.order, key)
	s.evictLocked()
	s.mu.Unlock()

	if err := s.durable.Put(ctx, e); err != nil {
		s.logger.Warn("memory write-through failed key=%s: %v", key, err)
	}
}

// Get returns the value for key, or false on miss. Expired cache entries are
// treated as misses (lazy expiry); on cache miss the durable store is
// consulted and a live entry repopulates the cache.
func (s *Service) Get(ctx context.Context, key string) (string, bool) {
	now := s.now()

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		if !e.Expired(now) {
			s.mu.Unlock()
			return e.Value, true
		}
		delete(s.entries, key)
		s.removeFromOrder(key)
	}
	s.mu.Unlock()

	e, ok, err := s.durable.Get(ctx, key)
	if err != nil {
		s.logger.Warn("memory durable read failed key=%s: %v", key, err)
		return "", false
	}
	if !ok || e.Expired(now) {
		return "", false
	}

	s.mu.Lock()
	s.entries[key] = e
	s.removeFromOrder(key)
	s.order = append(s.order, key)
	s.evictLocked()
	s.mu.Unlock()
	return e.Value, true
}

// ClearByTask removes every entry tagged with the given task id from both tiers.
func (s *Service) ClearByTask(ctx context.Context, taskID string) {
	s.clearBy(ctx, "task:"+taskID, func(e Entry) bool { return e.TaskID == taskID })
}

// ClearByAgent removes every entry tagged with the given agent id from both tiers.
func (s *Service) ClearByAgent(ctx context.Context, agentID string) {
	s.clearBy(ctx, "agent:"+agentID, func(e Entry) bool { return e.AgentID == agentID })
}

// Len returns the number of entries physically present in the cache,
// including any not yet lazily expired.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) clearBy(ctx context.Context, tag string, match func(Entry) bool) {
	s.mu.Lock()
	for key, e := range s.entries {
		if match(e) {
			delete(s.entries, key)
			s.removeFromOrder(key)
		}
	}
	s.mu.Unlock()

	if err := s.durable.DeleteByTag(ctx, tag); err != nil {
		s.logger.Warn("memory durable clear failed tag=%s: %v", tag, err)
	}
}

// evictLocked drops oldest entries until the capacity bound holds.
// Caller must hold s.mu.
func (s *Service) evictLocked() {
	for s.capacity > 0 && len(s.entries) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
		s.logger.Debug("memory evicted key=%s", oldest)
	}
}

// removeFromOrder drops key from the insertion order slice. Caller must hold s.mu.
func (s *Service) removeFromOrder(key string) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
