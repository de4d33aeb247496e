package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Record is what a key maps to: an in-flight marker until the first request
// completes, then the response to replay.
type Record struct {
	Done   bool        `json:"done"`
	Status int         `json:"status,omitempty"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body,omitempty"`
}

type Store interface {
	// Acquire claims key for a new request. It returns the existing record
	// and false when the key is already taken.
	Acquire(ctx context.Context, key string) (*Record, bool, error)
	Complete(ctx context.Context, key string, rec Record) error
	Forget(ctx context.Context, key string) error
}

// DefaultLockTTL bounds how long an in-flight marker blocks a key when the
// first request never completes.
const DefaultLockTTL = 30 * time.Second

type Option func(*options)

type options struct {
	lockTTL time.Duration
}

// WithLockTTL sets the lifetime of the in-flight marker. Completed records
// keep the store's ttl.
func WithLockTTL(d time.Duration) Option { return func(o *options) { o.lockTTL = d } }

func newOptions(ttl time.Duration, opts []Option) options {
	o := options{lockTTL: DefaultLockTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockTTL <= 0 || o.lockTTL > ttl {
		o.lockTTL = ttl
	}
	return o
}

type RedisStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, opts ...Option) *RedisStore {
	o := newOptions(ttl, opts)
	return &RedisStore{rdb: rdb, ttl: ttl, lockTTL: o.lockTTL}
}

func (s *RedisStore) Acquire(ctx context.Context, key string) (*Record, bool, error) {
	pending, _ := json.Marshal(Record{})
	ok, err := s.rdb.SetNX(ctx, key, pending, s.lockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry
		return &Record{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record) error {
	rec.Done = true
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, s.ttl).Err()
}

func (s *RedisStore) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// MemoryStore keeps records in a bounded, expiring LRU for single-instance
// deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	cache   *expirable.LRU[string, memoryEntry]
	lockTTL time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	rec         Record
	lockedUntil time.Time
}

func NewMemoryStore(size int, ttl time.Duration, opts ...Option) *MemoryStore {
	o := newOptions(ttl, opts)
	return &MemoryStore{
		cache:   expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		lockTTL: o.lockTTL,
		now:     time.Now,
	}
}

func (s *MemoryStore) Acquire(_ context.Context, key string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.cache.Get(key); ok && (e.rec.Done || now.Before(e.lockedUntil)) {
		rec := e.rec
		return &rec, false, nil
	}
	s.cache.Add(key, memoryEntry{lockedUntil: now.Add(s.lockTTL)})
	return nil, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Done = true
	s.cache.Add(key, memoryEntry{rec: rec})
	return nil
}

func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	return nil
}
