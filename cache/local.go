package cache

import (
	"context"
	"sync/atomic"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

// localMemoryStore is the MEMORY level for deployments without Redis: a
// size-bounded LRU shared across requests in one process. Per-entry TTLs
// are tracked on the entry itself; the LRU's own TTL (when configured)
// acts as an outer bound so abandoned entries still age out.
type localMemoryStore struct {
	lru       *expirable.LRU[string, *entry]
	evictions atomic.Int64
}

var _ Store = (*localMemoryStore)(nil)

// NewLocalMemoryStore returns an in-process MEMORY-level store holding at
// most maxEntries values. maxTTL bounds the lifetime of every entry
// regardless of its own TTL; pass 0 for no outer bound.
func NewLocalMemoryStore(maxEntries int, maxTTL time.Duration) Store {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	s := &localMemoryStore{}
	s.lru = expirable.NewLRU[string, *entry](maxEntries, func(string, *entry) {
		s.evictions.Add(1)
	}, maxTTL)
	return s
}

func (s *localMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (s *localMemoryStore) Put(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.lru.Add(key, newEntry(val, ttl))
	return nil
}

func (s *localMemoryStore) Forget(_ context.Context, key string) (bool, error) {
	return s.lru.Remove(key), nil
}

func (s *localMemoryStore) Flush(_ context.Context) error {
	s.lru.Purge()
	return nil
}

func (s *localMemoryStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *localMemoryStore) ExpiresIn(_ context.Context, key string) (time.Duration, bool, error) {
	e, ok := s.lru.Peek(key)
	if !ok {
		return 0, true, nil
	}
	if e.expiresAt.IsZero() {
		return 0, false, nil
	}
	return time.Until(e.expiresAt), true, nil
}

func (s *localMemoryStore) Size(_ context.Context) (SizeInfo, error) {
	var info SizeInfo
	now := time.Now()
	for _, key := range s.lru.Keys() {
		e, ok := s.lru.Peek(key)
		if !ok || e.expired(now) {
			continue
		}
		info.Count++
		info.Bytes += int64(len(e.val))
	}
	return info, nil
}

// Evictions returns the number of entries dropped by LRU pressure or the
// outer TTL bound.
func (s *localMemoryStore) Evictions() int64 {
	return s.evictions.Load()
}

func (s *localMemoryStore) Close() error {
	s.lru.Purge()
	return nil
}
