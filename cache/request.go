package cache

import (
	"context"
	"time"
)

// requestStore is the REQUEST level: a plain map scoped to one logical
// inbound call. It is single-threaded by contract (one store per call, no
// sharing), so there is no locking. Flush runs at the call boundary.
type requestStore struct {
	entries map[string]*entry
}

var _ Store = (*requestStore)(nil)

// NewRequestStore returns a fresh REQUEST-level store. Callers create one
// per inbound request and flush it when the request ends.
func NewRequestStore() Store {
	return &requestStore{entries: make(map[string]*entry)}
}

func (s *requestStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (s *requestStore) Put(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.entries[key] = newEntry(val, ttl)
	return nil
}

func (s *requestStore) Forget(_ context.Context, key string) (bool, error) {
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

func (s *requestStore) Flush(_ context.Context) error {
	s.entries = make(map[string]*entry)
	return nil
}

func (s *requestStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *requestStore) ExpiresIn(_ context.Context, key string) (time.Duration, bool, error) {
	e, ok := s.entries[key]
	if !ok {
		return 0, true, nil
	}
	if e.expiresAt.IsZero() {
		return 0, false, nil
	}
	return time.Until(e.expiresAt), true, nil
}

func (s *requestStore) Size(_ context.Context) (SizeInfo, error) {
	var info SizeInfo
	now := time.Now()
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		info.Count++
		info.Bytes += int64(len(e.val))
	}
	return info, nil
}

func (s *requestStore) Close() error {
	s.entries = nil
	return nil
}
