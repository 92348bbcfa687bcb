package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Store is the uniform contract implemented by every level backend. Stores
// are byte-transparent: Get returns exactly the bytes previously passed to
// Put for the key. Serialization happens once, coordinator-side.
//
// A ttl <= 0 on Put means the entry never expires. An expired entry must
// never be returned by Get or Has; it is lazily evicted on first access if
// a background sweep has not already purged it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Forget(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Has(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context) (SizeInfo, error)
	Close() error
}

// expiryAware is implemented by stores that can report an entry's remaining
// lifetime. bounded is false when the entry has no expiry; a bounded
// remaining <= 0 means the entry is already gone or expired.
type expiryAware interface {
	ExpiresIn(ctx context.Context, key string) (remaining time.Duration, bounded bool, err error)
}

// MaintainableStore is implemented by durable stores that support the
// maintenance catalog. Cleanup returns the number of purged entries.
type MaintainableStore interface {
	Store
	Cleanup(ctx context.Context) (int64, error)
	Optimize(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Reindex(ctx context.Context) error
}

// SizeInfo describes a store's current footprint.
type SizeInfo struct {
	Count int64
	Bytes int64
}

// Encode serializes a value for storage using msgpack.
func Encode(val any) ([]byte, error) {
	data, err := msgpack.Marshal(val)
	if err != nil {
		return nil, errors.Wrap(err, "cache: encode value")
	}
	return data, nil
}

// Decode deserializes stored bytes into out.
func Decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "cache: decode value")
	}
	return nil
}

// entry is the in-process representation used by the request and local
// memory stores. A zero expiresAt means the entry never expires.
type entry struct {
	val       []byte
	storedAt  time.Time
	expiresAt time.Time
}

func newEntry(val []byte, ttl time.Duration) *entry {
	e := &entry{val: val, storedAt: time.Now()}
	if ttl > 0 {
		e.expiresAt = e.storedAt.Add(ttl)
	}
	return e
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}
