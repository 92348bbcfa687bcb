package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultQueryTimeout is the per-operation timeout for stores that perform
// I/O (Redis, SQLite). Prevents indefinite hangs on slow or unresponsive
// backends.
const DefaultQueryTimeout = 5 * time.Second

// storeConfig holds the resolved tuning for an I/O-backed store.
type storeConfig struct {
	queryTimeout time.Duration
	expiryCheck  time.Duration
	keyPrefix    string
}

// StoreOption tunes an I/O-backed store.
type StoreOption func(*storeConfig)

func defaultStoreConfig() storeConfig {
	return storeConfig{
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
	}
}

func applyStoreOptions(opts []StoreOption) storeConfig {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
// Defaults to DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) StoreOption {
	return func(c *storeConfig) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired-entry cleanup.
// Applies to the SQLite store. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) StoreOption {
	return func(c *storeConfig) { c.expiryCheck = d }
}

// WithStoreKeyPrefix namespaces all keys written by the store. Applies to
// the Redis store, so multiple caches can share one Redis instance.
func WithStoreKeyPrefix(p string) StoreOption {
	return func(c *storeConfig) { c.keyPrefix = p }
}

// redisStore is the MEMORY level backed by Redis. Expiry uses native Redis
// TTLs, so no background sweeper is needed. The caller owns the
// redis.Client lifecycle; Close is a no-op on the client.
type redisStore struct {
	client  *redis.Client
	tracked string
	cfg     storeConfig
}

var _ Store = (*redisStore)(nil)

// NewRedisStore returns a MEMORY-level store backed by the given Redis
// client.
func NewRedisStore(client *redis.Client, opts ...StoreOption) Store {
	cfg := applyStoreOptions(opts)
	tracked := "tiercache:keys"
	if cfg.keyPrefix != "" {
		tracked = cfg.keyPrefix + ":keys"
	}
	return &redisStore{
		client:  client,
		tracked: tracked,
		cfg:     cfg,
	}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *redisStore) storageKey(key string) string {
	if s.cfg.keyPrefix == "" {
		return key
	}
	return s.cfg.keyPrefix + ":" + key
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, s.storageKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return data, true, nil
}

func (s *redisStore) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	k := s.storageKey(key)
	// ttl <= 0 means remember forever; redis treats 0 as no expiration.
	if ttl < 0 {
		ttl = 0
	}
	pipe := s.client.Pipeline()
	pipe.Set(qctx, k, val, ttl)
	pipe.SAdd(qctx, s.tracked, k)
	if _, err := pipe.Exec(qctx); err != nil {
		return errors.Wrap(err, "redis put")
	}
	return nil
}

func (s *redisStore) Forget(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	k := s.storageKey(key)
	removed, err := s.client.Del(qctx, k).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis forget")
	}
	s.client.SRem(qctx, s.tracked, k)
	return removed > 0, nil
}

// Flush removes only keys this store wrote, tracked in a Redis set. A
// FLUSHDB would clobber co-tenants sharing the instance.
func (s *redisStore) Flush(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	keys, err := s.client.SMembers(qctx, s.tracked).Result()
	if err != nil {
		return errors.Wrap(err, "redis flush: list tracked keys")
	}
	if len(keys) > 0 {
		if err := s.client.Del(qctx, keys...).Err(); err != nil {
			return errors.Wrap(err, "redis flush")
		}
	}
	return errors.Wrap(s.client.Del(qctx, s.tracked).Err(), "redis flush: clear tracker")
}

func (s *redisStore) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	d, err := s.client.TTL(qctx, s.storageKey(key)).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "redis ttl")
	}
	// go-redis reports -1 for a key without expiry and -2 for a missing key.
	switch {
	case d == -1:
		return 0, false, nil
	case d < 0:
		return 0, true, nil
	}
	return d, true, nil
}

func (s *redisStore) Has(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	n, err := s.client.Exists(qctx, s.storageKey(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis has")
	}
	return n > 0, nil
}

func (s *redisStore) Size(ctx context.Context) (SizeInfo, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	keys, err := s.client.SMembers(qctx, s.tracked).Result()
	if err != nil {
		return SizeInfo{}, errors.Wrap(err, "redis size")
	}
	var info SizeInfo
	for _, k := range keys {
		n, err := s.client.StrLen(qctx, k).Result()
		if err != nil || n == 0 {
			// Expired or gone; self-heal the tracker set.
			s.client.SRem(qctx, s.tracked, k)
			continue
		}
		info.Count++
		info.Bytes += n
	}
	return info, nil
}

// Close is a no-op; the caller owns the redis.Client lifecycle.
func (s *redisStore) Close() error {
	return nil
}
