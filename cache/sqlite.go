package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// sqliteStore is the DATABASE level: a durable key/value table with
// TTL-based expiry. Expired entries are lazily evicted on read and swept
// by a background goroutine. It also implements the maintenance catalog
// (cleanup/optimize/vacuum/reindex) used by the maintenance service.
type sqliteStore struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       storeConfig
}

var _ MaintainableStore = (*sqliteStore)(nil)

// NewSQLiteStore returns a DATABASE-level store. If dbPath is empty or
// ":memory:", an in-memory database is used (useful in tests; a production
// deployment passes a file path so entries survive restarts).
func NewSQLiteStore(ctx context.Context, dbPath string, opts ...StoreOption) (MaintainableStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite open")
	}

	// WAL for concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite journal mode")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite create table")
	}
	// expires_at index keeps cleanup sweeps from scanning the table.
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at
		ON cache_entries(expires_at) WHERE expires_at > 0`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite create index")
	}

	cfg := applyStoreOptions(opts)
	childCtx, cancel := context.WithCancel(ctx)
	s := &sqliteStore{
		db:     db,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    cfg,
	}
	s.waitGroup.Add(1)
	go s.run()
	return s, nil
}

func (s *sqliteStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "sqlite get")
	}
	if expiresAt > 0 && expiresAt < time.Now().UnixNano() {
		// Lazily evict the expired entry.
		_, _ = s.db.ExecContext(qctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return data, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	now := time.Now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(qctx,
		`INSERT INTO cache_entries (key, value, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			stored_at = excluded.stored_at, expires_at = excluded.expires_at`,
		key, val, now.UnixNano(), expiresAt,
	)
	return errors.Wrap(err, "sqlite put")
}

func (s *sqliteStore) Forget(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(qctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return false, errors.Wrap(err, "sqlite forget")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "sqlite forget")
	}
	return rows > 0, nil
}

func (s *sqliteStore) Flush(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(qctx, `DELETE FROM cache_entries`)
	return errors.Wrap(err, "sqlite flush")
}

func (s *sqliteStore) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "sqlite expires in")
	}
	if expiresAt == 0 {
		return 0, false, nil
	}
	return time.Until(time.Unix(0, expiresAt)), true, nil
}

func (s *sqliteStore) Has(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "sqlite has")
	}
	if expiresAt > 0 && expiresAt < time.Now().UnixNano() {
		return false, nil
	}
	return true, nil
}

func (s *sqliteStore) Size(ctx context.Context) (SizeInfo, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var info SizeInfo
	err := s.db.QueryRowContext(qctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM cache_entries
		WHERE expires_at = 0 OR expires_at >= ?`, time.Now().UnixNano(),
	).Scan(&info.Count, &info.Bytes)
	return info, errors.Wrap(err, "sqlite size")
}

// Cleanup purges entries past their expiry and returns how many were
// removed.
func (s *sqliteStore) Cleanup(ctx context.Context) (int64, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	result, err := s.db.ExecContext(qctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < ?`,
		time.Now().UnixNano(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite cleanup")
	}
	rows, err := result.RowsAffected()
	return rows, errors.Wrap(err, "sqlite cleanup")
}

// Optimize runs the query planner's statistics refresh.
func (s *sqliteStore) Optimize(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(qctx, `PRAGMA optimize`)
	return errors.Wrap(err, "sqlite optimize")
}

// Vacuum reclaims space freed by deleted entries.
func (s *sqliteStore) Vacuum(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(qctx, `VACUUM`)
	return errors.Wrap(err, "sqlite vacuum")
}

// Reindex rebuilds the table's lookup structures.
func (s *sqliteStore) Reindex(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	_, err := s.db.ExecContext(qctx, `REINDEX cache_entries`)
	return errors.Wrap(err, "sqlite reindex")
}

func (s *sqliteStore) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *sqliteStore) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.db.Exec(`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < ?`,
				time.Now().UnixNano())
		}
	}
}
