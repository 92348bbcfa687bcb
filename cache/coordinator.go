package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/shieldscore/tiercache/events"
)

// ErrorHandler is invoked when a level's backend fails during an
// operation. Handlers observe; they cannot resurrect the failed call.
type ErrorHandler func(ctx context.Context, op string, level Level, err error)

// Fallback produces a safe default when every targeted level fails an
// operation. The returned value is interpreted per operation: []byte for
// "get", bool for "has", "put", and "forget".
type Fallback func(ctx context.Context, key string) any

// Coordinator is the cache operation service: it reads with level fallback
// and backfill, writes with level fan-out, owns the key/tag tracker, and
// feeds the statistics counters. One Coordinator serves many concurrent
// callers; the REQUEST level participates only inside a scope created by
// WithRequestScope.
type Coordinator struct {
	log       *zap.Logger
	cfg       Config
	nsTTL     map[string]time.Duration
	stores    map[Level]Store
	breakers  map[Level]*levelBreaker
	tracker   *keyTracker
	stats     *Stats
	publisher events.Publisher

	mu          sync.RWMutex
	enabled     map[Level]bool
	errHandlers []registeredHandler
	fallbacks   map[string]Fallback

	statsSvc *StatisticsService
	invSvc   *InvalidationService
}

type registeredHandler struct {
	target error
	fn     ErrorHandler
}

// CoordinatorOption configures a Coordinator at construction.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator's logger. Defaults to zap.NewNop().
func WithLogger(log *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// WithPublisher sets the event sink for invalidation and audit events.
// Defaults to an in-process dispatcher with no subscribers.
func WithPublisher(p events.Publisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithStore installs the backend for a level. A nil store (e.g. from a
// failed constructor) is ignored, leaving the level disabled: reads miss,
// writes no-op succeed.
func WithStore(level Level, s Store) CoordinatorOption {
	return func(c *Coordinator) {
		if s == nil {
			return
		}
		c.stores[level] = s
	}
}

// New constructs a Coordinator from a static configuration. Levels with no
// configured store start disabled, never fatal.
func New(cfg Config, opts ...CoordinatorOption) (*Coordinator, error) {
	cfg.applyDefaults()
	nsTTL, err := cfg.resolveTTLs()
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		log:       zap.NewNop(),
		cfg:       cfg,
		nsTTL:     nsTTL,
		stores:    make(map[Level]Store),
		breakers:  make(map[Level]*levelBreaker),
		tracker:   newKeyTracker(),
		stats:     NewStats(),
		enabled:   make(map[Level]bool),
		fallbacks: make(map[string]Fallback),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.publisher == nil {
		c.publisher = events.NewDispatcher()
	}
	for _, l := range Levels() {
		c.breakers[l] = newLevelBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown)
		if l.DriverRequired() && c.stores[l] == nil {
			c.enabled[l] = false
			c.log.Warn("cache level has no backend, starting disabled",
				zap.Stringer("level", l))
			continue
		}
		c.enabled[l] = true
	}
	for _, l := range cfg.DisabledLevels {
		c.enabled[l] = false
	}
	c.statsSvc = &StatisticsService{
		stats:  c.stats,
		stores: c.enabledStores,
		cfg:    cfg.Efficiency,
	}
	c.invSvc = &InvalidationService{c: c}
	return c, nil
}

// Close shuts down the level backends owned by the coordinator.
func (c *Coordinator) Close() error {
	var firstErr error
	for _, s := range c.stores {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Statistics returns the statistics service bound to this coordinator.
func (c *Coordinator) Statistics() *StatisticsService { return c.statsSvc }

// Invalidation returns the invalidation service bound to this coordinator.
func (c *Coordinator) Invalidation() *InvalidationService { return c.invSvc }

// Stats returns the coordinator-owned counters.
func (c *Coordinator) Stats() *Stats { return c.stats }

// requestScopeCtxKey carries the per-call REQUEST store through a context.
type requestScopeCtxKey struct{}

// WithRequestScope attaches a fresh REQUEST-level store to the context for
// the duration of one logical call. The returned release function flushes
// the store and must run at the call boundary. Without a request scope the
// REQUEST level is simply absent: it misses on read and no-ops on write.
func WithRequestScope(ctx context.Context) (context.Context, func()) {
	rs := NewRequestStore()
	release := func() { _ = rs.Flush(context.Background()) }
	return context.WithValue(ctx, requestScopeCtxKey{}, rs), release
}

func requestStoreFrom(ctx context.Context) (Store, bool) {
	rs, ok := ctx.Value(requestScopeCtxKey{}).(Store)
	return rs, ok
}

// storeFor resolves the backend serving a level for this call, or nil when
// the level cannot participate.
func (c *Coordinator) storeFor(ctx context.Context, level Level) Store {
	if level == LevelRequest {
		if rs, ok := requestStoreFrom(ctx); ok {
			return rs
		}
		return nil
	}
	return c.stores[level]
}

// enabledStores returns the live stores for the requested levels (nil
// means all), keyed by level. Used by the statistics and validation
// services; the REQUEST level is excluded since it is call-scoped.
func (c *Coordinator) enabledStores(levels []Level) map[Level]Store {
	if levels == nil {
		levels = Levels()
	}
	out := make(map[Level]Store, len(levels))
	for _, l := range levels {
		if l == LevelRequest || !c.IsLevelEnabled(l) {
			continue
		}
		if s := c.stores[l]; s != nil {
			out[l] = s
		}
	}
	return out
}

// ToggleLevel enables or disables a level at runtime. A disabled level is
// skipped entirely by reads and writes. Enabling a level whose backend was
// never configured has no effect.
func (c *Coordinator) ToggleLevel(level Level, enable bool) bool {
	if enable && level.DriverRequired() && c.stores[level] == nil {
		return false
	}
	c.mu.Lock()
	c.enabled[level] = enable
	c.mu.Unlock()
	c.log.Debug("cache level toggled",
		zap.Stringer("level", level), zap.Bool("enabled", enable))
	return true
}

// IsLevelEnabled reports whether a level currently participates in
// operations.
func (c *Coordinator) IsLevelEnabled(level Level) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled[level]
}

// EnabledLevels returns the levels currently participating, in fallback
// order.
func (c *Coordinator) EnabledLevels() []Level {
	var out []Level
	for _, l := range Levels() {
		if c.IsLevelEnabled(l) {
			out = append(out, l)
		}
	}
	return out
}

// DisabledLevels returns the levels currently switched off.
func (c *Coordinator) DisabledLevels() []Level {
	var out []Level
	for _, l := range Levels() {
		if !c.IsLevelEnabled(l) {
			out = append(out, l)
		}
	}
	return out
}

// RegisterErrorHandler runs fn for backend errors matching target
// (errors.Is). Handlers run after the default warn log.
func (c *Coordinator) RegisterErrorHandler(target error, fn ErrorHandler) {
	c.mu.Lock()
	c.errHandlers = append(c.errHandlers, registeredHandler{target: target, fn: fn})
	c.mu.Unlock()
}

// RegisterFallback installs a fallback for an operation name ("get",
// "put", "forget", "has"). It runs only when every targeted level failed
// the operation, and its result replaces the error with a safe default.
func (c *Coordinator) RegisterFallback(op string, fn Fallback) {
	c.mu.Lock()
	c.fallbacks[op] = fn
	c.mu.Unlock()
}

func (c *Coordinator) fallbackFor(op string) (Fallback, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.fallbacks[op]
	return fn, ok
}

// handleLevelError absorbs a backend failure: warn log, breaker update,
// then any registered handlers whose target matches.
func (c *Coordinator) handleLevelError(ctx context.Context, op string, level Level, err error) {
	c.log.Warn("cache backend operation failed",
		zap.String("op", op), zap.Stringer("level", level), zap.Error(err))
	if level.DriverRequired() {
		c.breakers[level].failure()
	}
	wrapped := errors.Mark(err, ErrOperationFailed)
	c.mu.RLock()
	handlers := c.errHandlers
	c.mu.RUnlock()
	for _, h := range handlers {
		if errors.Is(wrapped, h.target) {
			h.fn(ctx, op, level, err)
		}
	}
}

// callScope carries the per-call options accumulated by the fluent
// builder. The zero value means defaults everywhere.
type callScope struct {
	tags      []string
	prefix    string
	namespace string
	ttl       *time.Duration
	levels    []Level
}

// resolveKey accepts a raw string or a Key and applies the scope's
// namespace, tags, and prefix. The configured prefix fills in when neither
// key nor scope carries one.
func (c *Coordinator) resolveKey(key any, sc callScope) (Key, error) {
	switch k := key.(type) {
	case Key:
		prefix := k.Prefix()
		if prefix == "" {
			prefix = c.effectivePrefix(sc)
		}
		tags := append(k.Tags(), sc.tags...)
		opts := make([]KeyOption, 0, 3)
		if k.Namespace() != "" {
			opts = append(opts, InNamespace(k.Namespace()))
		}
		if len(tags) > 0 {
			opts = append(opts, Tagged(tags...))
		}
		if prefix != "" {
			opts = append(opts, Prefixed(prefix))
		}
		return NewKey(k.Raw(), opts...)
	case string:
		opts := make([]KeyOption, 0, 3)
		if sc.namespace != "" {
			opts = append(opts, InNamespace(sc.namespace))
		}
		if len(sc.tags) > 0 {
			opts = append(opts, Tagged(sc.tags...))
		}
		if p := c.effectivePrefix(sc); p != "" {
			opts = append(opts, Prefixed(p))
		}
		return NewKey(k, opts...)
	default:
		return Key{}, errors.Wrapf(ErrInvalidKey, "unsupported key type %T", key)
	}
}

func (c *Coordinator) effectivePrefix(sc callScope) string {
	if sc.prefix != "" {
		return sc.prefix
	}
	return c.cfg.Prefix
}

// effectiveTTL resolves the TTL for a write: an explicit scope TTL wins
// (zero or negative meaning "forever"), then the key namespace's
// configured default, then forever.
func (c *Coordinator) effectiveTTL(key Key, sc callScope) time.Duration {
	if sc.ttl != nil {
		if *sc.ttl < 0 {
			return 0
		}
		return *sc.ttl
	}
	if d, ok := c.nsTTL[key.Namespace()]; ok {
		return d
	}
	return 0
}

// targetLevels resolves which levels an operation touches: the scope's
// restriction (or all levels), minus disabled ones.
func (c *Coordinator) targetLevels(sc callScope) []Level {
	requested := sc.levels
	if requested == nil {
		requested = Levels()
	}
	out := make([]Level, 0, len(requested))
	for _, l := range requested {
		if c.IsLevelEnabled(l) {
			out = append(out, l)
		}
	}
	return out
}

// allowed consults the level's breaker; REQUEST has no backend to protect.
func (c *Coordinator) allowed(level Level) bool {
	if !level.DriverRequired() {
		return true
	}
	return c.breakers[level].allow()
}

func (c *Coordinator) markSuccess(level Level) {
	if level.DriverRequired() {
		c.breakers[level].success()
	}
}

// Get scans the targeted levels in ascending-latency order and returns the
// first hit, backfilling every faster level above the hit before
// returning. Backend failures degrade to misses; callers never observe
// them.
func (c *Coordinator) Get(ctx context.Context, key any) ([]byte, bool, error) {
	return c.get(ctx, key, callScope{})
}

func (c *Coordinator) get(ctx context.Context, key any, sc callScope) ([]byte, bool, error) {
	k, err := c.resolveKey(key, sc)
	if err != nil {
		return nil, false, err
	}
	fq := k.String()
	targets := c.targetLevels(sc)
	attempted, failed := 0, 0

	for i, level := range targets {
		store := c.storeFor(ctx, level)
		if store == nil || !c.allowed(level) {
			continue
		}
		attempted++
		start := time.Now()
		val, ok, err := store.Get(ctx, fq)
		elapsed := time.Since(start)
		if err != nil {
			failed++
			c.stats.recordMiss(level, elapsed)
			c.handleLevelError(ctx, "get", level, err)
			continue
		}
		c.markSuccess(level)
		if !ok {
			c.stats.recordMiss(level, elapsed)
			continue
		}
		c.stats.recordHit(level, elapsed)
		c.backfill(ctx, k, val, store, targets[:i], sc)
		return val, true, nil
	}

	if attempted > 0 && failed == attempted {
		if fn, ok := c.fallbackFor("get"); ok {
			if v, ok := fn(ctx, fq).([]byte); ok {
				return v, true, nil
			}
		}
	}
	return nil, false, nil
}

// backfill promotes a value found at a slower level into the faster levels
// scanned before the hit. The promoted copy never outlives the source
// entry: when the source reports a bounded remaining lifetime, the backfill
// TTL is capped at it. Best-effort: failures are absorbed, and a race
// between two concurrent backfills is an idempotent overwrite.
func (c *Coordinator) backfill(ctx context.Context, k Key, val []byte, source Store, faster []Level, sc callScope) {
	if len(faster) == 0 {
		return
	}
	fq := k.String()
	ttl := c.effectiveTTL(k, sc)
	if ea, ok := source.(expiryAware); ok {
		if rem, bounded, err := ea.ExpiresIn(ctx, fq); err == nil && bounded {
			if rem <= 0 {
				return
			}
			if ttl <= 0 || rem < ttl {
				ttl = rem
			}
		}
	}
	for _, level := range faster {
		store := c.storeFor(ctx, level)
		if store == nil || !c.allowed(level) {
			continue
		}
		if err := store.Put(ctx, fq, val, ttl); err != nil {
			c.handleLevelError(ctx, "backfill", level, err)
			continue
		}
		c.markSuccess(level)
		c.stats.recordPut(level)
		c.tracker.record(k, []Level{level})
	}
}

// Put encodes the value once and fans it out to every targeted, enabled
// level. It returns true if at least one level accepted the write; partial
// failure is logged, never propagated. A ttl <= 0 stores the value with
// the key namespace's configured default lifetime, or forever when none is
// configured.
func (c *Coordinator) Put(ctx context.Context, key any, val any, ttl time.Duration) (bool, error) {
	sc := callScope{}
	if ttl > 0 {
		sc.ttl = &ttl
	}
	return c.put(ctx, key, val, sc)
}

func (c *Coordinator) put(ctx context.Context, key any, val any, sc callScope) (bool, error) {
	k, err := c.resolveKey(key, sc)
	if err != nil {
		return false, err
	}
	data, err := Encode(val)
	if err != nil {
		return false, err
	}
	return c.putBytes(ctx, k, data, sc)
}

func (c *Coordinator) putBytes(ctx context.Context, k Key, data []byte, sc callScope) (bool, error) {
	fq := k.String()
	ttl := c.effectiveTTL(k, sc)
	var stored []Level
	attempted, failed := 0, 0

	for _, level := range c.targetLevels(sc) {
		store := c.storeFor(ctx, level)
		if store == nil || !c.allowed(level) {
			continue
		}
		attempted++
		if err := store.Put(ctx, fq, data, ttl); err != nil {
			failed++
			c.handleLevelError(ctx, "put", level, err)
			continue
		}
		c.markSuccess(level)
		c.stats.recordPut(level)
		stored = append(stored, level)
	}

	if len(stored) > 0 {
		c.tracker.record(k, stored)
		c.audit(ctx, "put", fq, stored, "ok")
		return true, nil
	}
	if attempted > 0 && failed == attempted {
		if fn, ok := c.fallbackFor("put"); ok {
			if v, ok := fn(ctx, fq).(bool); ok {
				return v, nil
			}
		}
	}
	c.audit(ctx, "put", fq, nil, "rejected")
	return false, nil
}

// Forget removes the key from every targeted level and from the key/tag
// indices. Forgetting an absent key is a successful no-op.
func (c *Coordinator) Forget(ctx context.Context, key any) (bool, error) {
	return c.forget(ctx, key, callScope{})
}

func (c *Coordinator) forget(ctx context.Context, key any, sc callScope) (bool, error) {
	k, err := c.resolveKey(key, sc)
	if err != nil {
		return false, err
	}
	fq := k.String()
	removed := false
	attempted, failed := 0, 0
	cleared := make([]Level, 0, 3)

	for _, level := range c.targetLevels(sc) {
		store := c.storeFor(ctx, level)
		if store == nil {
			if level == LevelRequest {
				// No scope attached, so nothing can survive at this level.
				cleared = append(cleared, level)
			}
			continue
		}
		if !c.allowed(level) {
			continue
		}
		attempted++
		ok, err := store.Forget(ctx, fq)
		if err != nil {
			failed++
			c.handleLevelError(ctx, "forget", level, err)
			continue
		}
		c.markSuccess(level)
		cleared = append(cleared, level)
		if ok {
			c.stats.recordDelete(level)
			removed = true
		}
	}

	// The index drops only levels whose backend acknowledged the forget; a
	// failed backend may still hold the value.
	if len(cleared) > 0 {
		c.tracker.forget(fq, cleared)
	}
	if attempted > 0 && failed == attempted {
		if fn, ok := c.fallbackFor("forget"); ok {
			if v, ok := fn(ctx, fq).(bool); ok {
				return v, nil
			}
		}
	}
	c.audit(ctx, "forget", fq, sc.levels, "ok")
	return removed || failed == 0, nil
}

// Has short-circuits true on the first targeted level holding a live
// entry.
func (c *Coordinator) Has(ctx context.Context, key any) (bool, error) {
	return c.has(ctx, key, callScope{})
}

func (c *Coordinator) has(ctx context.Context, key any, sc callScope) (bool, error) {
	k, err := c.resolveKey(key, sc)
	if err != nil {
		return false, err
	}
	fq := k.String()
	attempted, failed := 0, 0
	for _, level := range c.targetLevels(sc) {
		store := c.storeFor(ctx, level)
		if store == nil || !c.allowed(level) {
			continue
		}
		attempted++
		ok, err := store.Has(ctx, fq)
		if err != nil {
			failed++
			c.handleLevelError(ctx, "has", level, err)
			continue
		}
		c.markSuccess(level)
		if ok {
			return true, nil
		}
	}
	if attempted > 0 && failed == attempted {
		if fn, ok := c.fallbackFor("has"); ok {
			if v, ok := fn(ctx, fq).(bool); ok {
				return v, nil
			}
		}
	}
	return false, nil
}

// Add stores the value only if no targeted level already holds a live
// entry for the key. Returns false without mutating anything when one
// does.
func (c *Coordinator) Add(ctx context.Context, key any, val any, ttl time.Duration) (bool, error) {
	sc := callScope{}
	if ttl > 0 {
		sc.ttl = &ttl
	}
	return c.add(ctx, key, val, sc)
}

func (c *Coordinator) add(ctx context.Context, key any, val any, sc callScope) (bool, error) {
	exists, err := c.has(ctx, key, sc)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return c.put(ctx, key, val, sc)
}

// Remember returns the cached value for the key, or invokes produce on a
// miss, stores the result, and returns it. Concurrent callers racing on
// the same miss may each run produce: there is no single-flight guarantee,
// by contract. Duplicate storage is an idempotent overwrite.
func (c *Coordinator) Remember(ctx context.Context, key any, ttl time.Duration, produce func(context.Context) (any, error)) ([]byte, error) {
	sc := callScope{}
	if ttl > 0 {
		sc.ttl = &ttl
	}
	return c.remember(ctx, key, sc, produce)
}

// RememberForever is Remember with unlimited lifetime, overriding any
// configured namespace default.
func (c *Coordinator) RememberForever(ctx context.Context, key any, produce func(context.Context) (any, error)) ([]byte, error) {
	forever := time.Duration(-1)
	return c.remember(ctx, key, callScope{ttl: &forever}, produce)
}

func (c *Coordinator) remember(ctx context.Context, key any, sc callScope, produce func(context.Context) (any, error)) ([]byte, error) {
	val, ok, err := c.get(ctx, key, sc)
	if err != nil {
		return nil, err
	}
	if ok {
		return val, nil
	}
	produced, err := produce(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cache: remember producer")
	}
	data, err := Encode(produced)
	if err != nil {
		return nil, err
	}
	k, err := c.resolveKey(key, sc)
	if err != nil {
		return nil, err
	}
	if _, err := c.putBytes(ctx, k, data, sc); err != nil {
		return nil, err
	}
	return data, nil
}

// GetFrom bypasses fallback and backfill, reading exactly one level. Used
// by maintenance and diagnostics.
func (c *Coordinator) GetFrom(ctx context.Context, level Level, key any) ([]byte, bool, error) {
	return c.get(ctx, key, callScope{levels: []Level{level}})
}

// PutIn writes exactly one level with no fan-out.
func (c *Coordinator) PutIn(ctx context.Context, level Level, key any, val any, ttl time.Duration) (bool, error) {
	sc := callScope{levels: []Level{level}}
	if ttl > 0 {
		sc.ttl = &ttl
	}
	return c.put(ctx, key, val, sc)
}

// ForgetFrom removes the key from exactly one level.
func (c *Coordinator) ForgetFrom(ctx context.Context, level Level, key any) (bool, error) {
	return c.forget(ctx, key, callScope{levels: []Level{level}})
}

// HasIn checks exactly one level.
func (c *Coordinator) HasIn(ctx context.Context, level Level, key any) (bool, error) {
	return c.has(ctx, key, callScope{levels: []Level{level}})
}

// Flush clears the targeted levels (all when none given) and the tracked
// key indices for those levels.
func (c *Coordinator) Flush(ctx context.Context, levels ...Level) error {
	sc := callScope{}
	if len(levels) > 0 {
		sc.levels = levels
	}
	var firstErr error
	flushed := make([]Level, 0, 3)
	for _, level := range c.targetLevels(sc) {
		store := c.storeFor(ctx, level)
		if store == nil {
			if level == LevelRequest {
				flushed = append(flushed, level)
			}
			continue
		}
		if err := store.Flush(ctx); err != nil {
			c.handleLevelError(ctx, "flush", level, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		flushed = append(flushed, level)
	}
	// Index entries for a level survive a failed backend flush.
	if len(flushed) > 0 {
		c.tracker.clear(flushed)
	}
	c.audit(ctx, "flush", "*", sc.levels, "ok")
	return firstErr
}

// InvalidateByPattern removes every tracked key matching the glob pattern
// from the targeted levels. Returns the number of keys removed.
func (c *Coordinator) InvalidateByPattern(ctx context.Context, pattern string, levels ...Level) (int, error) {
	return c.invSvc.ByPattern(ctx, pattern, levels...)
}

// InvalidateByTags removes every tracked key carrying any of the tags from
// the targeted levels. Returns the number of keys removed.
func (c *Coordinator) InvalidateByTags(ctx context.Context, tags []string, levels ...Level) (int, error) {
	return c.invSvc.ByTags(ctx, tags, levels...)
}

// InvalidateByNamespace removes every tracked key in the namespace from
// the targeted levels. Returns the number of keys removed.
func (c *Coordinator) InvalidateByNamespace(ctx context.Context, namespace string, levels ...Level) (int, error) {
	return c.invSvc.ByNamespace(ctx, namespace, levels...)
}

// TrackedKeys reports how many keys the coordinator's index holds.
func (c *Coordinator) TrackedKeys() int {
	return c.tracker.len()
}

// audit emits a record per mutating operation when auditing is on.
func (c *Coordinator) audit(ctx context.Context, op, key string, levels []Level, outcome string) {
	if !c.cfg.AuditEnabled {
		return
	}
	rec := events.AuditRecord{
		Operation: op,
		Key:       key,
		Outcome:   outcome,
		Timestamp: time.Now(),
	}
	if len(levels) == 1 {
		rec.Level = levels[0].String()
	}
	data, err := events.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.publisher.Publish(ctx, events.SubjectAudit, data); err != nil {
		c.log.Warn("audit publish failed", zap.Error(err))
	}
}

// GetAs decodes the cached value for key into T. A miss returns the zero
// value with found=false.
func GetAs[T any](ctx context.Context, c *Coordinator, key any) (T, bool, error) {
	var zero T
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var out T
	if err := Decode(data, &out); err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// RememberAs is Remember with a typed producer and a typed result.
func RememberAs[T any](ctx context.Context, c *Coordinator, key any, ttl time.Duration, produce func(context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Remember(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return produce(ctx)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := Decode(data, &out); err != nil {
		return zero, err
	}
	return out, nil
}
