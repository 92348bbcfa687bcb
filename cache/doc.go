// Package cache is a three-tier caching coordinator for workloads that
// must answer in low-single-digit milliseconds while staying consistent
// when the data underneath them changes. It was built for a
// security-scoring pipeline caching pattern sets, IP reputation lookups,
// and computed risk scores.
//
// # Levels
//
// Three levels are unified behind one API, ordered by ascending latency
// and descending volatility:
//
//   - REQUEST: an in-process map scoped to one logical call, attached to
//     a context by [WithRequestScope] and flushed by its release function.
//     Needs no driver and no locking.
//
//   - MEMORY: a shared store surviving across calls: Redis via
//     [NewRedisStore], or an in-process bounded LRU via
//     [NewLocalMemoryStore] for deployments without Redis.
//
//   - DATABASE: a durable SQLite-backed table via [NewSQLiteStore],
//     with TTL expiry, lazy eviction, and a maintenance catalog
//     (cleanup/optimize/vacuum/reindex).
//
// # Coordinator
//
// [New] builds a [Coordinator] from a static [Config] and the stores
// wired in with [WithStore]. Reads scan levels fastest-first and backfill
// every faster level above a hit; writes fan out to all targeted levels
// and succeed when at least one level accepts. A level whose backend is
// missing or down degrades to always-miss/no-op: callers of Get and
// Remember never observe backend errors, worst case is a miss. A per-level
// circuit breaker stops hammering a flapping backend and re-probes it
// after a cooldown.
//
// Values are serialized once, coordinator-side, with msgpack; the stores
// are byte-transparent. [GetAs] and [RememberAs] provide typed access:
//
//	score, ok, err := cache.GetAs[RiskScore](ctx, c, "ip:1.2.3.4")
//
// [Coordinator.Remember] is deliberately not single-flight: concurrent
// callers racing on the same miss may each run the producer, and the
// duplicate store is an idempotent overwrite. Callers needing
// single-execution semantics must layer their own locking.
//
// # Keys, tags, namespaces
//
// A [Key] carries a namespace (bulk-invalidation group), tags
// (cross-cutting invalidation sets), and a prefix (tenant/environment
// isolation); its String form prefix:namespace:raw is the storage
// address. The fluent [Scoped] builder accumulates tags, namespace,
// prefix, TTL, and a level restriction for exactly one call:
//
//	c.WithNamespace("spam_patterns").WithTags("patterns").
//	    WithTTL(24 * time.Hour).Put(ctx, "pattern:list", patterns)
//
// Scoped is an immutable value; nothing accumulated for one call can
// leak into the next.
//
// # Invalidation, statistics, maintenance, validation
//
// The coordinator maintains a key/tag tracker alongside every put and
// forget, so [InvalidationService] can resolve glob patterns, tag sets,
// and namespaces without backend scans. Each removal publishes an event
// through the wired events.Publisher.
//
// [StatisticsService] exposes per-level hit/miss/put/delete counters, a
// sample-weighted hit ratio, and a bounded 0-100 efficiency score.
// [MaintenanceService] runs the durable store's housekeeping catalog with
// before/after snapshots and threshold-driven recommendations.
// [ValidationService] self-tests latency, capacity, and concurrent
// throughput against configured targets, with a hard cap on load-test
// duration.
package cache
