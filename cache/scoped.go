package cache

import (
	"context"
	"slices"
	"time"
)

// Scoped is an immutable per-call request descriptor: tags, prefix,
// namespace, TTL, and level restriction accumulated fluently and consumed
// by the one call made on it. Each With method returns a new value, and
// the coordinator itself keeps no fluent state, so nothing leaks into an
// unrelated later call.
//
//	c.WithNamespace("spam_patterns").WithTags("patterns").
//	    WithTTL(24 * time.Hour).Put(ctx, "pattern:list", patterns)
type Scoped struct {
	c  *Coordinator
	sc callScope
}

// Scoped returns an empty per-call descriptor.
func (c *Coordinator) Scoped() Scoped {
	return Scoped{c: c}
}

// WithTags starts a scoped call carrying the tags.
func (c *Coordinator) WithTags(tags ...string) Scoped {
	return c.Scoped().WithTags(tags...)
}

// WithPrefix starts a scoped call with a key prefix.
func (c *Coordinator) WithPrefix(prefix string) Scoped {
	return c.Scoped().WithPrefix(prefix)
}

// WithNamespace starts a scoped call in a namespace.
func (c *Coordinator) WithNamespace(ns string) Scoped {
	return c.Scoped().WithNamespace(ns)
}

// WithTTL starts a scoped call with an explicit TTL. A d <= 0 means
// unlimited lifetime.
func (c *Coordinator) WithTTL(d time.Duration) Scoped {
	return c.Scoped().WithTTL(d)
}

// WithLevels starts a scoped call restricted to the given levels.
func (c *Coordinator) WithLevels(levels ...Level) Scoped {
	return c.Scoped().WithLevels(levels...)
}

// WithTags returns a copy of the scope with the tags added.
func (s Scoped) WithTags(tags ...string) Scoped {
	s.sc.tags = append(slices.Clone(s.sc.tags), tags...)
	return s
}

// WithPrefix returns a copy of the scope with the key prefix set.
func (s Scoped) WithPrefix(prefix string) Scoped {
	s.sc.prefix = prefix
	return s
}

// WithNamespace returns a copy of the scope with the namespace set.
func (s Scoped) WithNamespace(ns string) Scoped {
	s.sc.namespace = ns
	return s
}

// WithTTL returns a copy of the scope with an explicit TTL. A d <= 0
// means unlimited lifetime, overriding any configured namespace default.
func (s Scoped) WithTTL(d time.Duration) Scoped {
	if d <= 0 {
		d = -1
	}
	s.sc.ttl = &d
	return s
}

// Forever returns a copy of the scope storing with unlimited lifetime.
func (s Scoped) Forever() Scoped {
	return s.WithTTL(-1)
}

// WithLevels returns a copy of the scope restricted to the given levels.
func (s Scoped) WithLevels(levels ...Level) Scoped {
	s.sc.levels = slices.Clone(levels)
	return s
}

// Tags returns the accumulated tags.
func (s Scoped) Tags() []string { return slices.Clone(s.sc.tags) }

// Prefix returns the scope's key prefix, or "" for the configured
// default.
func (s Scoped) Prefix() string { return s.sc.prefix }

// Namespace returns the scope's namespace.
func (s Scoped) Namespace() string { return s.sc.namespace }

// TTL returns the explicit TTL and whether one was set.
func (s Scoped) TTL() (time.Duration, bool) {
	if s.sc.ttl == nil {
		return 0, false
	}
	return *s.sc.ttl, true
}

// Levels returns the scope's level restriction; nil means all levels.
func (s Scoped) Levels() []Level { return slices.Clone(s.sc.levels) }

// Get reads through the scope's level restriction.
func (s Scoped) Get(ctx context.Context, key any) ([]byte, bool, error) {
	return s.c.get(ctx, key, s.sc)
}

// Put writes through the scope: its tags, prefix, namespace, TTL, and
// level restriction all apply.
func (s Scoped) Put(ctx context.Context, key any, val any) (bool, error) {
	return s.c.put(ctx, key, val, s.sc)
}

// Forget removes the key from the scope's levels.
func (s Scoped) Forget(ctx context.Context, key any) (bool, error) {
	return s.c.forget(ctx, key, s.sc)
}

// Has checks the scope's levels.
func (s Scoped) Has(ctx context.Context, key any) (bool, error) {
	return s.c.has(ctx, key, s.sc)
}

// Add is put-if-absent within the scope's levels.
func (s Scoped) Add(ctx context.Context, key any, val any) (bool, error) {
	return s.c.add(ctx, key, val, s.sc)
}

// Remember reads through the scope, invoking produce and storing its
// result on a miss.
func (s Scoped) Remember(ctx context.Context, key any, produce func(context.Context) (any, error)) ([]byte, error) {
	return s.c.remember(ctx, key, s.sc, produce)
}

// Flush clears the scope's levels.
func (s Scoped) Flush(ctx context.Context) error {
	return s.c.Flush(ctx, s.sc.levels...)
}
