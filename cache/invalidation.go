package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shieldscore/tiercache/events"
)

// InvalidationService removes cache entries by exact key, glob pattern,
// tag set, or namespace. Pattern and tag resolution go through the
// coordinator's key tracker, never a backend scan: the tracker is the
// source of truth for what keys exist, the stores for what values they
// hold. Every call is level-scoped; levels outside the call are left
// untouched.
//
// One InvalidationEvent is published per distinct key removed, plus one
// summary event per bulk call carrying the count.
type InvalidationService struct {
	c *Coordinator
}

// ByKey invalidates one key with a reason, publishing its event.
func (s *InvalidationService) ByKey(ctx context.Context, key any, reason string, levels ...Level) (bool, error) {
	k, err := s.c.resolveKey(key, callScope{})
	if err != nil {
		return false, err
	}
	n, err := s.invalidate(ctx, []Key{k}, levels, reason)
	return n > 0, err
}

// ByPattern invalidates every tracked key whose fully-qualified form
// matches the glob pattern, e.g. "spam_pattern:*". Returns the number of
// keys removed.
func (s *InvalidationService) ByPattern(ctx context.Context, pattern string, levels ...Level) (int, error) {
	keys := s.c.tracker.matching(pattern)
	n, err := s.invalidate(ctx, keys, levels, "pattern:"+pattern)
	s.bulk(ctx, "pattern", pattern, levels, n)
	return n, err
}

// ByTags invalidates every tracked key carrying at least one of the tags.
// Returns the number of keys removed.
func (s *InvalidationService) ByTags(ctx context.Context, tags []string, levels ...Level) (int, error) {
	keys := s.c.tracker.withTags(tags)
	target := ""
	for i, t := range tags {
		if i > 0 {
			target += ","
		}
		target += t
	}
	n, err := s.invalidate(ctx, keys, levels, "tags:"+target)
	s.bulk(ctx, "tags", target, levels, n)
	return n, err
}

// ByNamespace invalidates every tracked key in the namespace. Returns the
// number of keys removed.
func (s *InvalidationService) ByNamespace(ctx context.Context, namespace string, levels ...Level) (int, error) {
	keys := s.c.tracker.inNamespace(namespace)
	n, err := s.invalidate(ctx, keys, levels, "namespace:"+namespace)
	s.bulk(ctx, "namespace", namespace, levels, n)
	return n, err
}

// invalidate forgets each key on the targeted levels and publishes one
// event per key removed. Backend failures are absorbed per key; the rest
// of the batch proceeds.
func (s *InvalidationService) invalidate(ctx context.Context, keys []Key, levels []Level, reason string) (int, error) {
	sc := callScope{}
	if len(levels) > 0 {
		sc.levels = levels
	}
	removed := 0
	for _, k := range keys {
		ok, err := s.c.forget(ctx, k, sc)
		if err != nil {
			s.c.log.Warn("invalidation forget failed",
				zap.String("key", k.String()), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		removed++
		s.publish(ctx, k, levels, reason)
	}
	return removed, nil
}

func (s *InvalidationService) publish(ctx context.Context, k Key, levels []Level, reason string) {
	ev := events.NewInvalidationEvent(
		k.String(), k.Namespace(), k.Tags(), levelNames(levels), reason, nil)
	data, err := events.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.c.publisher.Publish(ctx, events.SubjectInvalidation, data); err != nil {
		s.c.log.Warn("invalidation event publish failed",
			zap.String("key", k.String()), zap.Error(err))
	}
}

func (s *InvalidationService) bulk(ctx context.Context, kind, target string, levels []Level, removed int) {
	summary := events.BulkSummary{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target,
		Levels:    levelNames(levels),
		Removed:   removed,
		Timestamp: time.Now(),
	}
	data, err := events.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.c.publisher.Publish(ctx, events.SubjectInvalidationBulk, data); err != nil {
		s.c.log.Warn("bulk invalidation event publish failed",
			zap.String("target", target), zap.Error(err))
	}
}
