package cache

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// keyTracker is the coordinator-owned index of what keys exist and where.
// Durable and shared stores do not support pattern or tag queries, so the
// tracker is the source of truth for "what keys exist"; the stores remain
// the source of truth for "what value a key holds". It is maintained on
// every put/forget. A tracked key whose store lookup misses is stale and
// self-heals by removal.
type keyTracker struct {
	mu   sync.RWMutex
	keys map[string]*trackedKey
	tags map[string]map[string]struct{}
}

type trackedKey struct {
	key    Key
	levels map[Level]struct{}
}

func newKeyTracker() *keyTracker {
	return &keyTracker{
		keys: make(map[string]*trackedKey),
		tags: make(map[string]map[string]struct{}),
	}
}

// record notes that key is now stored at the given levels.
func (t *keyTracker) record(key Key, levels []Level) {
	fq := key.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.keys[fq]
	if !ok {
		tk = &trackedKey{key: key, levels: make(map[Level]struct{})}
		t.keys[fq] = tk
	} else {
		// The stored Key accumulates every tag ever recorded for the slot,
		// so a full removal clears all of its tag-index entries.
		tk.key = tk.key.withTags(key.Tags())
	}
	for _, l := range levels {
		tk.levels[l] = struct{}{}
	}
	for _, tag := range key.Tags() {
		set, ok := t.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			t.tags[tag] = set
		}
		set[fq] = struct{}{}
	}
}

// forget removes the key's association with the given levels; nil means
// all. Once a key is stored nowhere it leaves the tag index too.
func (t *keyTracker) forget(fq string, levels []Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.keys[fq]
	if !ok {
		return
	}
	if levels == nil {
		tk.levels = map[Level]struct{}{}
	} else {
		for _, l := range levels {
			delete(tk.levels, l)
		}
	}
	if len(tk.levels) > 0 {
		return
	}
	delete(t.keys, fq)
	for _, tag := range tk.key.Tags() {
		if set, ok := t.tags[tag]; ok {
			delete(set, fq)
			if len(set) == 0 {
				delete(t.tags, tag)
			}
		}
	}
}

// lookup returns the tracked Key for a fully-qualified key string.
func (t *keyTracker) lookup(fq string) (Key, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tk, ok := t.keys[fq]
	if !ok {
		return Key{}, false
	}
	return tk.key, true
}

// matching returns all tracked keys whose fully-qualified form matches the
// glob pattern, e.g. "spam_pattern:*".
func (t *keyTracker) matching(pattern string) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Key
	for fq, tk := range t.keys {
		if ok, err := doublestar.Match(pattern, fq); err == nil && ok {
			out = append(out, tk.key)
		}
	}
	return out
}

// withTags returns all tracked keys carrying at least one of the tags.
func (t *keyTracker) withTags(tags []string) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []Key
	for _, tag := range tags {
		for fq := range t.tags[tag] {
			if _, dup := seen[fq]; dup {
				continue
			}
			seen[fq] = struct{}{}
			if tk, ok := t.keys[fq]; ok {
				out = append(out, tk.key)
			}
		}
	}
	return out
}

// inNamespace returns all tracked keys in the namespace.
func (t *keyTracker) inNamespace(namespace string) []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Key
	for _, tk := range t.keys {
		if tk.key.Namespace() == namespace {
			out = append(out, tk.key)
		}
	}
	return out
}

// len reports how many keys are tracked.
func (t *keyTracker) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keys)
}

// clear drops every tracked key for the given levels; nil means all.
func (t *keyTracker) clear(levels []Level) {
	t.mu.Lock()
	fqs := make([]string, 0, len(t.keys))
	for fq := range t.keys {
		fqs = append(fqs, fq)
	}
	t.mu.Unlock()
	for _, fq := range fqs {
		t.forget(fq, levels)
	}
}
