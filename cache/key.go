package cache

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// Key identifies a cached value. It is an immutable value type: the raw key
// names the slot, the namespace groups related keys for bulk invalidation,
// tags attach the key to cross-cutting invalidation sets, and the prefix
// isolates environments or tenants sharing one backend.
//
// Equality is by the fully-qualified String() form. Two keys with the same
// raw key but different tags address the same storage slot; the tags only
// change which invalidation sets the key participates in.
type Key struct {
	raw       string
	namespace string
	prefix    string
	tags      []string
}

// KeyOption configures a Key at construction.
type KeyOption func(*Key)

// InNamespace sets the key's namespace, e.g. "spam_patterns".
func InNamespace(ns string) KeyOption {
	return func(k *Key) { k.namespace = ns }
}

// Tagged attaches tags to the key. Tags are deduplicated and sorted.
func Tagged(tags ...string) KeyOption {
	return func(k *Key) { k.tags = append(k.tags, tags...) }
}

// Prefixed sets the key's prefix for environment or tenant isolation.
func Prefixed(prefix string) KeyOption {
	return func(k *Key) { k.prefix = prefix }
}

// NewKey constructs a Key. An empty raw key fails with ErrInvalidKey.
func NewKey(raw string, opts ...KeyOption) (Key, error) {
	if raw == "" {
		return Key{}, errors.Wrap(ErrInvalidKey, "empty raw key")
	}
	k := Key{raw: raw}
	for _, opt := range opts {
		opt(&k)
	}
	if len(k.tags) > 0 {
		slices.Sort(k.tags)
		k.tags = slices.Compact(k.tags)
	}
	return k, nil
}

// MustKey is NewKey for keys known valid at compile time. Panics on error.
func MustKey(raw string, opts ...KeyOption) Key {
	k, err := NewKey(raw, opts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Raw returns the raw key.
func (k Key) Raw() string { return k.raw }

// Namespace returns the key's namespace, or "" when not set.
func (k Key) Namespace() string { return k.namespace }

// Prefix returns the key's prefix, or "" when not set.
func (k Key) Prefix() string { return k.prefix }

// Tags returns a copy of the key's tags.
func (k Key) Tags() []string {
	return slices.Clone(k.tags)
}

// withTags returns a copy of the key with extra tags merged in,
// deduplicated and sorted.
func (k Key) withTags(extra []string) Key {
	if len(extra) == 0 {
		return k
	}
	merged := append(k.Tags(), extra...)
	slices.Sort(merged)
	k.tags = slices.Compact(merged)
	return k
}

// String returns the canonical storage address: prefix:namespace:raw with
// empty parts omitted.
func (k Key) String() string {
	parts := make([]string, 0, 3)
	if k.prefix != "" {
		parts = append(parts, k.prefix)
	}
	if k.namespace != "" {
		parts = append(parts, k.namespace)
	}
	parts = append(parts, k.raw)
	return strings.Join(parts, ":")
}
