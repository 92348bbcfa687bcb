// Package events carries cache invalidation and audit notifications to
// pluggable sinks. The cache defines the event shapes; the transport is
// whatever Publisher the caller wires in: the in-process Dispatcher for
// single-process deployments and tests, or the Redis publisher for
// cross-process invalidation broadcast.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Subjects published by the cache.
const (
	SubjectInvalidation     = "cache.invalidation"
	SubjectInvalidationBulk = "cache.invalidation.bulk"
	SubjectAudit            = "cache.audit"
)

// InvalidationEvent is published once per key removed by an invalidation
// call. Listeners must be idempotent: redelivery and duplicate publication
// are both possible.
type InvalidationEvent struct {
	ID        string         `msgpack:"id"`
	Key       string         `msgpack:"key"`
	Namespace string         `msgpack:"namespace,omitempty"`
	Tags      []string       `msgpack:"tags,omitempty"`
	Levels    []string       `msgpack:"levels,omitempty"` // nil means all levels
	Reason    string         `msgpack:"reason"`
	Metadata  map[string]any `msgpack:"metadata,omitempty"`
	Timestamp time.Time      `msgpack:"timestamp"`
}

// NewInvalidationEvent stamps an event with an ID and timestamp.
func NewInvalidationEvent(key, namespace string, tags, levels []string, reason string, metadata map[string]any) InvalidationEvent {
	return InvalidationEvent{
		ID:        uuid.NewString(),
		Key:       key,
		Namespace: namespace,
		Tags:      tags,
		Levels:    levels,
		Reason:    reason,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

// BulkSummary is published once per bulk invalidation call (pattern, tag
// set, or namespace) carrying the number of keys removed.
type BulkSummary struct {
	ID        string    `msgpack:"id"`
	Kind      string    `msgpack:"kind"` // "pattern", "tags", or "namespace"
	Target    string    `msgpack:"target"`
	Levels    []string  `msgpack:"levels,omitempty"`
	Removed   int       `msgpack:"removed"`
	Timestamp time.Time `msgpack:"timestamp"`
}

// AuditRecord describes one mutating cache operation for the audit sink.
type AuditRecord struct {
	Operation string    `msgpack:"operation"`
	Key       string    `msgpack:"key"`
	Level     string    `msgpack:"level,omitempty"`
	Outcome   string    `msgpack:"outcome"`
	Timestamp time.Time `msgpack:"timestamp"`
}

// Marshal encodes an event payload for publication.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "events: marshal")
	}
	return data, nil
}

// Unmarshal decodes an event payload.
func Unmarshal(data []byte, out any) error {
	return errors.Wrap(msgpack.Unmarshal(data, out), "events: unmarshal")
}

// Publisher delivers event payloads to a subject. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Handler receives payloads published to a subscribed subject.
type Handler func(ctx context.Context, subject string, data []byte)

// Subscription unsubscribes a handler when closed.
type Subscription interface {
	Close() error
}

// Dispatcher is an in-process Publisher that fans out synchronously to
// subscribed handlers. Handlers run on the publishing goroutine and should
// return quickly.
type Dispatcher struct {
	mu       sync.RWMutex
	closed   bool
	nextID   int
	handlers map[string]map[int]Handler
}

var _ Publisher = (*Dispatcher)(nil)

// NewDispatcher returns an empty in-process dispatcher. Publishing with no
// subscribers is a no-op, which makes it the default sink.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a subject.
func (d *Dispatcher) Subscribe(subject string, h Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers[subject] == nil {
		d.handlers[subject] = make(map[int]Handler)
	}
	id := d.nextID
	d.nextID++
	d.handlers[subject][id] = h
	return &dispatcherSub{d: d, subject: subject, id: id}
}

// Publish delivers data to every handler subscribed to subject.
func (d *Dispatcher) Publish(ctx context.Context, subject string, data []byte) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return errors.New("events: dispatcher closed")
	}
	hs := make([]Handler, 0, len(d.handlers[subject]))
	for _, h := range d.handlers[subject] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()
	for _, h := range hs {
		h(ctx, subject, data)
	}
	return nil
}

// Close drops all subscriptions and rejects further publishes.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.handlers = make(map[string]map[int]Handler)
	return nil
}

type dispatcherSub struct {
	d       *Dispatcher
	subject string
	id      int
}

func (s *dispatcherSub) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if set, ok := s.d.handlers[s.subject]; ok {
		delete(set, s.id)
	}
	return nil
}
