package cache

import "github.com/cockroachdb/errors"

// Level is one tier of the cache hierarchy, ordered by ascending latency
// and descending volatility.
type Level int

const (
	// LevelRequest is an in-process map scoped to a single inbound call.
	// It never survives across calls and needs no backend driver.
	LevelRequest Level = iota
	// LevelMemory is a shared in-memory store (Redis or a local LRU).
	LevelMemory
	// LevelDatabase is the durable backing store.
	LevelDatabase
)

// Levels returns all levels in read-fallback order: fastest first.
func Levels() []Level {
	return []Level{LevelRequest, LevelMemory, LevelDatabase}
}

func (l Level) String() string {
	switch l {
	case LevelRequest:
		return "request"
	case LevelMemory:
		return "memory"
	case LevelDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// DriverRequired reports whether the level needs a backend driver to
// function. LevelRequest never does.
func (l Level) DriverRequired() bool {
	return l != LevelRequest
}

// Persistent reports whether entries at this level survive across requests.
func (l Level) Persistent() bool {
	return l != LevelRequest
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "request":
		return LevelRequest, nil
	case "memory":
		return LevelMemory, nil
	case "database":
		return LevelDatabase, nil
	}
	return 0, errors.Newf("cache: unknown level %q", s)
}

// levelNames renders a level set for events and logs. nil means all levels.
func levelNames(levels []Level) []string {
	if levels == nil {
		return nil
	}
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.String()
	}
	return names
}
