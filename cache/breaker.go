package cache

import (
	"sync"
	"time"
)

// breakerState is the state of a level's circuit breaker.
type breakerState int32

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "CLOSED"
	case breakerOpen:
		return "OPEN"
	case breakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// levelBreaker auto-disables a level after consecutive backend failures and
// re-enables it after a cooldown probe succeeds. It realizes the "level
// unavailable degrades, never fatal" contract as a self-healing mechanism:
// a flapping backend stops being hammered, and a recovered one comes back
// without operator action. Manual ToggleLevel overrides it entirely.
type levelBreaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	failures    int
	state       breakerState
	openedAt    time.Time
	probing     bool
}

func newLevelBreaker(maxFailures int, cooldown time.Duration) *levelBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &levelBreaker{maxFailures: maxFailures, cooldown: cooldown}
}

// allow reports whether an operation may reach the backend. When the
// circuit is open and the cooldown has elapsed, exactly one caller is let
// through as a probe.
func (b *levelBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = breakerHalfOpen
		b.probing = true
		return true
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// success records a successful backend operation.
func (b *levelBreaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.state = breakerClosed
}

// failure records a failed backend operation and opens the circuit once
// the consecutive-failure threshold is reached.
func (b *levelBreaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// currentState returns the breaker's state for diagnostics.
func (b *levelBreaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
