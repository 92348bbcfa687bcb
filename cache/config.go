package cache

import (
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Config is the static configuration supplied at coordinator construction.
// The cache never reads configuration files; whatever loads them hands the
// resolved values here.
type Config struct {
	// Prefix isolates this coordinator's keys by environment or tenant.
	// Applied to every key that does not carry its own prefix.
	Prefix string

	// DisabledLevels lists levels to start disabled. A disabled level is
	// skipped entirely by reads and writes, not just treated as empty.
	DisabledLevels []Level

	// NamespaceTTL maps a namespace (data category) to its default TTL as
	// a duration string, e.g. "spam_patterns": "24h", "ip_reputation":
	// "1h30m". Used when a scoped call sets no explicit TTL. Parsed with
	// str2duration, so day/week units ("7d") work.
	NamespaceTTL map[string]string

	// Performance holds the targets checked by ValidatePerformance.
	Performance PerformanceTargets

	// Capacity holds the per-level limits checked by ValidateCapacity and
	// enforced by ManageCapacity.
	Capacity CapacityLimits

	// Maintenance holds the thresholds that drive batch recommendations.
	Maintenance MaintenanceThresholds

	// Breaker tunes the per-level circuit breaker.
	Breaker BreakerConfig

	// Efficiency tunes the 0-100 efficiency score.
	Efficiency EfficiencyConfig

	// AuditEnabled routes a record per mutating operation to the event
	// sink.
	AuditEnabled bool
}

// PerformanceTargets are the self-test expectations for
// ValidatePerformance.
type PerformanceTargets struct {
	// MemoryMaxLatency is the acceptable average response time for the
	// MEMORY level. Defaults to 5ms.
	MemoryMaxLatency time.Duration
	// DatabaseMaxLatency is the acceptable average response time for the
	// DATABASE level. Defaults to 50ms.
	DatabaseMaxLatency time.Duration
	// MinThroughput is the minimum sustained operations per second.
	// Defaults to 100.
	MinThroughput float64
	// MinHitRatio is the minimum acceptable aggregate hit ratio, checked
	// only once traffic has been recorded. Defaults to 0.5.
	MinHitRatio float64
}

func (t *PerformanceTargets) applyDefaults() {
	if t.MemoryMaxLatency <= 0 {
		t.MemoryMaxLatency = 5 * time.Millisecond
	}
	if t.DatabaseMaxLatency <= 0 {
		t.DatabaseMaxLatency = 50 * time.Millisecond
	}
	if t.MinThroughput <= 0 {
		t.MinThroughput = 100
	}
	if t.MinHitRatio <= 0 {
		t.MinHitRatio = 0.5
	}
}

// CapacityLimits bound each level's footprint. Zero means unlimited.
type CapacityLimits struct {
	MaxEntries map[Level]int64
	MaxBytes   map[Level]int64
	// CeilingRatio is the fraction of a limit at which ManageCapacity
	// starts corrective action. Defaults to 0.9.
	CeilingRatio float64
}

func (c *CapacityLimits) applyDefaults() {
	if c.CeilingRatio <= 0 || c.CeilingRatio > 1 {
		c.CeilingRatio = 0.9
	}
}

// MaintenanceThresholds drive the recommendation list returned by batch
// maintenance. Zero disables a threshold.
type MaintenanceThresholds struct {
	// MaxKeys above which cleanup is recommended.
	MaxKeys int64
	// MaxBytes above which vacuum is recommended.
	MaxBytes int64
}

// BreakerConfig tunes the per-level circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that opens the
	// circuit. Defaults to 5.
	MaxFailures int
	// Cooldown is how long an open circuit waits before probing the
	// backend again. Defaults to 30s.
	Cooldown time.Duration
}

func (c *Config) applyDefaults() {
	c.Performance.applyDefaults()
	c.Capacity.applyDefaults()
	c.Efficiency.applyDefaults()
}

// resolveTTLs parses the configured namespace TTL strings once, up front,
// so a bad duration string fails construction instead of a later Put.
func (c *Config) resolveTTLs() (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(c.NamespaceTTL))
	for ns, raw := range c.NamespaceTTL {
		d, err := str2duration.ParseDuration(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "cache: bad TTL %q for namespace %q", raw, ns)
		}
		out[ns] = d
	}
	return out, nil
}
