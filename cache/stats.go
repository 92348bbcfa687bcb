package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// levelCounters holds one level's monotonic operation counters. Counters
// only grow within a process lifetime; Reset is the single zeroing path.
type levelCounters struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	puts        atomic.Uint64
	deletes     atomic.Uint64
	respNanos   atomic.Int64
	respSamples atomic.Uint64
}

// Stats accumulates per-level hit/miss/put/delete counters. Each
// Coordinator owns its own Stats instance, so parallel coordinators (tests
// included) never cross-contaminate counts.
type Stats struct {
	levels [3]levelCounters
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordHit(l Level, d time.Duration) {
	c := &s.levels[l]
	c.hits.Add(1)
	c.respNanos.Add(int64(d))
	c.respSamples.Add(1)
}

func (s *Stats) recordMiss(l Level, d time.Duration) {
	c := &s.levels[l]
	c.misses.Add(1)
	c.respNanos.Add(int64(d))
	c.respSamples.Add(1)
}

func (s *Stats) recordPut(l Level)    { s.levels[l].puts.Add(1) }
func (s *Stats) recordDelete(l Level) { s.levels[l].deletes.Add(1) }

// Reset zeroes all counters. Counters are never zeroed implicitly.
func (s *Stats) Reset() {
	for i := range s.levels {
		c := &s.levels[i]
		c.hits.Store(0)
		c.misses.Store(0)
		c.puts.Store(0)
		c.deletes.Store(0)
		c.respNanos.Store(0)
		c.respSamples.Store(0)
	}
}

// LevelSnapshot is a point-in-time view of one level's counters.
type LevelSnapshot struct {
	Level           Level
	Hits            uint64
	Misses          uint64
	Puts            uint64
	Deletes         uint64
	HitRatio        float64
	AvgResponseTime time.Duration
}

// Snapshot returns a point-in-time view of every level's counters.
func (s *Stats) Snapshot() []LevelSnapshot {
	out := make([]LevelSnapshot, 0, len(s.levels))
	for _, l := range Levels() {
		out = append(out, s.SnapshotLevel(l))
	}
	return out
}

// SnapshotLevel returns a point-in-time view of one level's counters.
func (s *Stats) SnapshotLevel(l Level) LevelSnapshot {
	c := &s.levels[l]
	snap := LevelSnapshot{
		Level:   l,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Puts:    c.puts.Load(),
		Deletes: c.deletes.Load(),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRatio = float64(snap.Hits) / float64(total)
	}
	if samples := c.respSamples.Load(); samples > 0 {
		snap.AvgResponseTime = time.Duration(c.respNanos.Load() / int64(samples))
	}
	return snap
}

// HitRatio aggregates the hit ratio across the given levels, weighted by
// sample count rather than averaging per-level ratios. With no levels
// given it covers all of them. Returns 0 when nothing has been recorded;
// the result is always in [0, 1].
func (s *Stats) HitRatio(levels ...Level) float64 {
	if len(levels) == 0 {
		levels = Levels()
	}
	var hits, total uint64
	for _, l := range levels {
		c := &s.levels[l]
		h := c.hits.Load()
		hits += h
		total += h + c.misses.Load()
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// StatisticsService answers size and efficiency questions about a running
// coordinator. It reads the coordinator-owned Stats and queries each
// store's own Size.
type StatisticsService struct {
	stats  *Stats
	stores func(levels []Level) map[Level]Store
	cfg    EfficiencyConfig

	mu            sync.Mutex
	baselineBytes int64
	baselineSet   bool
}

// EfficiencyConfig tunes the 0-100 efficiency score. The weights are
// policy, not law, but the score stays monotonic in each input.
type EfficiencyConfig struct {
	// LatencyBudget is the average response time that scores zero on the
	// latency axis. Defaults to 50ms.
	LatencyBudget time.Duration
	// HitRatioWeight + LatencyWeight + StabilityWeight should sum to 100.
	// Defaults: 60 / 30 / 10.
	HitRatioWeight  float64
	LatencyWeight   float64
	StabilityWeight float64
}

func (c *EfficiencyConfig) applyDefaults() {
	if c.LatencyBudget <= 0 {
		c.LatencyBudget = 50 * time.Millisecond
	}
	if c.HitRatioWeight == 0 && c.LatencyWeight == 0 && c.StabilityWeight == 0 {
		c.HitRatioWeight = 60
		c.LatencyWeight = 30
		c.StabilityWeight = 10
	}
}

// EfficiencyReport is the outcome of an efficiency measurement.
type EfficiencyReport struct {
	Score          float64
	HitRatio       float64
	AvgResponse    time.Duration
	SizeBytes      int64
	SizeGrowth     float64
	PerLevel       []LevelSnapshot
	MeasuredAt     time.Time
	LatencyScore   float64
	StabilityScore float64
}

// CacheSize sums the Size of every requested level's store. Disabled or
// failing stores contribute nothing rather than erroring.
func (svc *StatisticsService) CacheSize(ctx context.Context, levels ...Level) SizeInfo {
	var total SizeInfo
	for _, store := range svc.stores(levels) {
		info, err := store.Size(ctx)
		if err != nil {
			continue
		}
		total.Count += info.Count
		total.Bytes += info.Bytes
	}
	return total
}

// HitRatio aggregates across the requested levels, weighted by samples.
func (svc *StatisticsService) HitRatio(levels ...Level) float64 {
	return svc.stats.HitRatio(levels...)
}

// Snapshot returns the per-level counter view.
func (svc *StatisticsService) Snapshot() []LevelSnapshot {
	return svc.stats.Snapshot()
}

// Reset zeroes the coordinator's counters and the efficiency baseline.
func (svc *StatisticsService) Reset() {
	svc.stats.Reset()
	svc.mu.Lock()
	svc.baselineSet = false
	svc.baselineBytes = 0
	svc.mu.Unlock()
}

// Efficiency combines hit ratio, average response time, and size growth
// into a bounded 0-100 score. A higher hit ratio never lowers the score,
// a lower latency never lowers it, and slower size growth never lowers it.
func (svc *StatisticsService) Efficiency(ctx context.Context) EfficiencyReport {
	snaps := svc.stats.Snapshot()
	hitRatio := svc.stats.HitRatio()

	var respTotal time.Duration
	var respLevels int64
	for _, snap := range snaps {
		if snap.AvgResponseTime > 0 {
			respTotal += snap.AvgResponseTime
			respLevels++
		}
	}
	var avgResp time.Duration
	if respLevels > 0 {
		avgResp = respTotal / time.Duration(respLevels)
	}

	size := svc.CacheSize(ctx)

	svc.mu.Lock()
	var growth float64
	if svc.baselineSet && svc.baselineBytes > 0 {
		growth = float64(size.Bytes-svc.baselineBytes) / float64(svc.baselineBytes)
	}
	svc.baselineBytes = size.Bytes
	svc.baselineSet = true
	svc.mu.Unlock()

	latencyScore := 1 - float64(avgResp)/float64(svc.cfg.LatencyBudget)
	latencyScore = clamp01(latencyScore)
	stabilityScore := clamp01(1 - growth)

	score := svc.cfg.HitRatioWeight*hitRatio +
		svc.cfg.LatencyWeight*latencyScore +
		svc.cfg.StabilityWeight*stabilityScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return EfficiencyReport{
		Score:          score,
		HitRatio:       hitRatio,
		AvgResponse:    avgResp,
		SizeBytes:      size.Bytes,
		SizeGrowth:     growth,
		PerLevel:       snaps,
		MeasuredAt:     time.Now(),
		LatencyScore:   latencyScore,
		StabilityScore: stabilityScore,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
