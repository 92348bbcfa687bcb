package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitRatioBounds(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.HitRatio(), "no samples yet")
	assert.Zero(t, s.HitRatio(LevelMemory))

	for range 7 {
		s.recordHit(LevelMemory, time.Millisecond)
	}
	for range 3 {
		s.recordMiss(LevelMemory, time.Millisecond)
	}
	ratio := s.HitRatio(LevelMemory)
	assert.InDelta(t, 0.7, ratio, 0.001)
	assert.GreaterOrEqual(t, ratio, 0.0)
	assert.LessOrEqual(t, ratio, 1.0)
}

func TestHitRatioWeightedBySamples(t *testing.T) {
	s := NewStats()

	// 1 hit / 1 miss at MEMORY, 98 hits at DATABASE. A naive average of
	// per-level ratios would say 0.75; sample weighting says 0.99.
	s.recordHit(LevelMemory, time.Millisecond)
	s.recordMiss(LevelMemory, time.Millisecond)
	for range 98 {
		s.recordHit(LevelDatabase, time.Millisecond)
	}
	assert.InDelta(t, 0.99, s.HitRatio(), 0.001)
	assert.InDelta(t, 0.5, s.HitRatio(LevelMemory), 0.001)
	assert.InDelta(t, 1.0, s.HitRatio(LevelDatabase), 0.001)
}

func TestStatsSnapshotAndReset(t *testing.T) {
	s := NewStats()
	s.recordHit(LevelRequest, 10*time.Microsecond)
	s.recordMiss(LevelRequest, 20*time.Microsecond)
	s.recordPut(LevelRequest)
	s.recordDelete(LevelRequest)

	snap := s.SnapshotLevel(LevelRequest)
	assert.EqualValues(t, 1, snap.Hits)
	assert.EqualValues(t, 1, snap.Misses)
	assert.EqualValues(t, 1, snap.Puts)
	assert.EqualValues(t, 1, snap.Deletes)
	assert.Equal(t, 15*time.Microsecond, snap.AvgResponseTime)
	assert.InDelta(t, 0.5, snap.HitRatio, 0.001)

	s.Reset()
	snap = s.SnapshotLevel(LevelRequest)
	assert.Zero(t, snap.Hits)
	assert.Zero(t, snap.Misses)
	assert.Zero(t, snap.AvgResponseTime)
	assert.Zero(t, s.HitRatio())
}

func TestStatisticsCacheSize(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	ctx := context.Background()

	for i := range 5 {
		_, err := c.Put(ctx, fmt.Sprintf("size:%d", i), "payload", 0)
		require.NoError(t, err)
	}

	total := c.Statistics().CacheSize(ctx)
	// MEMORY and DATABASE each hold the 5 entries.
	assert.EqualValues(t, 10, total.Count)
	assert.Positive(t, total.Bytes)

	dbOnly := c.Statistics().CacheSize(ctx, LevelDatabase)
	assert.EqualValues(t, 5, dbOnly.Count)
}

func TestEfficiencyScoreBoundedAndMonotonic(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	ctx := context.Background()
	svc := c.Statistics()

	// All misses first.
	for i := range 10 {
		_, _, err := c.Get(ctx, fmt.Sprintf("eff:%d", i))
		require.NoError(t, err)
	}
	low := svc.Efficiency(ctx)
	assert.GreaterOrEqual(t, low.Score, 0.0)
	assert.LessOrEqual(t, low.Score, 100.0)
	assert.Zero(t, low.HitRatio)

	// Now a hit-heavy phase; with latency and size stable, a higher hit
	// ratio must not lower the score.
	_, err := c.Put(ctx, "eff:hot", "v", 0)
	require.NoError(t, err)
	for range 100 {
		_, found, err := c.Get(ctx, "eff:hot")
		require.NoError(t, err)
		require.True(t, found)
	}
	high := svc.Efficiency(ctx)
	assert.Greater(t, high.HitRatio, low.HitRatio)
	assert.GreaterOrEqual(t, high.Score, low.Score)
	assert.LessOrEqual(t, high.Score, 100.0)
}

func TestEfficiencyTracksSizeGrowth(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	ctx := context.Background()
	svc := c.Statistics()

	_, err := c.Put(ctx, "growth:seed", "v", 0)
	require.NoError(t, err)
	first := svc.Efficiency(ctx)
	assert.Zero(t, first.SizeGrowth, "first measurement has no baseline")

	for i := range 20 {
		_, err := c.Put(ctx, fmt.Sprintf("growth:%d", i), "a larger payload to grow the store", 0)
		require.NoError(t, err)
	}
	second := svc.Efficiency(ctx)
	assert.Positive(t, second.SizeGrowth)
	assert.Less(t, second.StabilityScore, 1.0)

	svc.Reset()
	third := svc.Efficiency(ctx)
	assert.Zero(t, third.SizeGrowth, "reset clears the baseline")
}
