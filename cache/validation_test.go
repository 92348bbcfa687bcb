package cache

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePerformancePasses(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Performance: PerformanceTargets{
			MemoryMaxLatency:   time.Second,
			DatabaseMaxLatency: 2 * time.Second,
			MinThroughput:      1,
			MinHitRatio:        0.1,
		},
	})
	ctx := context.Background()

	report := c.Validation().ValidatePerformance(ctx)
	assert.Equal(t, StatusPass, report.OverallStatus)
	assert.Empty(t, report.Recommendations)

	names := make([]string, 0, len(report.Requirements))
	for _, req := range report.Requirements {
		names = append(names, req.Name)
		assert.Equal(t, StatusPass, req.Status)
	}
	assert.Contains(t, names, "memory response time")
	assert.Contains(t, names, "database response time")
	assert.Contains(t, names, "throughput")
	// No traffic recorded yet, so the hit ratio requirement is skipped.
	assert.NotContains(t, names, "hit ratio")
}

func TestValidatePerformanceChecksHitRatioOnceTrafficExists(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Performance: PerformanceTargets{
			MemoryMaxLatency:   time.Second,
			DatabaseMaxLatency: 2 * time.Second,
			MinThroughput:      1,
			MinHitRatio:        0.5,
		},
	})
	ctx := context.Background()

	_, err := c.Put(ctx, "hot", "v", 0)
	require.NoError(t, err)
	for range 10 {
		_, found, err := c.Get(ctx, "hot")
		require.NoError(t, err)
		require.True(t, found)
	}

	report := c.Validation().ValidatePerformance(ctx)
	assert.Equal(t, StatusPass, report.OverallStatus)
	var sawHitRatio bool
	for _, req := range report.Requirements {
		if req.Name == "hit ratio" {
			sawHitRatio = true
			assert.Equal(t, StatusPass, req.Status)
		}
	}
	assert.True(t, sawHitRatio)
}

func TestValidatePerformanceFailsImpossibleLatencyTarget(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Performance: PerformanceTargets{
			MemoryMaxLatency:   time.Nanosecond,
			DatabaseMaxLatency: 2 * time.Second,
			MinThroughput:      1,
			MinHitRatio:        0.1,
		},
	})

	report := c.Validation().ValidatePerformance(context.Background())
	assert.Equal(t, StatusFail, report.OverallStatus)
	assert.NotEmpty(t, report.Recommendations)
	for _, req := range report.Requirements {
		if req.Name == "memory response time" {
			assert.Equal(t, StatusFail, req.Status)
		}
	}
}

func TestValidateCapacityHeadroom(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Capacity: CapacityLimits{
			MaxEntries: map[Level]int64{LevelDatabase: 10},
		},
	})
	ctx := context.Background()

	for i := range 3 {
		_, err := c.PutIn(ctx, LevelDatabase, fmt.Sprintf("cap:%d", i), "v", 0)
		require.NoError(t, err)
	}

	report := c.Validation().ValidateCapacity(ctx)
	assert.Equal(t, StatusPass, report.OverallStatus)
	assert.Positive(t, report.SystemMemoryUsedPct)

	var db LevelCapacity
	for _, lc := range report.Levels {
		if lc.Level == LevelDatabase {
			db = lc
		}
	}
	assert.Equal(t, StatusPass, db.Status)
	assert.EqualValues(t, 3, db.Size.Count)
	assert.InDelta(t, 0.7, db.EntryHeadroom, 0.001)
	assert.Equal(t, 1.0, db.ByteHeadroom, "no byte limit means full headroom")
}

func TestValidateCapacityFailsOverLimit(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Capacity: CapacityLimits{
			MaxEntries: map[Level]int64{LevelDatabase: 2},
		},
	})
	ctx := context.Background()

	for i := range 3 {
		_, err := c.PutIn(ctx, LevelDatabase, fmt.Sprintf("over:%d", i), "v", 0)
		require.NoError(t, err)
	}

	report := c.Validation().ValidateCapacity(ctx)
	assert.Equal(t, StatusFail, report.OverallStatus)
	assert.NotEmpty(t, report.Recommendations)
}

func TestValidateConcurrentBoundedRun(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	ctx := context.Background()

	report := c.Validation().ValidateConcurrent(ctx, 60, 10*time.Second)
	assert.Equal(t, 60, report.Requested)
	assert.Equal(t, 60, report.Completed)
	assert.Zero(t, report.Failed)
	assert.False(t, report.TimedOut)
	assert.Positive(t, report.Throughput)

	assert.LessOrEqual(t, report.MinLatency, report.AvgLatency)
	assert.LessOrEqual(t, report.AvgLatency, report.MaxLatency)
	assert.LessOrEqual(t, report.P95Latency, report.MaxLatency)

	// The synthetic load keys are swept out after the run.
	has, err := c.Has(ctx, "tiercache:load:0")
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestValidateConcurrentSweepsPrefixedKeys(t *testing.T) {
	c := newTestCoordinator(t, Config{Prefix: "prod"})
	ctx := context.Background()

	report := c.Validation().ValidateConcurrent(ctx, 20, 10*time.Second)
	assert.Equal(t, 20, report.Completed)

	// The sweep pattern must carry the configured prefix too.
	has, err := c.Has(ctx, "tiercache:load:0")
	assert.NoError(t, err)
	assert.False(t, has)
	assert.Zero(t, c.TrackedKeys())
}

func TestManageCapacityUnderCeiling(t *testing.T) {
	c := newTestCoordinator(t, Config{})

	out := c.Validation().ManageCapacity(context.Background(), CapacityOptions{})
	require.Len(t, out.Actions, 1)
	assert.Contains(t, out.Actions[0], "no action taken")
	assert.Equal(t, out.Before, out.After)
}

func TestManageCapacityRunsCleanupOverCeiling(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Capacity: CapacityLimits{
			MaxEntries: map[Level]int64{LevelDatabase: 4},
		},
	})
	ctx := context.Background()

	for i := range 2 {
		_, err := c.PutIn(ctx, LevelDatabase, fmt.Sprintf("mc:stale:%d", i), "v", 20*time.Millisecond)
		require.NoError(t, err)
	}
	for i := range 3 {
		_, err := c.PutIn(ctx, LevelDatabase, fmt.Sprintf("mc:live:%d", i), "v", 0)
		require.NoError(t, err)
	}
	time.Sleep(50 * time.Millisecond)

	out := c.Validation().ManageCapacity(ctx, CapacityOptions{})
	assert.Greater(t, len(out.Actions), 1)
	var ranCleanup bool
	for _, a := range out.Actions {
		if strings.HasPrefix(a, "ran cleanup") {
			ranCleanup = true
		}
	}
	assert.True(t, ranCleanup)

	var before, after LevelCapacity
	for _, lc := range out.Before.Levels {
		if lc.Level == LevelDatabase {
			before = lc
		}
	}
	for _, lc := range out.After.Levels {
		if lc.Level == LevelDatabase {
			after = lc
		}
	}
	assert.EqualValues(t, 5, before.Size.Count)
	assert.EqualValues(t, 3, after.Size.Count)
	assert.Greater(t, after.EntryHeadroom, before.EntryHeadroom)
}
