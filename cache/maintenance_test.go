package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceNilWithoutMaintainableDatabase(t *testing.T) {
	c, err := New(Config{}, WithStore(LevelMemory, NewLocalMemoryStore(64, 0)))
	require.NoError(t, err)
	assert.Nil(t, c.Maintenance())
}

func TestMaintenanceCleanupRemovesExpiredOnly(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	ctx := context.Background()
	m := c.Maintenance()
	require.NotNil(t, m)

	for _, key := range []string{"stale:1", "stale:2", "stale:3"} {
		ok, err := c.PutIn(ctx, LevelDatabase, key, "v", 20*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
	}
	for _, key := range []string{"live:1", "live:2"} {
		ok, err := c.PutIn(ctx, LevelDatabase, key, "v", 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
	time.Sleep(50 * time.Millisecond)

	result := m.Run(ctx, OpCleanup)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.EqualValues(t, 3, result.ItemsProcessed)
	assert.Greater(t, result.Duration, time.Duration(0))

	for _, key := range []string{"live:1", "live:2"} {
		has, err := c.HasIn(ctx, LevelDatabase, key)
		assert.NoError(t, err)
		assert.True(t, has)
	}
}

func TestMaintenanceUnknownOpFailsOnlyItself(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	m := c.Maintenance()
	require.NotNil(t, m)

	batch := m.MaintainDatabase(context.Background(), []string{OpCleanup, "defragment", OpOptimize})
	assert.Equal(t, 3, batch.TotalOperations)
	assert.Equal(t, 2, batch.SuccessfulOperations)
	assert.Equal(t, 1, batch.FailedOperations)
	assert.InDelta(t, 2.0/3.0, batch.SuccessRate, 0.001)

	require.Len(t, batch.Results, 3)
	failed := batch.Results[1]
	assert.Equal(t, "defragment", failed.Operation)
	assert.False(t, failed.Success)
	require.NotEmpty(t, failed.Errors)
	assert.Contains(t, failed.Errors[0], "defragment")
}

func TestMaintenanceValidateProbe(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	ctx := context.Background()
	m := c.Maintenance()
	require.NotNil(t, m)

	before, err := c.stores[LevelDatabase].Size(ctx)
	require.NoError(t, err)

	result := m.Run(ctx, OpValidate)
	assert.True(t, result.Success)
	assert.EqualValues(t, 1, result.ItemsProcessed)

	// The probe cleans up after itself.
	after, err := c.stores[LevelDatabase].Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Count, after.Count)
}

func TestMaintainDatabaseSnapshotsAndRecommendations(t *testing.T) {
	c := newTestCoordinator(t, Config{
		Maintenance: MaintenanceThresholds{MaxKeys: 2},
	})
	ctx := context.Background()
	m := c.Maintenance()
	require.NotNil(t, m)

	for _, key := range []string{"a", "b", "c", "d"} {
		_, err := c.PutIn(ctx, LevelDatabase, key, "v", 0)
		require.NoError(t, err)
	}

	batch := m.MaintainDatabase(ctx, []string{OpOptimize, OpVacuum, OpReindex})
	assert.Equal(t, 3, batch.SuccessfulOperations)
	assert.Zero(t, batch.FailedOperations)
	assert.Equal(t, 1.0, batch.SuccessRate)
	assert.EqualValues(t, 4, batch.Before.Size.Count)
	assert.EqualValues(t, 4, batch.After.Size.Count)
	assert.False(t, batch.After.Taken.Before(batch.Before.Taken))

	// Over the key threshold, so the batch recommends scheduling cleanup.
	require.NotEmpty(t, batch.Recommendations)
	assert.Contains(t, batch.Recommendations[0], OpCleanup)
}

func TestMaintainDatabaseEmptyBatch(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	m := c.Maintenance()
	require.NotNil(t, m)

	batch := m.MaintainDatabase(context.Background(), nil)
	assert.Zero(t, batch.TotalOperations)
	assert.Zero(t, batch.SuccessRate)
	assert.Empty(t, batch.Results)
}
