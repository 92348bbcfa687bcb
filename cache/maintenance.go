package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Maintenance operation names accepted by Run and MaintainDatabase.
const (
	OpCleanup  = "cleanup"
	OpOptimize = "optimize"
	OpVacuum   = "vacuum"
	OpReindex  = "reindex"
	OpValidate = "validate"
)

// OperationResult reports one maintenance operation's outcome. Failures
// are carried in Errors rather than returned, so batches always complete.
type OperationResult struct {
	Operation      string
	Success        bool
	ItemsProcessed int64
	Duration       time.Duration
	Errors         []string
}

// MaintenanceSnapshot captures the durable store's state around a batch.
type MaintenanceSnapshot struct {
	Size    SizeInfo
	HitRate float64
	Taken   time.Time
}

// BatchResult aggregates a MaintainDatabase call.
type BatchResult struct {
	TotalOperations      int
	SuccessfulOperations int
	FailedOperations     int
	SuccessRate          float64
	Results              []OperationResult
	Before               MaintenanceSnapshot
	After                MaintenanceSnapshot
	Recommendations      []string
}

// MaintenanceService runs housekeeping against the DATABASE level. The
// REQUEST level is transient and the MEMORY level self-expires, so the
// durable store is where cleanup, compaction, and integrity checks earn
// their keep.
type MaintenanceService struct {
	c  *Coordinator
	db MaintainableStore
}

// Maintenance returns the maintenance service, or nil when the DATABASE
// store does not support the maintenance catalog.
func (c *Coordinator) Maintenance() *MaintenanceService {
	db, ok := c.stores[LevelDatabase].(MaintainableStore)
	if !ok {
		return nil
	}
	return &MaintenanceService{c: c, db: db}
}

// Run executes one named maintenance operation. An unknown name fails
// that operation with ErrUnknownMaintenanceOp in its Errors, nothing
// more.
func (s *MaintenanceService) Run(ctx context.Context, op string) OperationResult {
	start := time.Now()
	result := OperationResult{Operation: op}

	var err error
	switch op {
	case OpCleanup:
		result.ItemsProcessed, err = s.db.Cleanup(ctx)
	case OpOptimize:
		err = s.db.Optimize(ctx)
	case OpVacuum:
		err = s.db.Vacuum(ctx)
	case OpReindex:
		err = s.db.Reindex(ctx)
	case OpValidate:
		result.ItemsProcessed, err = s.validate(ctx)
	default:
		err = errors.Wrapf(ErrUnknownMaintenanceOp, "%q", op)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		s.c.log.Warn("maintenance operation failed",
			zap.String("op", op), zap.Error(err))
		return result
	}
	result.Success = true
	return result
}

// validate round-trips a synthetic probe through the durable store and
// checks the bytes came back intact.
func (s *MaintenanceService) validate(ctx context.Context) (int64, error) {
	probeKey := "tiercache:probe:" + uuid.NewString()
	payload := []byte("integrity probe " + probeKey)
	sum := xxhash.Sum64(payload)

	if err := s.db.Put(ctx, probeKey, payload, time.Minute); err != nil {
		return 0, errors.Wrap(err, "probe write")
	}
	defer func() { _, _ = s.db.Forget(ctx, probeKey) }()

	got, ok, err := s.db.Get(ctx, probeKey)
	if err != nil {
		return 0, errors.Wrap(err, "probe read")
	}
	if !ok {
		return 0, errors.New("probe missing after write")
	}
	if xxhash.Sum64(got) != sum {
		return 0, errors.New("probe checksum mismatch after round-trip")
	}
	return 1, nil
}

// MaintainDatabase runs a batch of maintenance operations, aggregating a
// summary with before/after snapshots and threshold-driven
// recommendations. Individual failures never abort the batch.
func (s *MaintenanceService) MaintainDatabase(ctx context.Context, ops []string) BatchResult {
	batch := BatchResult{
		TotalOperations: len(ops),
		Before:          s.snapshot(ctx),
	}
	for _, op := range ops {
		result := s.Run(ctx, op)
		batch.Results = append(batch.Results, result)
		if result.Success {
			batch.SuccessfulOperations++
		} else {
			batch.FailedOperations++
		}
	}
	if batch.TotalOperations > 0 {
		batch.SuccessRate = float64(batch.SuccessfulOperations) / float64(batch.TotalOperations)
	}
	batch.After = s.snapshot(ctx)
	batch.Recommendations = s.recommend(batch.After)
	return batch
}

func (s *MaintenanceService) snapshot(ctx context.Context) MaintenanceSnapshot {
	snap := MaintenanceSnapshot{
		HitRate: s.c.stats.HitRatio(LevelDatabase),
		Taken:   time.Now(),
	}
	if info, err := s.db.Size(ctx); err == nil {
		snap.Size = info
	}
	return snap
}

func (s *MaintenanceService) recommend(snap MaintenanceSnapshot) []string {
	var recs []string
	thresholds := s.c.cfg.Maintenance
	if thresholds.MaxKeys > 0 && snap.Size.Count > thresholds.MaxKeys {
		recs = append(recs, fmt.Sprintf(
			"durable store holds %s keys (limit %s); schedule %q more often",
			humanize.Comma(snap.Size.Count), humanize.Comma(thresholds.MaxKeys), OpCleanup))
	}
	if thresholds.MaxBytes > 0 && snap.Size.Bytes > thresholds.MaxBytes {
		recs = append(recs, fmt.Sprintf(
			"durable store uses %s (limit %s); run %q to reclaim space",
			humanize.Bytes(uint64(snap.Size.Bytes)), humanize.Bytes(uint64(thresholds.MaxBytes)), OpVacuum))
	}
	return recs
}
