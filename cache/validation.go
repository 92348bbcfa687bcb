package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ValidationStatus is a self-test verdict.
type ValidationStatus string

const (
	StatusPass  ValidationStatus = "pass"
	StatusFail  ValidationStatus = "fail"
	StatusError ValidationStatus = "error"
)

// maxConcurrentValidation caps the load-harness duration regardless of
// what the caller asks for, so a validation run can never become a
// runaway load test.
const maxConcurrentValidation = 30 * time.Second

// ValidationService runs performance, capacity, and concurrency self-tests
// against the coordinator's live stores. It is an out-of-band diagnostic
// surface, not a production code path; every check returns a structured
// report instead of an error.
type ValidationService struct {
	c *Coordinator
}

// Validation returns the validation service bound to this coordinator.
func (c *Coordinator) Validation() *ValidationService {
	return &ValidationService{c: c}
}

// RequirementResult is one checked requirement inside a report.
type RequirementResult struct {
	Name     string
	Status   ValidationStatus
	Observed string
	Target   string
}

// PerformanceReport is the outcome of ValidatePerformance.
type PerformanceReport struct {
	OverallStatus   ValidationStatus
	Requirements    []RequirementResult
	Recommendations []string
}

// performanceProbes is how many synthetic operations each level's latency
// measurement runs.
const performanceProbes = 50

// ValidatePerformance runs synthetic timed operations against each
// enabled driver-backed level and compares observed latency, throughput,
// and hit ratio against the configured targets.
func (s *ValidationService) ValidatePerformance(ctx context.Context) PerformanceReport {
	targets := s.c.cfg.Performance
	report := PerformanceReport{OverallStatus: StatusPass}

	type levelTarget struct {
		level Level
		max   time.Duration
	}
	checks := []levelTarget{
		{LevelMemory, targets.MemoryMaxLatency},
		{LevelDatabase, targets.DatabaseMaxLatency},
	}

	var totalOps int
	var totalElapsed time.Duration
	for _, check := range checks {
		stores := s.c.enabledStores([]Level{check.level})
		store, ok := stores[check.level]
		if !ok {
			continue
		}
		avg, err := s.probeLatency(ctx, store)
		name := check.level.String() + " response time"
		if err != nil {
			report.OverallStatus = StatusError
			report.Requirements = append(report.Requirements, RequirementResult{
				Name:     name,
				Status:   StatusError,
				Observed: err.Error(),
				Target:   check.max.String(),
			})
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("%s level backend errored during probing; check driver health", check.level))
			continue
		}
		totalOps += performanceProbes * 2
		totalElapsed += avg * performanceProbes * 2
		req := RequirementResult{
			Name:     name,
			Status:   StatusPass,
			Observed: avg.String(),
			Target:   check.max.String(),
		}
		if avg > check.max {
			req.Status = StatusFail
			if report.OverallStatus == StatusPass {
				report.OverallStatus = StatusFail
			}
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("%s level averaged %s against a %s target; consider colocating the backend or raising the target",
					check.level, avg, check.max))
		}
		report.Requirements = append(report.Requirements, req)
	}

	if totalElapsed > 0 {
		throughput := float64(totalOps) / totalElapsed.Seconds()
		req := RequirementResult{
			Name:     "throughput",
			Status:   StatusPass,
			Observed: fmt.Sprintf("%.0f ops/s", throughput),
			Target:   fmt.Sprintf("%.0f ops/s", targets.MinThroughput),
		}
		if throughput < targets.MinThroughput {
			req.Status = StatusFail
			if report.OverallStatus == StatusPass {
				report.OverallStatus = StatusFail
			}
			report.Recommendations = append(report.Recommendations,
				"sustained throughput is below target; profile backend round-trips")
		}
		report.Requirements = append(report.Requirements, req)
	}

	// Hit ratio is meaningful only once real traffic has been recorded.
	if ratio := s.c.stats.HitRatio(); s.hasTraffic() {
		req := RequirementResult{
			Name:     "hit ratio",
			Status:   StatusPass,
			Observed: fmt.Sprintf("%.2f", ratio),
			Target:   fmt.Sprintf("%.2f", targets.MinHitRatio),
		}
		if ratio < targets.MinHitRatio {
			req.Status = StatusFail
			if report.OverallStatus == StatusPass {
				report.OverallStatus = StatusFail
			}
			report.Recommendations = append(report.Recommendations,
				"hit ratio is below target; review TTLs and invalidation breadth")
		}
		report.Requirements = append(report.Requirements, req)
	}

	return report
}

func (s *ValidationService) hasTraffic() bool {
	for _, snap := range s.c.stats.Snapshot() {
		if snap.Hits+snap.Misses > 0 {
			return true
		}
	}
	return false
}

// probeLatency round-trips synthetic entries through a store and returns
// the average operation latency. Probe keys are forgotten afterwards.
func (s *ValidationService) probeLatency(ctx context.Context, store Store) (time.Duration, error) {
	key := "tiercache:perf:" + uuid.NewString()
	payload := []byte("performance probe payload")
	start := time.Now()
	for i := 0; i < performanceProbes; i++ {
		if err := store.Put(ctx, key, payload, time.Minute); err != nil {
			return 0, err
		}
		if _, _, err := store.Get(ctx, key); err != nil {
			return 0, err
		}
	}
	elapsed := time.Since(start)
	_, _ = store.Forget(ctx, key)
	return elapsed / (performanceProbes * 2), nil
}

// LevelCapacity is one level's footprint against its configured limits.
type LevelCapacity struct {
	Level         Level
	Size          SizeInfo
	MaxEntries    int64
	MaxBytes      int64
	EntryHeadroom float64 // fraction of the entry limit still free; 1 when unlimited
	ByteHeadroom  float64
	Status        ValidationStatus
}

// CapacityReport is the outcome of ValidateCapacity.
type CapacityReport struct {
	OverallStatus       ValidationStatus
	Levels              []LevelCapacity
	SystemMemoryUsedPct float64
	Recommendations     []string
}

// ValidateCapacity compares each level's current footprint against the
// configured limits and reports remaining headroom, along with overall
// system memory pressure.
func (s *ValidationService) ValidateCapacity(ctx context.Context) CapacityReport {
	limits := s.c.cfg.Capacity
	report := CapacityReport{OverallStatus: StatusPass}

	for level, store := range s.c.enabledStores(nil) {
		lc := LevelCapacity{
			Level:         level,
			MaxEntries:    limits.MaxEntries[level],
			MaxBytes:      limits.MaxBytes[level],
			EntryHeadroom: 1,
			ByteHeadroom:  1,
			Status:        StatusPass,
		}
		info, err := store.Size(ctx)
		if err != nil {
			lc.Status = StatusError
			report.OverallStatus = StatusError
			report.Levels = append(report.Levels, lc)
			continue
		}
		lc.Size = info
		if lc.MaxEntries > 0 {
			lc.EntryHeadroom = 1 - float64(info.Count)/float64(lc.MaxEntries)
		}
		if lc.MaxBytes > 0 {
			lc.ByteHeadroom = 1 - float64(info.Bytes)/float64(lc.MaxBytes)
		}
		if lc.EntryHeadroom <= 0 || lc.ByteHeadroom <= 0 {
			lc.Status = StatusFail
			if report.OverallStatus == StatusPass {
				report.OverallStatus = StatusFail
			}
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("%s level is over its configured limit (%s in %s entries); run ManageCapacity",
					level, humanize.Bytes(uint64(info.Bytes)), humanize.Comma(info.Count)))
		}
		report.Levels = append(report.Levels, lc)
	}
	sort.Slice(report.Levels, func(i, j int) bool {
		return report.Levels[i].Level < report.Levels[j].Level
	})

	if vm, err := mem.VirtualMemory(); err == nil {
		report.SystemMemoryUsedPct = vm.UsedPercent
		if vm.UsedPercent > 90 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("system memory is %.0f%% used; shrink the memory level's limits", vm.UsedPercent))
		}
	}
	return report
}

// ConcurrentReport is the outcome of a concurrent load simulation.
type ConcurrentReport struct {
	Requested  int
	Completed  int
	Failed     int
	Elapsed    time.Duration
	Throughput float64 // operations per second
	MinLatency time.Duration
	AvgLatency time.Duration
	P95Latency time.Duration
	MaxLatency time.Duration
	TimedOut   bool
}

// concurrentWorkers bounds the harness's parallelism.
const concurrentWorkers = 16

// ValidateConcurrent drives a bounded burst of interleaved put/get calls
// through the coordinator and reports the achieved throughput and latency
// distribution. The run is hard-capped: maxDuration (itself clamped to
// 30s) expires the context, and remaining operations are abandoned rather
// than allowed to run on.
func (s *ValidationService) ValidateConcurrent(ctx context.Context, operationCount int, maxDuration time.Duration) ConcurrentReport {
	if operationCount <= 0 {
		operationCount = 100
	}
	if maxDuration <= 0 || maxDuration > maxConcurrentValidation {
		maxDuration = maxConcurrentValidation
	}
	runCtx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	var mu sync.Mutex
	latencies := make([]time.Duration, 0, operationCount)
	failed := 0

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(concurrentWorkers)
	start := time.Now()
	for i := 0; i < operationCount; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			key := fmt.Sprintf("tiercache:load:%d", i%32)
			opStart := time.Now()
			var err error
			if i%2 == 0 {
				_, err = s.c.Put(gctx, key, i, time.Minute)
			} else {
				_, _, err = s.c.Get(gctx, key)
			}
			elapsed := time.Since(opStart)
			mu.Lock()
			if err != nil {
				failed++
			} else {
				latencies = append(latencies, elapsed)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	report := ConcurrentReport{
		Requested: operationCount,
		Completed: len(latencies),
		Failed:    failed,
		Elapsed:   elapsed,
		TimedOut:  runCtx.Err() != nil,
	}
	if elapsed > 0 {
		report.Throughput = float64(report.Completed) / elapsed.Seconds()
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		report.MinLatency = latencies[0]
		report.MaxLatency = latencies[len(latencies)-1]
		report.AvgLatency = total / time.Duration(len(latencies))
		report.P95Latency = latencies[len(latencies)*95/100]
	}

	// The load keys are synthetic; sweep them out. Tracked keys carry the
	// configured prefix, so the pattern must too.
	pattern := "tiercache:load:*"
	if p := s.c.cfg.Prefix; p != "" {
		pattern = p + ":" + pattern
	}
	_, _ = s.c.InvalidateByPattern(context.WithoutCancel(ctx), pattern)
	return report
}

// CapacityOptions tunes ManageCapacity.
type CapacityOptions struct {
	// CeilingRatio overrides the configured corrective-action threshold.
	CeilingRatio float64
}

// CapacityActions is the outcome of a ManageCapacity run.
type CapacityActions struct {
	Before  CapacityReport
	After   CapacityReport
	Actions []string
}

// ManageCapacity applies corrective housekeeping (expired-entry cleanup,
// storage optimization) when any level's usage exceeds the configured
// ceiling. It reports before/after capacity and an action log; it never
// returns an error to cache callers.
func (s *ValidationService) ManageCapacity(ctx context.Context, opts CapacityOptions) CapacityActions {
	ceiling := opts.CeilingRatio
	if ceiling <= 0 || ceiling > 1 {
		ceiling = s.c.cfg.Capacity.CeilingRatio
	}
	out := CapacityActions{Before: s.ValidateCapacity(ctx)}

	over := false
	for _, lc := range out.Before.Levels {
		if lc.EntryHeadroom < 1-ceiling || lc.ByteHeadroom < 1-ceiling {
			over = true
			out.Actions = append(out.Actions,
				fmt.Sprintf("%s level crossed the %.0f%% ceiling", lc.Level, ceiling*100))
		}
	}
	if !over {
		out.Actions = append(out.Actions, "all levels under ceiling; no action taken")
		out.After = out.Before
		return out
	}

	if maint := s.c.Maintenance(); maint != nil {
		for _, op := range []string{OpCleanup, OpOptimize} {
			result := maint.Run(ctx, op)
			if result.Success {
				out.Actions = append(out.Actions,
					fmt.Sprintf("ran %s (%d items, %s)", op, result.ItemsProcessed, result.Duration.Round(time.Millisecond)))
			} else {
				out.Actions = append(out.Actions, fmt.Sprintf("%s failed: %v", op, result.Errors))
			}
		}
	} else {
		out.Actions = append(out.Actions, "durable store does not support maintenance; skipped cleanup")
	}
	s.c.log.Info("capacity management ran", zap.Strings("actions", out.Actions))

	out.After = s.ValidateCapacity(ctx)
	return out
}
