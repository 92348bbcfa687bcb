package cache

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidKey is returned when a cache key cannot be constructed,
	// e.g. an empty raw key.
	ErrInvalidKey = errors.New("cache: invalid key")

	// ErrLevelUnavailable indicates a level whose backend driver is missing
	// or down. The coordinator absorbs it: reads miss, writes no-op.
	ErrLevelUnavailable = errors.New("cache: level unavailable")

	// ErrOperationFailed indicates a backend error during get/put/forget.
	// The coordinator logs it and continues with the remaining levels.
	ErrOperationFailed = errors.New("cache: operation failed")

	// ErrUnknownMaintenanceOp is returned for an unrecognized maintenance
	// operation name. It fails only that operation, never the batch.
	ErrUnknownMaintenanceOp = errors.New("cache: unknown maintenance operation")

	// ErrCapacityExceeded is a soft signal from capacity validation. It is
	// reported in structured results and triggers ManageCapacity; it is
	// never propagated to cache callers.
	ErrCapacityExceeded = errors.New("cache: capacity exceeded")
)
