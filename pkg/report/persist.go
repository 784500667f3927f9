package report

import (
	"context"
	"fmt"
	"time"

	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/foxwatt/foxwatt/pkg/types"
)

// StorageWarning describes a persistence failure. The report it belongs to
// is still valid, only storing it failed.
type StorageWarning struct {
	Granularity types.Granularity
	Attempted   int
	Written     int
	Err         error
}

func (w *StorageWarning) Error() string {
	return fmt.Sprintf("stored %d of %d %s rows: %v", w.Written, w.Attempted, w.Granularity, w.Err)
}

func (w *StorageWarning) Unwrap() error {
	return w.Err
}

// Message is the text shown to the user.
func (w *StorageWarning) Message() string {
	return fmt.Sprintf("The report could not be saved completely (%d of %d %s values stored).", w.Written, w.Attempted, w.Granularity)
}

// Persist upserts one row per bucket of the entries. Rows are written one at
// a time and the first failure stops the batch. A failure is returned as a
// warning, never as an error.
func Persist(ctx context.Context, store Store, g Granularity, deviceID string, entries []types.NormalizedEntry, loc *time.Location) (int, *StorageWarning) {
	buckets := g.buckets(entries, loc)
	if len(buckets) == 0 {
		return 0, nil
	}

	if err := store.EnsureDevice(ctx, deviceID); err != nil {
		metrics.ObservePersist(string(g.Name), 0, 1)
		return 0, &StorageWarning{Granularity: g.Name, Attempted: len(buckets), Err: fmt.Errorf("failed to ensure device: %w", err)}
	}

	now := time.Now().UTC()
	for i, b := range buckets {
		if err := g.upsert(ctx, store, deviceID, b, now); err != nil {
			metrics.ObservePersist(string(g.Name), i, 1)
			return i, &StorageWarning{Granularity: g.Name, Attempted: len(buckets), Written: i, Err: err}
		}
	}
	metrics.ObservePersist(string(g.Name), len(buckets), 0)
	return len(buckets), nil
}
