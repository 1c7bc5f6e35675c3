// Package snapshotter holds the current snapshot and coordinates collection
// passes.
//
// # Overview
//
// Cache is the single owner of the current *snapshot.Snapshot. Readers load
// it through an atomic pointer without locking; a completed pass replaces it
// in one store, so a reader sees either the previous snapshot or the new one.
//
// # Core Types
//
// Collector: anything that runs one collection pass
//
//	type Collector interface {
//	    Collect(ctx context.Context) (*snapshot.Snapshot, error)
//	}
//
// Cache: serves snapshots subject to a maximum age
//
//	res, err := cache.GetSnapshot(ctx, 30*time.Second)
//
// # Coalescing
//
// Callers that need a new snapshot while a pass is already running wait for
// that pass instead of starting another, so at most one pass runs at a time.
// The pass itself ignores caller cancellation; a caller that gives up only
// stops waiting.
//
// # Staleness
//
// When a pass fails and an earlier snapshot exists, the earlier snapshot is
// returned unchanged with Result.Stale set. Without an earlier snapshot the
// failure is returned as an ErrCodeUnavailable error.
//
// A maxAge of zero forces a pass on every call.
//
// # Periodic Refresh
//
// Run starts a ticker that refreshes the snapshot through the same gate:
//
//	go func() {
//	    if err := cache.Run(ctx, 15*time.Second); err != nil {
//	        slog.Error("refresher stopped", "error", err)
//	    }
//	}()
//
// # Observability
//
// Collection passes are recorded in Prometheus metrics:
//   - netdev_exporter_collection_duration_seconds: pass duration
//   - netdev_exporter_collection_total: passes by status
//   - netdev_exporter_collection_coalesced_total: callers served by a shared pass
package snapshotter
