// Package exposition renders cached snapshots in the Prometheus exposition
// format.
//
// Each scrape obtains a snapshot from the cache, wraps it in an unchecked
// prometheus.Collector registered on a per-request registry, and serves that
// registry together with the process-wide default gatherer through promhttp.
// Every snapshot sample becomes one metric; alongside them a fixed set of
// netdev_exporter_* meta-metrics reports snapshot age, staleness and
// per-interface error counts so silent polling failures remain visible.
//
// A stale or partial snapshot is still rendered with status 200. Only when
// the cache has nothing to serve does the handler answer with an error body.
package exposition
