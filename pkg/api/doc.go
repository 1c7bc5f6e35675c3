// Package api wires the exporter together and runs it.
//
// Serve builds the collection pipeline from a config.Config:
//
//	collector.DefaultFactory -> collector.Collector -> snapshotter.Cache -> exposition.Handler
//
// and hands the handlers to pkg/server, which owns the HTTP lifecycle.
// When collection.refresh_interval is positive a background refresher keeps
// the cache warm through the same coalescing gate that scrapes use.
//
// # Endpoints
//
// Application Endpoints (with rate limiting and the concurrency gate):
//   - GET /metrics          - Prometheus exposition of the cached snapshot
//   - GET /api/v1/snapshot  - The cached snapshot as JSON
//
// System Endpoints (no rate limiting):
//   - GET /health  - Health check (liveness)
//   - GET /ready   - Ready once the first collection pass has completed
//
// # Service manager integration
//
// Under systemd with Type=notify, READY=1 is sent once the listener is
// bound and STOPPING=1 when shutdown begins. Outside systemd the
// notifications are no-ops.
//
// Collect runs one pass without the server, for the collect subcommand.
//
// Version information is set at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/netdev-exporter/pkg/api.version=1.0.0'"
package api
