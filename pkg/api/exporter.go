// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/netdev-exporter/pkg/collector"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/netif"
	"github.com/NVIDIA/netdev-exporter/pkg/config"
	"github.com/NVIDIA/netdev-exporter/pkg/exposition"
	"github.com/NVIDIA/netdev-exporter/pkg/server"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshotter"
)

const (
	name           = "netdev-exporter"
	versionDefault = "dev"

	// Route paths.
	PathMetrics  = "/metrics"
	PathSnapshot = "/api/v1/snapshot"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/NVIDIA/netdev-exporter/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Name returns the exporter name.
func Name() string { return name }

// Version returns the build version.
func Version() string { return version }

// BuildInfo returns the build commit and date.
func BuildInfo() (string, string) { return commit, date }

// notifier sends service manager state notifications.
type notifier func(state string)

func sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		slog.Warn("service manager notification failed", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("service manager notified", "state", state)
	}
}

// Exporter is the wired exporter.
type Exporter struct {
	cfg     *config.Config
	cache   *snapshotter.Cache
	handler *exposition.Handler
	server  *server.Server
	notify  notifier
}

// Option configures an Exporter.
type Option func(*exporterOptions)

type exporterOptions struct {
	factoryOpts []collector.FactoryOption
	factory     collector.Factory
	notify      notifier
}

// WithFactoryOptions appends options to the default collection factory.
func WithFactoryOptions(opts ...collector.FactoryOption) Option {
	return func(o *exporterOptions) {
		o.factoryOpts = append(o.factoryOpts, opts...)
	}
}

// WithFactory replaces the collection factory.
func WithFactory(f collector.Factory) Option {
	return func(o *exporterOptions) {
		o.factory = f
	}
}

func withNotifier(n notifier) Option {
	return func(o *exporterOptions) {
		o.notify = n
	}
}

// New builds the exporter from cfg. cfg must be valid.
func New(cfg *config.Config, opts ...Option) (*Exporter, error) {
	o := &exporterOptions{notify: sdNotify}
	for _, opt := range opts {
		opt(o)
	}

	coll, err := newCollector(cfg, o)
	if err != nil {
		return nil, err
	}

	cache := snapshotter.New(coll)
	handler := exposition.NewHandler(cache, exposition.WithMaxAge(cfg.Collection.MaxAge))

	srvCfg := server.NewConfig()
	srvCfg.Name = name
	srvCfg.Version = version
	srvCfg.Address = cfg.Server.Address
	srvCfg.Port = cfg.Server.Port
	srvCfg.RateLimit = rate.Limit(cfg.Server.RateLimit)
	srvCfg.RateLimitBurst = cfg.Server.RateLimitBurst
	srvCfg.MaxConcurrentRequests = cfg.Server.MaxConcurrentScrapes
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	srvCfg.Handlers = map[string]http.HandlerFunc{
		PathMetrics:  handler.ServeHTTP,
		PathSnapshot: handler.ServeSnapshot,
	}

	return &Exporter{
		cfg:     cfg,
		cache:   cache,
		handler: handler,
		server: server.New(
			server.WithConfig(srvCfg),
			server.WithReadiness(cache.Attempted),
		),
		notify: o.notify,
	}, nil
}

func newCollector(cfg *config.Config, o *exporterOptions) (*collector.Collector, error) {
	factory := o.factory
	if factory == nil {
		factory = newFactory(cfg, o.factoryOpts...)
	}

	coll, err := collector.NewFromFactory(factory,
		collector.WithConcurrency(cfg.Collection.Concurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}
	return coll, nil
}

func newFactory(cfg *config.Config, extra ...collector.FactoryOption) *collector.DefaultFactory {
	opts := []collector.FactoryOption{
		collector.WithSysfs(cfg.Discovery.Sysfs),
		collector.WithEthtoolPath(cfg.Ethtool.Path),
		collector.WithIbdev2netdevPath(cfg.Ibdev.Path),
		collector.WithCommandTimeout(cfg.Collection.CommandTimeout),
		collector.WithInterfacePolicy(netif.Policy{
			Names:          cfg.InterfaceSelector(),
			IncludeVirtual: cfg.Discovery.IncludeVirtual,
		}),
		collector.WithStatSelector(cfg.StatSelector()),
		collector.WithRDMACounters(cfg.RDMA.Enabled, cfg.RDMA.Counters),
	}
	return collector.NewDefaultFactory(append(opts, extra...)...)
}

// Handler returns the routed HTTP handler.
func (e *Exporter) Handler() http.Handler {
	return e.server.Handler()
}

// Cache returns the snapshot cache.
func (e *Exporter) Cache() *snapshotter.Cache {
	return e.cache
}

// Run listens on the configured address and serves until ctx is done.
func (e *Exporter) Run(ctx context.Context) error {
	addr := net.JoinHostPort(e.cfg.Server.Address, fmt.Sprint(e.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return e.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. The background refresher, when
// configured, runs for the same lifetime. Without it a single pass is
// started up front so readiness does not wait for the first scrape.
func (e *Exporter) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if interval := e.cfg.Collection.RefreshInterval; interval > 0 {
		g.Go(func() error {
			return e.cache.Run(gctx, interval)
		})
	} else {
		g.Go(func() error {
			if _, err := e.cache.Refresh(gctx); err != nil && gctx.Err() == nil {
				slog.Warn("initial collection pass failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		e.notify(daemon.SdNotifyReady)
		return e.server.Serve(gctx, ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		e.notify(daemon.SdNotifyStopping)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("exporter stopped: %w", err)
	}
	return nil
}

// Serve builds the exporter from cfg and runs it until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, opts ...Option) error {
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
	)

	e, err := New(cfg, opts...)
	if err != nil {
		return err
	}

	if err := e.Run(ctx); err != nil {
		slog.Error("exporter exited with error", "error", err)
		return err
	}

	slog.Info("exporter stopped gracefully")
	return nil
}

// Collect runs a single collection pass without starting the server.
func Collect(ctx context.Context, cfg *config.Config, opts ...Option) (*snapshot.Snapshot, error) {
	o := &exporterOptions{}
	for _, opt := range opts {
		opt(o)
	}

	coll, err := newCollector(cfg, o)
	if err != nil {
		return nil, err
	}
	return coll.Collect(ctx)
}
