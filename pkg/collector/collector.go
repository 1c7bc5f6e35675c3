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

package collector

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/netdev-exporter/pkg/collector/ethtool"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/ibdev"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/rdma"
	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
)

// InterfaceLister returns the interfaces to poll in a pass.
type InterfaceLister interface {
	Discover(ctx context.Context) ([]string, error)
}

// DeviceMapper correlates Ethernet interfaces with InfiniBand ports.
type DeviceMapper interface {
	Map(ctx context.Context) (*ibdev.Result, error)
}

// StatsSource reads the statistics of one interface.
type StatsSource interface {
	Collect(ctx context.Context, iface string) (*ethtool.ParseResult, error)
}

// CounterReader reads RDMA hardware counters of one device port.
type CounterReader interface {
	ReadPort(device string, port uint) (rdma.Counters, error)
}

// Collector runs collection passes.
type Collector struct {
	discovery   InterfaceLister
	mapper      DeviceMapper
	stats       StatsSource
	counters    CounterReader
	concurrency int
	clock       clock.PassiveClock
}

// Option configures a Collector.
type Option func(*Collector)

// WithConcurrency bounds how many interfaces are polled in parallel.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock sets the clock used to timestamp samples and snapshots.
func WithClock(clk clock.PassiveClock) Option {
	return func(c *Collector) {
		c.clock = clk
	}
}

// New creates a Collector. counters may be nil to disable RDMA counters.
func New(discovery InterfaceLister, mapper DeviceMapper, stats StatsSource, counters CounterReader, opts ...Option) *Collector {
	c := &Collector{
		discovery:   discovery,
		mapper:      mapper,
		stats:       stats,
		counters:    counters,
		concurrency: defaults.CollectionConcurrency,
		clock:       clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromFactory creates a Collector with dependencies from f.
func NewFromFactory(f Factory, opts ...Option) (*Collector, error) {
	discovery, err := f.CreateDiscovery()
	if err != nil {
		return nil, err
	}
	counters, err := f.CreateCounterReader()
	if err != nil {
		return nil, err
	}
	return New(discovery, f.CreateDeviceMapper(), f.CreateStatsSource(), counters, opts...), nil
}

// interfaceResult is the outcome of polling one interface.
type interfaceResult struct {
	iface    snapshot.Interface
	samples  []snapshot.Sample
	errors   []snapshot.ErrorMarker
	warnings int
}

// Collect runs one pass. It fails only when discovery fails; per-interface
// and per-tool failures are recorded as error markers in the snapshot.
func (c *Collector) Collect(ctx context.Context) (*snapshot.Snapshot, error) {
	start := c.clock.Now()
	b := snapshot.NewBuilder().WithStart(start)

	names, err := c.discovery.Discover(ctx)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeDiscoveryFailure) {
			err = errors.Wrap(errors.ErrCodeDiscoveryFailure, "interface discovery failed", err)
		}
		return nil, err
	}
	if len(names) == 0 {
		slog.Debug("no interfaces to poll")
		return b.Build(c.clock.Now()), nil
	}

	mapping := c.mapDevices(ctx, b)

	results := make([]interfaceResult, len(names))
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i] = c.poll(ctx, name, mapping)
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	for _, r := range results {
		b.AddInterface(r.iface).AddSamples(r.samples...)
		for _, e := range r.errors {
			b.AddError(e)
		}
		b.AddWarnings(r.iface.Name, snapshot.SourceEthtool, r.warnings)
	}

	snap := b.Build(c.clock.Now())
	slog.Debug("collection pass complete",
		"interfaces", len(names),
		"samples", snap.Len(),
		"errors", len(snap.Errors()),
		"duration", snap.Duration())
	return snap, nil
}

// mapDevices runs the mapping tool once. Failures leave the mapping empty
// and add a pass-level marker.
func (c *Collector) mapDevices(ctx context.Context, b *snapshot.Builder) ibdev.Mapping {
	res, err := c.mapper.Map(ctx)
	if res != nil {
		b.AddWarnings("", snapshot.SourceIbdev, len(res.Skipped))
	}
	if err != nil {
		slog.Warn("InfiniBand device mapping failed", "error", err)
		b.AddError(snapshot.ErrorMarker{
			Source:  snapshot.SourceIbdev,
			Code:    errors.CodeOf(err),
			Message: err.Error(),
		})
		return ibdev.Mapping{}
	}
	if res == nil {
		return ibdev.Mapping{}
	}
	return res.Mapping
}

func (c *Collector) poll(ctx context.Context, name string, mapping ibdev.Mapping) interfaceResult {
	r := interfaceResult{iface: snapshot.Interface{Name: name, Kind: snapshot.KindEthernet}}
	labels := snapshot.Labels{snapshot.LabelInterface: name}

	port, mapped := mapping.Lookup(name)
	if mapped {
		r.iface.Kind = snapshot.KindRDMA
		r.iface.IBDevice = port.Device
		r.iface.IBPort = port.Port
		labels[snapshot.LabelIBDevice] = port.Device
		labels[snapshot.LabelIBPort] = strconv.FormatUint(uint64(port.Port), 10)
	}

	res, err := c.stats.Collect(ctx, name)
	if res != nil {
		r.warnings = res.Warnings()
	}
	if err != nil {
		r.errors = append(r.errors, marker(name, snapshot.SourceEthtool, err))
	} else {
		r.samples = append(r.samples, ethtool.Samples(res.Stats, labels, c.clock.Now())...)
	}

	// RDMA counters come from sysfs and do not depend on ethtool succeeding.
	if mapped && c.counters != nil {
		if counters, err := c.counters.ReadPort(port.Device, port.Port); err != nil {
			r.errors = append(r.errors, marker(name, snapshot.SourceRDMA, err))
		} else {
			r.samples = append(r.samples, rdma.Samples(counters, labels, c.clock.Now())...)
		}
	}
	return r
}

func marker(iface, source string, err error) snapshot.ErrorMarker {
	code := errors.CodeOf(err)
	if code == errors.ErrCodeNoStatistics {
		slog.Debug("no statistics", "interface", iface, "source", source, "error", err)
	} else {
		slog.Warn("interface collection failed", "interface", iface, "source", source, "error", err)
	}
	return snapshot.ErrorMarker{
		Interface: iface,
		Source:    source,
		Code:      code,
		Message:   err.Error(),
	}
}
