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
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/collector/ethtool"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/ibdev"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/netif"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/rdma"
	"github.com/NVIDIA/netdev-exporter/pkg/command"
	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/filter"
)

// Factory creates collection dependencies.
type Factory interface {
	CreateDiscovery() (InterfaceLister, error)
	CreateDeviceMapper() DeviceMapper
	CreateStatsSource() StatsSource
	// CreateCounterReader returns nil when RDMA counters are disabled.
	CreateCounterReader() (CounterReader, error)
}

// DefaultFactory creates collection dependencies backed by the host.
type DefaultFactory struct {
	Runner           command.Runner
	SysfsMount       string
	EthtoolPath      string
	Ibdev2netdevPath string
	CommandTimeout   time.Duration
	Interfaces       netif.Policy
	Stats            filter.Selector
	RDMAEnabled      bool
	RDMACounters     filter.Patterns
}

// FactoryOption configures a DefaultFactory.
type FactoryOption func(*DefaultFactory)

// WithRunner sets the command runner used for external tools.
func WithRunner(r command.Runner) FactoryOption {
	return func(f *DefaultFactory) {
		f.Runner = r
	}
}

// WithSysfs sets the sysfs mount point.
func WithSysfs(mount string) FactoryOption {
	return func(f *DefaultFactory) {
		f.SysfsMount = mount
	}
}

// WithEthtoolPath sets the ethtool binary.
func WithEthtoolPath(path string) FactoryOption {
	return func(f *DefaultFactory) {
		f.EthtoolPath = path
	}
}

// WithIbdev2netdevPath sets the ibdev2netdev binary.
func WithIbdev2netdevPath(path string) FactoryOption {
	return func(f *DefaultFactory) {
		f.Ibdev2netdevPath = path
	}
}

// WithCommandTimeout sets the per-invocation timeout of external tools.
func WithCommandTimeout(d time.Duration) FactoryOption {
	return func(f *DefaultFactory) {
		f.CommandTimeout = d
	}
}

// WithInterfacePolicy sets the discovery policy.
func WithInterfacePolicy(p netif.Policy) FactoryOption {
	return func(f *DefaultFactory) {
		f.Interfaces = p
	}
}

// WithStatSelector limits which ethtool statistics are exported.
func WithStatSelector(s filter.Selector) FactoryOption {
	return func(f *DefaultFactory) {
		f.Stats = s
	}
}

// WithRDMACounters enables or disables hw_counters and selects which are exported.
func WithRDMACounters(enabled bool, counters filter.Patterns) FactoryOption {
	return func(f *DefaultFactory) {
		f.RDMAEnabled = enabled
		f.RDMACounters = counters
	}
}

// NewDefaultFactory creates a factory with default settings.
func NewDefaultFactory(opts ...FactoryOption) *DefaultFactory {
	f := &DefaultFactory{
		Runner:           command.NewExecRunner(),
		EthtoolPath:      ethtool.DefaultPath,
		Ibdev2netdevPath: ibdev.DefaultPath,
		CommandTimeout:   defaults.CommandTimeout,
		RDMAEnabled:      true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateDiscovery creates a sysfs-backed interface lister.
func (f *DefaultFactory) CreateDiscovery() (InterfaceLister, error) {
	d, err := netif.New(f.SysfsMount, f.Interfaces)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDeviceMapper creates an ibdev2netdev mapper.
func (f *DefaultFactory) CreateDeviceMapper() DeviceMapper {
	return ibdev.NewMapper(f.Runner, f.Ibdev2netdevPath, f.CommandTimeout)
}

// CreateStatsSource creates an ethtool statistics source.
func (f *DefaultFactory) CreateStatsSource() StatsSource {
	return ethtool.New(f.Runner,
		ethtool.WithPath(f.EthtoolPath),
		ethtool.WithTimeout(f.CommandTimeout),
		ethtool.WithSelector(f.Stats),
	)
}

// CreateCounterReader creates an RDMA hw_counters reader, or nil when disabled.
func (f *DefaultFactory) CreateCounterReader() (CounterReader, error) {
	if !f.RDMAEnabled {
		return nil, nil
	}
	r, err := rdma.NewReader(f.SysfsMount, f.RDMACounters)
	if err != nil {
		return nil, err
	}
	return r, nil
}
