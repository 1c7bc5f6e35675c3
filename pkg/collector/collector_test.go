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
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/NVIDIA/netdev-exporter/pkg/collector/ethtool"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/ibdev"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/rdma"
	"github.com/NVIDIA/netdev-exporter/pkg/command"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
)

type fakeDiscovery struct {
	names []string
	err   error
}

func (f *fakeDiscovery) Discover(context.Context) ([]string, error) {
	return f.names, f.err
}

// fakeCounters serves counters keyed by "device/port". Ports listed in
// errs fail; unknown ports have no statistics.
type fakeCounters struct {
	ports map[string]rdma.Counters
	errs  map[string]error
	calls atomic.Int32
}

func (f *fakeCounters) ReadPort(device string, port uint) (rdma.Counters, error) {
	f.calls.Add(1)
	key := fmt.Sprintf("%s/%d", device, port)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	c, ok := f.ports[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeNoStatistics, "no hw_counters for "+key)
	}
	return c, nil
}

// toolRunner fakes ethtool and ibdev2netdev. stats maps an interface to its
// ethtool output; interfaces missing from stats exit 1.
type toolRunner struct {
	stats       map[string]string
	mapping     string
	mappingErr  error
	mappingRuns atomic.Int32
}

func (r *toolRunner) Run(_ context.Context, path string, args []string, _ time.Duration) (*command.Result, error) {
	switch path {
	case ibdev.DefaultPath:
		r.mappingRuns.Add(1)
		if r.mappingErr != nil {
			return nil, r.mappingErr
		}
		return &command.Result{Stdout: []byte(r.mapping)}, nil
	case ethtool.DefaultPath:
		out, ok := r.stats[args[1]]
		if !ok {
			return &command.Result{ExitCode: 1}, errors.New(errors.ErrCodeExecutionFailure, "ethtool exited with non-zero status")
		}
		return &command.Result{Stdout: []byte(out)}, nil
	}
	return nil, fmt.Errorf("unexpected command %s", path)
}

func newTestCollector(names []string, r *toolRunner, counters CounterReader, opts ...Option) *Collector {
	return New(
		&fakeDiscovery{names: names},
		ibdev.NewMapper(r, "", time.Second),
		ethtool.New(r),
		counters,
		opts...,
	)
}

func TestCollect_MixedSuccessAndFailure(t *testing.T) {
	r := &toolRunner{
		stats:   map[string]string{"eth0": "NIC statistics:\n     rx_errors: 3\n"},
		mapping: "mlx5_0 port 1 ==> eth0 (Up)\n",
	}
	c := newTestCollector([]string{"eth0", "eth1"}, r, nil)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	samples := snap.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, "ethtool_rx_errors_total", samples[0].Name)
	assert.Equal(t, "rx_errors", samples[0].Stat)
	assert.Equal(t, snapshot.Labels{
		snapshot.LabelInterface: "eth0",
		snapshot.LabelIBDevice:  "mlx5_0",
		snapshot.LabelIBPort:    "1",
	}, samples[0].Labels)
	assert.InDelta(t, 3.0, samples[0].Value, 0)

	errs := snap.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "eth1", errs[0].Interface)
	assert.Equal(t, snapshot.SourceEthtool, errs[0].Source)
	assert.Equal(t, errors.ErrCodeExecutionFailure, errs[0].Code)
	assert.Empty(t, snap.SamplesFor("eth1"))

	ifaces := snap.Interfaces()
	require.Len(t, ifaces, 2)
	assert.Equal(t, snapshot.Interface{Name: "eth0", Kind: snapshot.KindRDMA, IBDevice: "mlx5_0", IBPort: 1}, ifaces[0])
	assert.Equal(t, snapshot.Interface{Name: "eth1", Kind: snapshot.KindEthernet}, ifaces[1])
	assert.Equal(t, int32(1), r.mappingRuns.Load())
}

func TestCollect_MappingToolAbsent(t *testing.T) {
	r := &toolRunner{
		stats: map[string]string{
			"eth0": "rx_errors: 1\ntx_errors: 2\n",
			"eth1": "rx_errors: 5\n",
		},
		mappingErr: errors.Wrap(errors.ErrCodeExecutionFailure, "ibdev2netdev not found", exec.ErrNotFound),
	}
	c := newTestCollector([]string{"eth0", "eth1"}, r, &fakeCounters{})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.Errors())
	assert.Len(t, snap.SamplesFor("eth0"), 2)
	assert.Len(t, snap.SamplesFor("eth1"), 1)
	for _, s := range snap.Samples() {
		assert.NotContains(t, s.Labels, snapshot.LabelIBDevice)
	}
}

func TestCollect_MappingToolFails(t *testing.T) {
	r := &toolRunner{
		stats:      map[string]string{"eth0": "rx_errors: 1\n"},
		mappingErr: errors.Wrap(errors.ErrCodeExecutionTimeout, "ibdev2netdev timed out", context.DeadlineExceeded),
	}
	c := newTestCollector([]string{"eth0"}, r, nil)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	errs := snap.Errors()
	require.Len(t, errs, 1)
	assert.Empty(t, errs[0].Interface)
	assert.Equal(t, snapshot.SourceIbdev, errs[0].Source)
	assert.Equal(t, errors.ErrCodeExecutionTimeout, errs[0].Code)
	assert.Len(t, snap.SamplesFor("eth0"), 1)
	assert.Equal(t, map[string]int{"eth0": 0}, snap.ErrorCounts())
}

func TestCollect_NoInterfaces(t *testing.T) {
	r := &toolRunner{}
	c := newTestCollector(nil, r, nil)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
	assert.Empty(t, snap.Errors())
	assert.Empty(t, snap.Interfaces())
	assert.Zero(t, r.mappingRuns.Load())
}

func TestCollect_DiscoveryFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"structured", errors.New(errors.ErrCodeDiscoveryFailure, "cannot list")},
		{"plain", fmt.Errorf("permission denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &toolRunner{}
			c := New(&fakeDiscovery{err: tt.err}, ibdev.NewMapper(r, "", time.Second), ethtool.New(r), nil)

			snap, err := c.Collect(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, errors.IsCode(err, errors.ErrCodeDiscoveryFailure))
			assert.Zero(t, r.mappingRuns.Load())
		})
	}
}

func TestCollect_RDMACounters(t *testing.T) {
	r := &toolRunner{
		stats: map[string]string{
			"eth0": "rx_errors: 3\n",
			"eth1": "rx_errors: 4\n",
		},
		mapping: "mlx5_0 port 1 ==> eth0 (Up)\nmlx5_1 port 1 ==> eth1 (Up)\nmlx5_2 port 1 ==> eth3 (Up)\n",
	}

	t.Run("counters read per mapped port", func(t *testing.T) {
		counters := &fakeCounters{ports: map[string]rdma.Counters{
			"mlx5_0/1": {"out_of_buffer": 7},
		}}
		c := newTestCollector([]string{"eth0", "eth1", "eth2"}, r, counters)

		snap, err := c.Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), counters.calls.Load())

		eth0 := snap.SamplesFor("eth0")
		require.Len(t, eth0, 2)
		assert.Equal(t, "ethtool_rx_errors_total", eth0[0].Name)
		assert.Equal(t, "rdma_out_of_buffer_total", eth0[1].Name)
		assert.Equal(t, "mlx5_0", eth0[1].Labels[snapshot.LabelIBDevice])

		// eth1 is mapped but its port has no counters.
		assert.Len(t, snap.SamplesFor("eth1"), 1)
		errs := snap.Errors()
		require.Len(t, errs, 2)
		assert.Equal(t, "eth1", errs[0].Interface)
		assert.Equal(t, snapshot.SourceRDMA, errs[0].Source)
		assert.Equal(t, errors.ErrCodeNoStatistics, errs[0].Code)

		// eth2 is neither mapped nor known to ethtool.
		assert.Equal(t, "eth2", errs[1].Interface)
		assert.Equal(t, snapshot.SourceEthtool, errs[1].Source)
	})

	t.Run("broken device does not hide healthy device", func(t *testing.T) {
		counters := &fakeCounters{
			ports: map[string]rdma.Counters{"mlx5_0/1": {"out_of_buffer": 12}},
			errs:  map[string]error{"mlx5_1/1": errors.New(errors.ErrCodeExecutionFailure, "permission denied")},
		}
		c := newTestCollector([]string{"eth0", "eth1"}, r, counters)

		snap, err := c.Collect(context.Background())
		require.NoError(t, err)

		eth0 := snap.SamplesFor("eth0")
		require.Len(t, eth0, 2)
		assert.InDelta(t, 12.0, eth0[1].Value, 0)

		assert.Len(t, snap.SamplesFor("eth1"), 1)
		errs := snap.Errors()
		require.Len(t, errs, 1)
		assert.Equal(t, "eth1", errs[0].Interface)
		assert.Equal(t, snapshot.SourceRDMA, errs[0].Source)
		assert.Equal(t, errors.ErrCodeExecutionFailure, errs[0].Code)
	})

	t.Run("ethtool failure keeps RDMA samples", func(t *testing.T) {
		failing := &toolRunner{
			stats:   map[string]string{},
			mapping: "mlx5_0 port 1 ==> eth0 (Up)\n",
		}
		counters := &fakeCounters{ports: map[string]rdma.Counters{
			"mlx5_0/1": {"out_of_buffer": 9, "req_cqe_error": 1},
		}}
		c := newTestCollector([]string{"eth0"}, failing, counters)

		snap, err := c.Collect(context.Background())
		require.NoError(t, err)

		eth0 := snap.SamplesFor("eth0")
		require.Len(t, eth0, 2)
		for _, s := range eth0 {
			assert.Equal(t, snapshot.SourceRDMA, s.Source)
			assert.Equal(t, "mlx5_0", s.Labels[snapshot.LabelIBDevice])
			assert.Equal(t, "1", s.Labels[snapshot.LabelIBPort])
		}

		errs := snap.Errors()
		require.Len(t, errs, 1)
		assert.Equal(t, "eth0", errs[0].Interface)
		assert.Equal(t, snapshot.SourceEthtool, errs[0].Source)
		assert.Equal(t, errors.ErrCodeExecutionFailure, errs[0].Code)
	})

	t.Run("unmapped interfaces skip counter reads", func(t *testing.T) {
		counters := &fakeCounters{}
		c := newTestCollector([]string{"eth2"}, &toolRunner{stats: map[string]string{"eth2": "rx_errors: 1\n"}}, counters)

		snap, err := c.Collect(context.Background())
		require.NoError(t, err)
		assert.Zero(t, counters.calls.Load())
		assert.Empty(t, snap.Errors())
	})
}

func TestCollect_ParseWarnings(t *testing.T) {
	r := &toolRunner{
		stats:   map[string]string{"eth0": "NIC statistics:\n rx_errors: 1\n junk\n more junk\n"},
		mapping: "mlx5_0 port 1 ==> eth0 (Up)\nbroken line\n",
	}
	c := newTestCollector([]string{"eth0"}, r, nil)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []snapshot.Warning{
		{Interface: "", Source: snapshot.SourceIbdev, Count: 1},
		{Interface: "eth0", Source: snapshot.SourceEthtool, Count: 2},
	}, snap.Warnings())
	assert.Empty(t, snap.Errors())
}

func TestCollect_Timestamps(t *testing.T) {
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakeClock(start)
	r := &toolRunner{stats: map[string]string{"eth0": "rx_errors: 1\n"}}
	c := newTestCollector([]string{"eth0"}, r, nil, WithClock(clk))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, snap.CollectedAt())
	assert.Equal(t, start, snap.Samples()[0].Timestamp)
}

type gatedStats struct {
	mu      sync.Mutex
	running int
	peak    int
}

func (g *gatedStats) Collect(_ context.Context, _ string) (*ethtool.ParseResult, error) {
	g.mu.Lock()
	g.running++
	g.peak = max(g.peak, g.running)
	g.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	g.mu.Lock()
	g.running--
	g.mu.Unlock()
	return &ethtool.ParseResult{Stats: ethtool.Stats{"rx_errors": 0}}, nil
}

func TestCollect_BoundedConcurrency(t *testing.T) {
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("eth%d", i)
	}
	stats := &gatedStats{}
	r := &toolRunner{}
	c := New(&fakeDiscovery{names: names}, ibdev.NewMapper(r, "", time.Second), stats, nil, WithConcurrency(2))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Len())
	assert.LessOrEqual(t, stats.peak, 2)
	assert.Positive(t, stats.peak)
}
