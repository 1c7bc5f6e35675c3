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

// Package rdma reads InfiniBand port hardware counters from
// /sys/class/infiniband/<device>/ports/<port>/hw_counters.
package rdma

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/procfs/sysfs"

	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/filter"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
)

// DefaultCounters is the set of hw_counters exported unless configured otherwise.
var DefaultCounters = filter.Patterns{
	"out_of_buffer",
	"req_cqe_error",
	"req_cqe_flush_error",
	"resp_cqe_error",
	"resp_cqe_flush_error",
	"resp_local_length_error",
}

// Counters maps a hw_counters file name to its value.
type Counters map[string]uint64

// Reader reads InfiniBand hw_counters of single ports.
type Reader struct {
	root     string
	counters filter.Selector
}

// NewReader creates a Reader for the sysfs mount. Only counters matching
// patterns are returned; an empty list selects DefaultCounters.
func NewReader(mount string, patterns filter.Patterns) (*Reader, error) {
	if mount == "" {
		mount = sysfs.DefaultMountPoint
	}
	if _, err := sysfs.NewFS(mount); err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInternal,
			"failed to open sysfs", err, map[string]any{"mount": mount})
	}
	if len(patterns) == 0 {
		patterns = DefaultCounters
	}
	return &Reader{
		root:     filepath.Join(mount, "class", "infiniband"),
		counters: filter.Selector{Include: patterns},
	}, nil
}

// ReadPort returns the selected counters of one device port. A counter file
// that cannot be read or does not hold an unsigned integer, such as
// "N/A (no PMA)", is skipped. A port without hw_counters is an
// ErrCodeNoStatistics error.
func (r *Reader) ReadPort(device string, port uint) (Counters, error) {
	dir := filepath.Join(r.root, device, "ports", strconv.FormatUint(uint64(port), 10), "hw_counters")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewWithContext(errors.ErrCodeNoStatistics,
				fmt.Sprintf("no hw_counters for %s port %d", device, port),
				map[string]any{"device": device, "port": port})
		}
		return nil, errors.WrapWithContext(errors.ErrCodeExecutionFailure,
			"failed to list hw_counters", err, map[string]any{"path": dir})
	}

	out := make(Counters)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !r.counters.Allowed(name) {
			continue
		}
		v, err := readCounter(filepath.Join(dir, name))
		if err != nil {
			slog.Debug("skipped hw counter", "device", device, "port", port, "counter", name, "error", err)
			continue
		}
		out[name] = v
	}
	return out, nil
}

func readCounter(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// MetricName returns the exported counter name for a hw counter.
func MetricName(counter string) string {
	return "rdma_" + counter + "_total"
}

// Samples converts counters to samples carrying the given labels.
func Samples(c Counters, labels snapshot.Labels, ts time.Time) []snapshot.Sample {
	out := make([]snapshot.Sample, 0, len(c))
	for _, name := range slices.Sorted(maps.Keys(c)) {
		out = append(out, snapshot.Sample{
			Name:      MetricName(name),
			Help:      "InfiniBand port hardware counter " + name,
			Type:      snapshot.Counter,
			Source:    snapshot.SourceRDMA,
			Stat:      name,
			Labels:    labels,
			Value:     float64(c[name]),
			Timestamp: ts,
		})
	}
	return out
}
