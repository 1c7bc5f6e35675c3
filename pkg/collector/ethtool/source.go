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

package ethtool

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/command"
	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/filter"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
)

const (
	// DefaultPath is the ethtool binary looked up on PATH.
	DefaultPath = "ethtool"

	// ExitNoStatistics is the status ethtool exits with when a device has
	// no statistics to report.
	ExitNoStatistics = 94

	metricPrefix = "ethtool_"
	metricSuffix = "_total"
)

// Source collects statistics for one interface at a time.
type Source struct {
	runner   command.Runner
	path     string
	timeout  time.Duration
	selector filter.Selector
}

// Option configures a Source.
type Option func(*Source)

// WithPath sets the ethtool binary.
func WithPath(path string) Option {
	return func(s *Source) {
		if path != "" {
			s.path = path
		}
	}
}

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.timeout = d
	}
}

// WithSelector limits which statistics are returned.
func WithSelector(sel filter.Selector) Option {
	return func(s *Source) {
		s.selector = sel
	}
}

// New creates a Source that runs ethtool through runner.
func New(runner command.Runner, opts ...Option) *Source {
	s := &Source{
		runner:  runner,
		path:    DefaultPath,
		timeout: defaults.CommandTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collect runs `ethtool -S iface` and parses its output. Skipped lines are
// reported in the result even when the error is set.
func (s *Source) Collect(ctx context.Context, iface string) (*ParseResult, error) {
	errCtx := map[string]any{"interface": iface}

	out, err := s.runner.Run(ctx, s.path, []string{"-S", iface}, s.timeout)
	if err != nil {
		if command.ExitCode(out, err) == ExitNoStatistics {
			return nil, errors.WrapWithContext(errors.ErrCodeNoStatistics,
				"device reports no statistics", err, errCtx)
		}
		return nil, errors.WrapWithContext(errors.CodeOf(err),
			"ethtool failed", err, errCtx)
	}

	res, err := Parse(out.Stdout)
	for _, line := range res.Skipped {
		slog.Debug("skipped ethtool line",
			"interface", iface,
			"line", line)
	}
	if err != nil {
		return res, errors.WrapWithContext(errors.ErrCodeNoStatistics,
			"ethtool output unusable", err, errCtx)
	}

	res.Stats = filter.FilterMap(res.Stats, s.selector)
	return res, nil
}

// MetricName returns the exported counter name for a statistic.
func MetricName(stat string) string {
	return metricPrefix + sanitize(stat) + metricSuffix
}

// Samples converts statistics to counter samples carrying the given labels.
// When two statistics sanitize to the same metric name only the first in
// lexical order is kept.
func Samples(stats Stats, labels snapshot.Labels, ts time.Time) []snapshot.Sample {
	out := make([]snapshot.Sample, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))
	for _, stat := range slices.Sorted(maps.Keys(stats)) {
		name := MetricName(stat)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, snapshot.Sample{
			Name:      name,
			Help:      "ethtool statistic " + stat,
			Type:      snapshot.Counter,
			Source:    snapshot.SourceEthtool,
			Stat:      stat,
			Labels:    labels,
			Value:     float64(stats[stat]),
			Timestamp: ts,
		})
	}
	return out
}

// sanitize maps a statistic name onto the metric name charset.
func sanitize(stat string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, stat)
}
