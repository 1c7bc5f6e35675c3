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


package exposition

import (
	"fmt"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshotter"
	"github.com/prometheus/client_golang/prometheus"
)

// Meta-metric names.
const (
	MetricSnapshotAge         = "netdev_exporter_snapshot_age_seconds"
	MetricSnapshotTimestamp   = "netdev_exporter_snapshot_timestamp_seconds"
	MetricSnapshotDuration    = "netdev_exporter_snapshot_collection_duration_seconds"
	MetricSnapshotStale       = "netdev_exporter_snapshot_stale"
	MetricSnapshotInterfaces  = "netdev_exporter_snapshot_interfaces"
	MetricInterfaceErrors     = "netdev_exporter_interface_collection_errors"
	MetricCollectionErrors    = "netdev_exporter_collection_errors"
	MetricParseWarnings       = "netdev_exporter_parse_warnings"
	MetricConsecutiveFailures = "netdev_exporter_consecutive_failures"
)

var (
	snapshotAgeDesc = prometheus.NewDesc(MetricSnapshotAge,
		"Seconds since the served snapshot was collected.", nil, nil)
	snapshotTimestampDesc = prometheus.NewDesc(MetricSnapshotTimestamp,
		"Unix time at which the served snapshot was collected.", nil, nil)
	snapshotDurationDesc = prometheus.NewDesc(MetricSnapshotDuration,
		"Duration of the collection pass that produced the served snapshot.", nil, nil)
	snapshotStaleDesc = prometheus.NewDesc(MetricSnapshotStale,
		"1 when the most recent collection pass failed and an older snapshot is served.", nil, nil)
	snapshotInterfacesDesc = prometheus.NewDesc(MetricSnapshotInterfaces,
		"Number of interfaces polled in the served snapshot.", nil, nil)
	interfaceErrorsDesc = prometheus.NewDesc(MetricInterfaceErrors,
		"Number of collection errors recorded for an interface in the served snapshot.",
		[]string{snapshot.LabelInterface}, nil)
	collectionErrorsDesc = prometheus.NewDesc(MetricCollectionErrors,
		"Collection errors in the served snapshot by interface, source and error code.",
		[]string{snapshot.LabelInterface, "source", "code"}, nil)
	parseWarningsDesc = prometheus.NewDesc(MetricParseWarnings,
		"Malformed tool output lines skipped in the served snapshot.",
		[]string{snapshot.LabelInterface, "source"}, nil)
	consecutiveFailuresDesc = prometheus.NewDesc(MetricConsecutiveFailures,
		"Collection passes that failed since the last successful one.", nil, nil)
)

// snapshotCollector exports one cached snapshot. It is unchecked: the set
// of metric families depends on what the tools reported, so Describe
// sends nothing.
type snapshotCollector struct {
	result *snapshotter.Result
	now    time.Time
}

func newSnapshotCollector(result *snapshotter.Result, now time.Time) *snapshotCollector {
	return &snapshotCollector{result: result, now: now}
}

// Describe implements prometheus.Collector.
func (c *snapshotCollector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.result.Snapshot
	c.collectSamples(ch, snap)
	c.collectMeta(ch, snap)
}

func (c *snapshotCollector) collectSamples(ch chan<- prometheus.Metric, snap *snapshot.Snapshot) {
	// A family must carry one help string even when several raw stat names
	// sanitize to the same metric name.
	help := make(map[string]string)

	for _, s := range snap.Samples() {
		h, ok := help[s.Name]
		if !ok {
			h = s.Help
			if h == "" {
				h = fmt.Sprintf("%s statistic %s", s.Source, s.Name)
			}
			help[s.Name] = h
		}

		keys := s.Labels.Keys()
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = s.Labels[k]
		}

		desc := prometheus.NewDesc(s.Name, h, keys, nil)
		m, err := prometheus.NewConstMetric(desc, valueType(s.Type), s.Value, values...)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(desc, err)
			continue
		}
		ch <- m
	}
}

func (c *snapshotCollector) collectMeta(ch chan<- prometheus.Metric, snap *snapshot.Snapshot) {
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}

	gauge(snapshotAgeDesc, snap.Age(c.now).Seconds())
	gauge(snapshotTimestampDesc, float64(snap.CollectedAt().UnixNano())/1e9)
	gauge(snapshotDurationDesc, snap.Duration().Seconds())
	gauge(snapshotStaleDesc, boolToFloat(c.result.Stale))
	gauge(snapshotInterfacesDesc, float64(len(snap.Interfaces())))
	gauge(consecutiveFailuresDesc, float64(c.result.ConsecutiveFailures))

	for iface, n := range snap.ErrorCounts() {
		gauge(interfaceErrorsDesc, float64(n), iface)
	}

	type errorKey struct{ iface, source, code string }
	counts := make(map[errorKey]int)
	for _, e := range snap.Errors() {
		counts[errorKey{e.Interface, e.Source, string(e.Code)}]++
	}
	for k, n := range counts {
		gauge(collectionErrorsDesc, float64(n), k.iface, k.source, k.code)
	}

	for _, w := range snap.Warnings() {
		gauge(parseWarningsDesc, float64(w.Count), w.Interface, w.Source)
	}
}

func valueType(t snapshot.MetricType) prometheus.ValueType {
	if t == snapshot.Counter {
		return prometheus.CounterValue
	}
	return prometheus.GaugeValue
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
