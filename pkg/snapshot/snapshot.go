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

package snapshot

import (
	"cmp"
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Snapshot is an immutable point-in-time set of samples from one pass.
type Snapshot struct {
	id          string
	collectedAt time.Time
	duration    time.Duration
	interfaces  []Interface
	samples     []Sample
	errors      []ErrorMarker
	warnings    []Warning
}

// ID returns the unique identifier of the pass that produced the snapshot.
func (s *Snapshot) ID() string { return s.id }

// CollectedAt returns the completion time of the pass.
func (s *Snapshot) CollectedAt() time.Time { return s.collectedAt }

// Duration returns how long the pass took.
func (s *Snapshot) Duration() time.Duration { return s.duration }

// Age returns the snapshot age relative to now. It is never negative.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return max(now.Sub(s.collectedAt), 0)
}

// Interfaces returns a copy of the polled interfaces in name order.
func (s *Snapshot) Interfaces() []Interface { return slices.Clone(s.interfaces) }

// Samples returns a copy of all samples.
func (s *Snapshot) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	for i, smp := range s.samples {
		smp.Labels = maps.Clone(smp.Labels)
		out[i] = smp
	}
	return out
}

// Len returns the number of samples.
func (s *Snapshot) Len() int { return len(s.samples) }

// Errors returns a copy of the error markers.
func (s *Snapshot) Errors() []ErrorMarker { return slices.Clone(s.errors) }

// Warnings returns a copy of the parse-warning counts.
func (s *Snapshot) Warnings() []Warning { return slices.Clone(s.warnings) }

// SamplesFor returns the samples labeled with the given interface.
func (s *Snapshot) SamplesFor(iface string) []Sample {
	var out []Sample
	for _, smp := range s.samples {
		if smp.Labels[LabelInterface] == iface {
			smp.Labels = maps.Clone(smp.Labels)
			out = append(out, smp)
		}
	}
	return out
}

// ErrorCounts returns the number of error markers per polled interface.
// Every polled interface is present, with zero when it had no errors.
func (s *Snapshot) ErrorCounts() map[string]int {
	counts := make(map[string]int, len(s.interfaces))
	for _, iface := range s.interfaces {
		counts[iface.Name] = 0
	}
	for _, e := range s.errors {
		if e.Interface != "" {
			counts[e.Interface]++
		}
	}
	return counts
}

type snapshotJSON struct {
	ID          string        `json:"id" yaml:"id"`
	CollectedAt time.Time     `json:"collectedAt" yaml:"collectedAt"`
	DurationMS  int64         `json:"durationMs" yaml:"durationMs"`
	Interfaces  []Interface   `json:"interfaces" yaml:"interfaces"`
	Samples     []Sample      `json:"samples" yaml:"samples"`
	Errors      []ErrorMarker `json:"errors" yaml:"errors"`
	Warnings    []Warning     `json:"warnings" yaml:"warnings"`
}

func (s *Snapshot) view() snapshotJSON {
	return snapshotJSON{
		ID:          s.id,
		CollectedAt: s.collectedAt,
		DurationMS:  s.duration.Milliseconds(),
		Interfaces:  nonNil(s.interfaces),
		Samples:     nonNil(s.samples),
		Errors:      nonNil(s.errors),
		Warnings:    nonNil(s.warnings),
	}
}

// MarshalJSON implements json.Marshaler.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.view())
}

// MarshalYAML implements yaml.Marshaler.
func (s *Snapshot) MarshalYAML() (any, error) {
	return s.view(), nil
}

// TableHeader returns the column names used by TableRows.
func (s *Snapshot) TableHeader() []string {
	return []string{"METRIC", "LABELS", "VALUE"}
}

// TableRows renders one row per sample followed by one row per error marker.
func (s *Snapshot) TableRows() [][]string {
	rows := make([][]string, 0, len(s.samples)+len(s.errors))
	for _, smp := range s.samples {
		rows = append(rows, []string{
			smp.Name,
			smp.Labels.String(),
			strconv.FormatFloat(smp.Value, 'g', -1, 64),
		})
	}
	for _, e := range s.errors {
		name := e.Interface
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			"error",
			Labels{LabelInterface: name, "source": e.Source}.String(),
			string(e.Code),
		})
	}
	return rows
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func compareSamples(a, b Sample) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Labels.String(), b.Labels.String())
}
