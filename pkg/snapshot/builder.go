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
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Builder accumulates the results of a pass. It is not safe for
// concurrent use; collect per-interface results first, then add them.
type Builder struct {
	start      time.Time
	interfaces []Interface
	samples    []Sample
	errors     []ErrorMarker
	warnings   map[Warning]int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		warnings: make(map[Warning]int),
	}
}

// WithStart records the pass start time used to compute its duration.
func (b *Builder) WithStart(t time.Time) *Builder {
	b.start = t
	return b
}

// AddInterface records a polled interface.
func (b *Builder) AddInterface(iface Interface) *Builder {
	b.interfaces = append(b.interfaces, iface)
	return b
}

// AddSample adds one sample. Labels are copied.
func (b *Builder) AddSample(s Sample) *Builder {
	s.Labels = maps.Clone(s.Labels)
	if s.Labels == nil {
		s.Labels = Labels{}
	}
	b.samples = append(b.samples, s)
	return b
}

// AddSamples adds several samples.
func (b *Builder) AddSamples(samples ...Sample) *Builder {
	for _, s := range samples {
		b.AddSample(s)
	}
	return b
}

// AddError records an error marker.
func (b *Builder) AddError(e ErrorMarker) *Builder {
	b.errors = append(b.errors, e)
	return b
}

// AddWarnings adds n parse warnings for an interface and source.
func (b *Builder) AddWarnings(iface, source string, n int) *Builder {
	if n > 0 {
		b.warnings[Warning{Interface: iface, Source: source}] += n
	}
	return b
}

// Build returns the immutable snapshot stamped with the given completion time.
// Contents are sorted so equal passes render identically.
func (b *Builder) Build(collectedAt time.Time) *Snapshot {
	s := &Snapshot{
		id:          uuid.NewString(),
		collectedAt: collectedAt,
		interfaces:  slices.Clone(b.interfaces),
		samples:     slices.Clone(b.samples),
		errors:      slices.Clone(b.errors),
	}
	if !b.start.IsZero() {
		s.duration = collectedAt.Sub(b.start)
	}

	slices.SortStableFunc(s.interfaces, func(x, y Interface) int {
		return cmp.Compare(x.Name, y.Name)
	})
	slices.SortStableFunc(s.samples, compareSamples)
	slices.SortStableFunc(s.errors, func(x, y ErrorMarker) int {
		return cmp.Or(
			cmp.Compare(x.Interface, y.Interface),
			cmp.Compare(x.Source, y.Source),
		)
	})

	for w, n := range b.warnings {
		w.Count = n
		s.warnings = append(s.warnings, w)
	}
	slices.SortFunc(s.warnings, func(x, y Warning) int {
		return cmp.Or(
			cmp.Compare(x.Interface, y.Interface),
			cmp.Compare(x.Source, y.Source),
		)
	})

	return s
}
