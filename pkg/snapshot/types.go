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
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/errors"
)

// Common label keys.
const (
	LabelInterface = "interface"
	LabelIBDevice  = "ib_device"
	LabelIBPort    = "ib_port"
)

// Sources of samples and error markers.
const (
	SourceDiscovery = "discovery"
	SourceEthtool   = "ethtool"
	SourceIbdev     = "ibdev2netdev"
	SourceRDMA      = "rdma"
)

// Kind classifies an interface.
type Kind string

const (
	KindEthernet Kind = "ethernet"
	KindRDMA     Kind = "rdma"
)

// Interface is a host network device polled in a pass.
// IBDevice and IBPort are set only for KindRDMA.
type Interface struct {
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	IBDevice string `json:"ibDevice,omitempty" yaml:"ibDevice,omitempty"`
	IBPort   uint   `json:"ibPort,omitempty" yaml:"ibPort,omitempty"`
}

// MetricType is the exposition type of a sample.
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
)

// Labels maps label keys to values.
type Labels map[string]string

// Keys returns the label keys in sorted order.
func (l Labels) Keys() []string {
	return slices.Sorted(maps.Keys(l))
}

// String renders labels as {k="v",...} in key order.
func (l Labels) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range l.Keys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(l[k])
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

// Sample is one measured value.
type Sample struct {
	Name      string     `json:"name" yaml:"name"`
	Help      string     `json:"help,omitempty" yaml:"help,omitempty"`
	Type      MetricType `json:"type" yaml:"type"`
	Source    string     `json:"source" yaml:"source"`
	Stat      string     `json:"stat,omitempty" yaml:"stat,omitempty"`
	Labels    Labels     `json:"labels" yaml:"labels"`
	Value     float64    `json:"value" yaml:"value"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
}

// ErrorMarker records a failed poll. Interface is empty for failures that
// are not tied to one interface, such as a failed mapping tool run.
type ErrorMarker struct {
	Interface string           `json:"interface,omitempty" yaml:"interface,omitempty"`
	Source    string           `json:"source" yaml:"source"`
	Code      errors.ErrorCode `json:"code" yaml:"code"`
	Message   string           `json:"message" yaml:"message"`
}

// Warning counts skipped lines for one interface and source.
type Warning struct {
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
	Source    string `json:"source" yaml:"source"`
	Count     int    `json:"count" yaml:"count"`
}
