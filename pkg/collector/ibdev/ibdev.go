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

// Package ibdev correlates Ethernet interface names with InfiniBand devices
// using the output of `ibdev2netdev`:
//
//	mlx5_0 port 1 ==> ib0 (Up)
//	mlx5_1 port 1 ==> enp65s0f1np1 (Down)
//
// A host without the tool has no InfiniBand hardware to report on; that
// case yields an empty mapping and no error.
package ibdev

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/command"
	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
)

// DefaultPath is the mapping tool looked up on PATH.
const DefaultPath = "ibdev2netdev"

// Port identifies an InfiniBand device port.
type Port struct {
	Device string `json:"device"`
	Port   uint   `json:"port"`
}

// Mapping maps an Ethernet interface name to its InfiniBand port.
type Mapping map[string]Port

// Lookup returns the port mapped to iface.
func (m Mapping) Lookup(iface string) (Port, bool) {
	p, ok := m[iface]
	return p, ok
}

// Result holds a parsed mapping and the lines that were skipped.
type Result struct {
	Mapping Mapping
	Skipped []string
}

// Parse parses ibdev2netdev output. Malformed lines are skipped.
// When a netdev appears twice the first entry wins.
func Parse(data []byte) *Result {
	res := &Result{Mapping: make(Mapping)}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		netdev, port, ok := parseLine(line)
		if !ok {
			res.Skipped = append(res.Skipped, line)
			continue
		}
		if _, dup := res.Mapping[netdev]; dup {
			res.Skipped = append(res.Skipped, line)
			continue
		}
		res.Mapping[netdev] = port
	}
	return res
}

// parseLine accepts "<dev> port <n> ==> <netdev> [(<state>)]".
func parseLine(line string) (string, Port, bool) {
	f := strings.Fields(line)
	if len(f) < 5 || f[1] != "port" || f[3] != "==>" {
		return "", Port{}, false
	}
	n, err := strconv.ParseUint(f[2], 10, 32)
	if err != nil {
		return "", Port{}, false
	}
	return f[4], Port{Device: f[0], Port: uint(n)}, true
}

// Mapper runs ibdev2netdev once per collection pass.
type Mapper struct {
	runner  command.Runner
	path    string
	timeout time.Duration
}

// NewMapper creates a Mapper. An empty path selects DefaultPath and a
// zero timeout selects defaults.CommandTimeout.
func NewMapper(runner command.Runner, path string, timeout time.Duration) *Mapper {
	if path == "" {
		path = DefaultPath
	}
	if timeout == 0 {
		timeout = defaults.CommandTimeout
	}
	return &Mapper{runner: runner, path: path, timeout: timeout}
}

// Map returns the current mapping. A missing tool returns an empty result
// and no error. Any other failure returns an empty result and the error.
func (m *Mapper) Map(ctx context.Context) (*Result, error) {
	out, err := m.runner.Run(ctx, m.path, nil, m.timeout)
	if err != nil {
		if command.IsNotFound(err) {
			slog.Debug("ibdev2netdev not found, skipping InfiniBand correlation", "path", m.path)
			return &Result{Mapping: Mapping{}}, nil
		}
		return &Result{Mapping: Mapping{}}, errors.WrapWithContext(errors.CodeOf(err),
			"ibdev2netdev failed", err, map[string]any{"path": m.path})
	}

	res := Parse(out.Stdout)
	for _, line := range res.Skipped {
		slog.Debug("skipped ibdev2netdev line", "line", line)
	}
	return res, nil
}
