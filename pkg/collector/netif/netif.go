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

// Package netif enumerates network interfaces eligible for polling from
// sysfs (/sys/class/net).
//
// Loopback devices are always excluded. By default only interfaces backed
// by a device (those with a /sys/class/net/<name>/device link) are polled;
// when virtual interfaces are admitted, administratively down ones are
// still skipped. Name patterns narrow the set further.
package netif

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/prometheus/procfs/sysfs"

	cerrors "github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/filter"
)

const (
	netClassPath = "class/net"

	iffUp       = 0x1
	iffLoopback = 0x8

	arphrdLoopback = 772
)

// Policy controls which interfaces are polled.
type Policy struct {
	// Names filters interfaces by name.
	Names filter.Selector
	// IncludeVirtual admits interfaces without a backing device.
	IncludeVirtual bool
}

// Discovery lists interfaces from a sysfs mount.
type Discovery struct {
	fs     sysfs.FS
	mount  string
	policy Policy
}

// New creates a Discovery reading sysfs at mount (usually /sys).
func New(mount string, policy Policy) (*Discovery, error) {
	if mount == "" {
		mount = sysfs.DefaultMountPoint
	}
	sfs, err := sysfs.NewFS(mount)
	if err != nil {
		return nil, cerrors.WrapWithContext(cerrors.ErrCodeDiscoveryFailure,
			"failed to open sysfs", err, map[string]any{"mount": mount})
	}
	return &Discovery{fs: sfs, mount: mount, policy: policy}, nil
}

// Discover returns the sorted names of interfaces eligible for polling.
// Failure to list interfaces is an ErrCodeDiscoveryFailure error.
func (d *Discovery) Discover(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeDiscoveryFailure, "discovery canceled", err)
	}

	names, err := d.fs.NetClassDevices()
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeDiscoveryFailure, "failed to list network interfaces", err)
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		ok, reason := d.eligible(name)
		if !ok {
			slog.Debug("interface skipped", "interface", name, "reason", reason)
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (d *Discovery) eligible(name string) (bool, string) {
	if name == "lo" {
		return false, "loopback"
	}
	if !d.policy.Names.Allowed(name) {
		return false, "filtered"
	}

	dir := filepath.Join(d.mount, netClassPath, name)
	var attrs sysfs.NetClassIface
	for _, attr := range []string{"flags", "type"} {
		if err := sysfs.ParseNetClassAttribute(dir, attr, &attrs); err != nil {
			slog.Warn("failed to read interface attribute",
				"interface", name,
				"attribute", attr,
				"error", err)
			return false, "unreadable"
		}
	}

	if attrs.Type != nil && *attrs.Type == arphrdLoopback {
		return false, "loopback"
	}
	if attrs.Flags != nil && *attrs.Flags&iffLoopback != 0 {
		return false, "loopback"
	}

	if hasDevice(dir) {
		return true, ""
	}
	if !d.policy.IncludeVirtual {
		return false, "virtual"
	}
	if attrs.Flags == nil || *attrs.Flags&iffUp == 0 {
		return false, "virtual and down"
	}
	return true, ""
}

func hasDevice(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "device"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("device link check failed", "path", dir, "error", err)
	}
	return err == nil
}
