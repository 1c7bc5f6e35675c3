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


package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/netdev-exporter/pkg/collector"
	"github.com/NVIDIA/netdev-exporter/pkg/command"
	"github.com/NVIDIA/netdev-exporter/pkg/config"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "netdev-exporter", Name())
	assert.Equal(t, "dev", versionDefault)
	assert.NotEmpty(t, Version())
	c, d := BuildInfo()
	assert.NotEmpty(t, c)
	assert.NotEmpty(t, d)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testConfig returns a config over a sysfs fixture with one physical NIC.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "class", "net", "eth0")
	writeFile(t, filepath.Join(dir, "flags"), "0x1003\n")
	writeFile(t, filepath.Join(dir, "type"), "1\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "device"), 0o755))

	cfg := config.Default()
	cfg.Discovery.Sysfs = root
	cfg.Ethtool.Path = "/opt/bin/ethtool"
	cfg.Ibdev.Path = "/opt/bin/ibdev2netdev"
	cfg.Server.ShutdownTimeout = time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func fakeTools() command.RunnerFunc {
	return func(_ context.Context, path string, _ []string, _ time.Duration) (*command.Result, error) {
		if path == "/opt/bin/ethtool" {
			return &command.Result{Stdout: []byte("NIC statistics:\n     rx_bytes: 1234\n")}, nil
		}
		return nil, &os.PathError{Op: "exec", Path: path, Err: os.ErrNotExist}
	}
}

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestExporter_Serve(t *testing.T) {
	rec := &recorder{}
	e, err := New(testConfig(t),
		WithFactoryOptions(collector.WithRunner(fakeTools())),
		withNotifier(rec.notify),
	)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, gerr := http.Get(base + "/health")
		if gerr != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	// the startup pass makes the exporter ready without a scrape
	require.Eventually(t, func() bool {
		resp, gerr := http.Get(base + "/ready")
		if gerr != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, e.Cache().Current())

	code, body := get(t, base+PathMetrics)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `ethtool_rx_bytes_total{interface="eth0"} 1234`)
	assert.Contains(t, body, "netdev_exporter_snapshot_age_seconds")
	assert.Contains(t, body, `netdev_exporter_interface_collection_errors{interface="eth0"} 0`)
	assert.Contains(t, body, "netdev_exporter_http_requests_in_flight")

	code, _ = get(t, base+"/ready")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, base+PathSnapshot)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"rx_bytes"`)

	code, _ = get(t, base+"/")
	assert.Equal(t, http.StatusOK, code)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("exporter did not stop")
	}

	assert.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, rec.get())
}

func TestExporter_BackgroundRefresh(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collection.RefreshInterval = 20 * time.Millisecond

	rec := &recorder{}
	e, err := New(cfg,
		WithFactoryOptions(collector.WithRunner(fakeTools())),
		withNotifier(rec.notify),
	)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		return e.Cache().Current() != nil
	}, 2*time.Second, 10*time.Millisecond)

	first := e.Cache().Current().ID()
	require.Eventually(t, func() bool {
		return e.Cache().Current().ID() != first
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNew_DiscoveryUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Discovery.Sysfs = filepath.Join(t.TempDir(), "missing")

	_, err := New(cfg, withNotifier(func(string) {}))
	require.Error(t, err)
}

func TestRun_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.Address = "127.0.0.1"
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port

	e, err := New(cfg, WithFactoryOptions(collector.WithRunner(fakeTools())), withNotifier(func(string) {}))
	require.NoError(t, err)

	err = e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestCollect(t *testing.T) {
	snap, err := Collect(context.Background(), testConfig(t),
		WithFactoryOptions(collector.WithRunner(fakeTools())))
	require.NoError(t, err)

	ifaces := snap.Interfaces()
	require.Len(t, ifaces, 1)
	assert.Equal(t, "eth0", ifaces[0].Name)

	samples := snap.SamplesFor("eth0")
	require.NotEmpty(t, samples)
	var found bool
	for _, s := range samples {
		if s.Name == "ethtool_rx_bytes_total" {
			found = true
			assert.InDelta(t, 1234.0, s.Value, 0)
		}
	}
	assert.True(t, found, "expected ethtool_rx_bytes_total sample")
}
