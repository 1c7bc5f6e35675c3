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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/logging"
	"github.com/NVIDIA/netdev-exporter/pkg/server"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshotter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/utils/clock"
)

// SnapshotSource supplies the snapshot to render.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, maxAge time.Duration) (*snapshotter.Result, error)
}

// Handler serves snapshots from a SnapshotSource.
type Handler struct {
	source   SnapshotSource
	maxAge   time.Duration
	gatherer prometheus.Gatherer
	clock    clock.PassiveClock
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxAge sets the maximum snapshot age served without a new pass.
// Zero collects on every request.
func WithMaxAge(d time.Duration) Option {
	return func(h *Handler) {
		h.maxAge = d
	}
}

// WithGatherer sets the gatherer served next to the snapshot metrics.
// Nil serves snapshot metrics only.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// WithClock sets the clock used to compute snapshot age.
func WithClock(clk clock.PassiveClock) Option {
	return func(h *Handler) {
		h.clock = clk
	}
}

// NewHandler returns a Handler serving snapshots from source together with
// prometheus.DefaultGatherer.
func NewHandler(source SnapshotSource, opts ...Option) *Handler {
	h := &Handler{
		source:   source,
		maxAge:   defaults.SnapshotMaxAge,
		gatherer: prometheus.DefaultGatherer,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP renders the snapshot in the exposition format negotiated with
// the client.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		server.WriteError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, map[string]any{"method": r.Method})
		return
	}

	res, err := h.source.GetSnapshot(r.Context(), h.maxAge)
	if err != nil {
		slog.Warn("no snapshot to expose", "error", err)
		server.WriteErrorFromErr(w, r, err, "snapshot unavailable", nil)
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(newSnapshotCollector(res, h.clock.Now()))

	gatherers := prometheus.Gatherers{reg}
	if h.gatherer != nil {
		gatherers = append(gatherers, h.gatherer)
	}

	promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
		ErrorLog:      logging.NewLogLogger(slog.LevelWarn, false),
		ErrorHandling: promhttp.ContinueOnError,
	}).ServeHTTP(w, r)
}

// SnapshotResponse is the JSON view of a cached snapshot.
type SnapshotResponse struct {
	Stale               bool               `json:"stale"`
	ConsecutiveFailures int64              `json:"consecutiveFailures"`
	AgeSeconds          float64            `json:"ageSeconds"`
	LastError           string             `json:"lastError,omitempty"`
	Snapshot            *snapshot.Snapshot `json:"snapshot"`
}

// ServeSnapshot writes the snapshot as JSON. It shares the cache and max
// age with ServeHTTP.
func (h *Handler) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		server.WriteError(w, r, http.StatusMethodNotAllowed, errors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, map[string]any{"method": r.Method})
		return
	}

	res, err := h.source.GetSnapshot(r.Context(), h.maxAge)
	if err != nil {
		server.WriteErrorFromErr(w, r, err, "snapshot unavailable", nil)
		return
	}

	resp := SnapshotResponse{
		Stale:               res.Stale,
		ConsecutiveFailures: res.ConsecutiveFailures,
		AgeSeconds:          res.Age(h.clock.Now()).Seconds(),
		Snapshot:            res.Snapshot,
	}
	if res.Err != nil {
		resp.LastError = res.Err.Error()
	}

	server.RespondJSON(w, http.StatusOK, resp)
}
