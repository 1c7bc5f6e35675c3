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

package snapshotter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
)

const collectKey = "collect"

// Collector runs one collection pass.
type Collector interface {
	Collect(ctx context.Context) (*snapshot.Snapshot, error)
}

// Result is a snapshot served by the cache.
type Result struct {
	Snapshot *snapshot.Snapshot
	// Stale is set when the most recent pass failed.
	Stale bool
	// Err is the failure of the most recent pass when Stale is set.
	Err error
	// ConsecutiveFailures counts failed passes since the last success.
	ConsecutiveFailures int64
}

// Age returns the snapshot age at now.
func (r *Result) Age(now time.Time) time.Duration {
	return r.Snapshot.Age(now)
}

// state is the outcome of the latest pass. It is replaced as a whole so a
// snapshot is never paired with another pass's failure count or error.
type state struct {
	snap     *snapshot.Snapshot
	failures int64
	err      error
}

func (s *state) result() *Result {
	res := &Result{
		Snapshot:            s.snap,
		ConsecutiveFailures: s.failures,
	}
	if s.failures > 0 {
		res.Stale = true
		res.Err = s.err
	}
	return res
}

// Cache holds the current snapshot and serializes collection passes.
type Cache struct {
	collector Collector
	clock     clock.WithTicker
	group     singleflight.Group

	state     atomic.Pointer[state]
	attempted atomic.Bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for snapshot age and the refresher ticker.
func WithClock(clk clock.WithTicker) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

// New creates an empty Cache.
func New(collector Collector, opts ...Option) *Cache {
	c := &Cache{
		collector: collector,
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the current snapshot, or nil before the first successful pass.
func (c *Cache) Current() *snapshot.Snapshot {
	if st := c.state.Load(); st != nil {
		return st.snap
	}
	return nil
}

// Attempted reports whether at least one pass has completed.
func (c *Cache) Attempted() bool {
	return c.attempted.Load()
}

// ConsecutiveFailures returns the number of failed passes since the last success.
func (c *Cache) ConsecutiveFailures() int64 {
	if st := c.state.Load(); st != nil {
		return st.failures
	}
	return 0
}

// GetSnapshot returns the current snapshot when it is at most maxAge old,
// otherwise it runs a pass or joins the one in flight. A maxAge of zero
// always runs or joins a pass.
func (c *Cache) GetSnapshot(ctx context.Context, maxAge time.Duration) (*Result, error) {
	if res := c.fresh(maxAge); res != nil {
		return res, nil
	}

	ch := c.group.DoChan(collectKey, func() (any, error) {
		// A pass that finished while this caller was queued may already satisfy it.
		if res := c.fresh(maxAge); res != nil {
			return res, nil
		}
		return c.collect(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTimeout, "gave up waiting for collection pass", ctx.Err())
	case r := <-ch:
		if r.Shared {
			collectionCoalesced.Inc()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

// Refresh runs a pass or joins the one in flight.
func (c *Cache) Refresh(ctx context.Context) (*Result, error) {
	return c.GetSnapshot(ctx, 0)
}

// Run refreshes the snapshot immediately and then every interval until ctx
// is done. It returns nil on cancellation.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest, "refresh interval must be positive",
			map[string]any{"interval": interval.String()})
	}

	slog.Info("starting snapshot refresher", "interval", interval)
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	c.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("snapshot refresher stopped")
			return nil
		case <-ticker.C():
			c.refresh(ctx)
		}
	}
}

func (c *Cache) refresh(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("background refresh failed", "error", err)
	}
}

// fresh returns the current snapshot when it satisfies maxAge.
func (c *Cache) fresh(maxAge time.Duration) *Result {
	if maxAge <= 0 {
		return nil
	}
	st := c.state.Load()
	if st == nil || st.snap == nil || st.snap.Age(c.clock.Now()) > maxAge {
		return nil
	}
	return st.result()
}

// collect runs one pass. It is only called from inside the singleflight
// group, so it is the only writer of state.
func (c *Cache) collect(ctx context.Context) (*Result, error) {
	start := c.clock.Now()
	defer func() {
		collectionDuration.Observe(c.clock.Since(start).Seconds())
		c.attempted.Store(true)
	}()

	snap, err := c.safeCollect(ctx)
	if err == nil {
		st := &state{snap: snap}
		c.state.Store(st)
		collectionTotal.WithLabelValues("success").Inc()
		return st.result(), nil
	}

	collectionTotal.WithLabelValues("failure").Inc()
	st := &state{failures: 1, err: err}
	if prev := c.state.Load(); prev != nil {
		st.snap = prev.snap
		st.failures = prev.failures + 1
	}
	c.state.Store(st)

	if st.snap == nil {
		slog.Error("collection pass failed, no snapshot available",
			"error", err,
			"consecutiveFailures", st.failures)
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "no snapshot available", err)
	}

	slog.Warn("collection pass failed, serving previous snapshot",
		"error", err,
		"snapshotId", st.snap.ID(),
		"consecutiveFailures", st.failures)
	return st.result(), nil
}

// safeCollect converts a panic in the pass into an error so waiters are
// released and the previous snapshot stays current.
func (c *Cache) safeCollect(ctx context.Context) (snap *snapshot.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("collection pass panicked: %v", r))
		}
	}()
	snap, err = c.collector.Collect(ctx)
	if err == nil && snap == nil {
		err = errors.New(errors.ErrCodeInternal, "collector returned no snapshot")
	}
	return snap, err
}
