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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/snapshot"
)

// fakeCollector returns queued outcomes in order, repeating the last one.
type fakeCollector struct {
	clock *clocktesting.FakeClock
	calls atomic.Int32
	gate  chan struct{}

	mu       sync.Mutex
	outcomes []error
	panicMsg string
}

func (f *fakeCollector) Collect(context.Context) (*snapshot.Snapshot, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	var err error
	if len(f.outcomes) > 0 {
		err = f.outcomes[0]
		if len(f.outcomes) > 1 {
			f.outcomes = f.outcomes[1:]
		}
	}
	if err != nil {
		return nil, err
	}
	return snapshot.NewBuilder().
		AddSample(snapshot.Sample{
			Name:   "ethtool_rx_errors_total",
			Labels: snapshot.Labels{snapshot.LabelInterface: "eth0"},
			Value:  float64(n),
		}).
		Build(f.clock.Now()), nil
}

func newFixture(outcomes ...error) (*Cache, *fakeCollector, *clocktesting.FakeClock) {
	clk := clocktesting.NewFakeClock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	fc := &fakeCollector{clock: clk, outcomes: outcomes}
	return New(fc, WithClock(clk)), fc, clk
}

var errPass = errors.New(errors.ErrCodeDiscoveryFailure, "cannot list interfaces")

func TestGetSnapshot_ServesCachedWithinMaxAge(t *testing.T) {
	c, fc, clk := newFixture()
	ctx := context.Background()

	first, err := c.GetSnapshot(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, first.Stale)

	clk.Step(29 * time.Second)
	second, err := c.GetSnapshot(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.Same(t, first.Snapshot, second.Snapshot)
	assert.Equal(t, int32(1), fc.calls.Load())
	assert.Equal(t, 29*time.Second, second.Age(clk.Now()))

	clk.Step(2 * time.Second)
	third, err := c.GetSnapshot(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.NotSame(t, first.Snapshot, third.Snapshot)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestGetSnapshot_ZeroMaxAgeAlwaysCollects(t *testing.T) {
	c, fc, _ := newFixture()
	ctx := context.Background()

	for range 3 {
		_, err := c.GetSnapshot(ctx, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), fc.calls.Load())
}

func TestGetSnapshot_CoalescesConcurrentCallers(t *testing.T) {
	c, fc, _ := newFixture()
	fc.gate = make(chan struct{})

	const callers = 20
	results := make([]*Result, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			res, err := c.GetSnapshot(context.Background(), 30*time.Second)
			assert.NoError(t, err)
			results[i] = res
		})
	}

	require.Eventually(t, func() bool { return fc.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the remaining callers time to queue behind the pass.
	time.Sleep(20 * time.Millisecond)
	close(fc.gate)
	wg.Wait()

	assert.Equal(t, int32(1), fc.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Same(t, results[0].Snapshot, r.Snapshot)
	}
}

func TestGetSnapshot_FailureServesPreviousAsStale(t *testing.T) {
	c, _, clk := newFixture(nil, errPass, errPass, nil)
	ctx := context.Background()

	good, err := c.GetSnapshot(ctx, 0)
	require.NoError(t, err)
	goodJSON, err := good.Snapshot.MarshalJSON()
	require.NoError(t, err)

	clk.Step(time.Minute)
	stale, err := c.GetSnapshot(ctx, 0)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Same(t, good.Snapshot, stale.Snapshot)
	assert.ErrorIs(t, stale.Err, errPass)
	assert.Equal(t, int64(1), stale.ConsecutiveFailures)

	staleJSON, err := stale.Snapshot.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, goodJSON, staleJSON)

	again, err := c.GetSnapshot(ctx, 0)
	require.NoError(t, err)
	assert.True(t, again.Stale)
	assert.Equal(t, int64(2), c.ConsecutiveFailures())

	// A cached read while the last pass failed stays flagged.
	cached, err := c.GetSnapshot(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, cached.Stale)

	recovered, err := c.GetSnapshot(ctx, 0)
	require.NoError(t, err)
	assert.False(t, recovered.Stale)
	assert.Nil(t, recovered.Err)
	assert.NotSame(t, good.Snapshot, recovered.Snapshot)
	assert.Zero(t, c.ConsecutiveFailures())
}

func TestGetSnapshot_FailureWithoutPrevious(t *testing.T) {
	c, _, _ := newFixture(errPass)

	assert.False(t, c.Attempted())
	res, err := c.GetSnapshot(context.Background(), 10*time.Second)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
	assert.ErrorIs(t, err, errPass)
	assert.True(t, c.Attempted())
	assert.Nil(t, c.Current())
}

func TestGetSnapshot_PanicIsContained(t *testing.T) {
	c, fc, _ := newFixture()
	ctx := context.Background()

	good, err := c.GetSnapshot(ctx, 0)
	require.NoError(t, err)

	fc.mu.Lock()
	fc.panicMsg = "boom"
	fc.mu.Unlock()

	res, err := c.GetSnapshot(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Same(t, good.Snapshot, res.Snapshot)
	assert.True(t, errors.IsCode(res.Err, errors.ErrCodeInternal))
}

func TestGetSnapshot_CallerCancellation(t *testing.T) {
	c, fc, _ := newFixture()
	fc.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetSnapshot(ctx, 0)
		done <- err
	}()

	require.Eventually(t, func() bool { return fc.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))

	// The abandoned pass still completes and becomes current.
	close(fc.gate)
	require.Eventually(t, func() bool { return c.Current() != nil }, time.Second, time.Millisecond)
}

func TestRun_RefreshesOnTicker(t *testing.T) {
	c, fc, clk := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 15*time.Second) }()

	require.Eventually(t, func() bool { return c.Current() != nil && clk.HasWaiters() }, time.Second, time.Millisecond)
	first := c.Current()
	require.NotNil(t, first)

	clk.Step(15 * time.Second)
	require.Eventually(t, func() bool { return fc.calls.Load() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.Current() != first }, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_InvalidInterval(t *testing.T) {
	c, _, _ := newFixture()
	err := c.Run(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
}

// alternatingCollector succeeds on odd passes and fails on even ones. Each
// failure names its pass so readers can check which snapshot it belongs to.
type alternatingCollector struct {
	passes atomic.Int64
	byID   sync.Map // snapshot ID -> pass number
}

type passError struct{ pass int64 }

func (e *passError) Error() string { return fmt.Sprintf("pass %d failed", e.pass) }

func (a *alternatingCollector) Collect(context.Context) (*snapshot.Snapshot, error) {
	n := a.passes.Add(1)
	if n%2 == 0 {
		return nil, &passError{pass: n}
	}
	s := snapshot.NewBuilder().Build(time.Now())
	a.byID.Store(s.ID(), n)
	return s, nil
}

func TestGetSnapshot_ResultIsConsistent(t *testing.T) {
	ac := &alternatingCollector{}
	c := New(ac)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	check := func(res *Result) {
		if !res.Stale {
			assert.Zero(t, res.ConsecutiveFailures)
			assert.NoError(t, res.Err)
			return
		}
		var pe *passError
		if !assert.ErrorAs(t, res.Err, &pe) {
			return
		}
		snapPass, ok := ac.byID.Load(res.Snapshot.ID())
		if !assert.True(t, ok) {
			return
		}
		// A stale result carries the snapshot of the pass right before the failure.
		assert.Equal(t, pe.pass-1, snapPass.(int64))
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				res, err := c.GetSnapshot(ctx, time.Hour)
				if err != nil {
					continue
				}
				check(res)
			}
		}()
	}

	for range 200 {
		res, err := c.Refresh(context.Background())
		require.NoError(t, err)
		check(res)
	}
	cancel()
	wg.Wait()
}
