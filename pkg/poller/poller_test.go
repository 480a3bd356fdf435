// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/backoff"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestPoller(t *testing.T, fetch FetchFunc, def time.Duration) (*Poller, *clockwork.FakeClock) {
	t.Helper()
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)

	fc := clockwork.NewFakeClock()
	b := backoff.New(time.Second, time.Minute, backoff.WithRand(func() float64 { return 0.5 }))
	p := New("test", fetch, def, l, WithClock(fc), WithBackoff(b))
	t.Cleanup(p.Stop)
	return p, fc
}

func waitCycles(t *testing.T, p *Poller, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return p.Schedule().Cycles == n }, waitFor, tick)
}

func TestPollerRunsImmediatelyAndUsesReturnedDelay(t *testing.T) {
	var calls int32
	p, fc := newTestPoller(t, func(context.Context) (time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		return 10 * time.Second, nil
	}, time.Minute)

	p.Start()
	waitCycles(t, p, 1)
	assert.Equal(t, 10*time.Second, p.Schedule().NextDelay)

	fc.Advance(9 * time.Second)
	assert.Never(t, func() bool { return atomic.LoadInt32(&calls) > 1 }, 50*time.Millisecond, tick)

	fc.Advance(time.Second)
	waitCycles(t, p, 2)
}

func TestPollerDefaultDelay(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		return 0, nil
	}, 45*time.Second)

	p.Start()
	waitCycles(t, p, 1)
	assert.Equal(t, 45*time.Second, p.Schedule().NextDelay)
}

func TestPollerErrorBacksOff(t *testing.T) {
	p, fc := newTestPoller(t, func(context.Context) (time.Duration, error) {
		return 0, stderrors.New("boom")
	}, time.Minute)

	p.Start()
	waitCycles(t, p, 1)
	s := p.Schedule()
	assert.Equal(t, 500*time.Millisecond, s.NextDelay)
	assert.Equal(t, 1, s.Attempt)
	assert.Equal(t, "boom", s.LastError)

	fc.Advance(500 * time.Millisecond)
	waitCycles(t, p, 2)
	assert.Equal(t, time.Second, p.Schedule().NextDelay)
}

func TestPollerErrorKeepsExplicitDelay(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		return 5 * time.Second, stderrors.New("rate limited")
	}, time.Minute)

	p.Start()
	waitCycles(t, p, 1)
	assert.Equal(t, 5*time.Second, p.Schedule().NextDelay)
	assert.Equal(t, 1, p.Schedule().Attempt)
}

func TestPollerRecoversPanics(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		panic("feed exploded")
	}, time.Minute)

	p.Start()
	waitCycles(t, p, 1)
	assert.Contains(t, p.Schedule().LastError, "feed exploded")
	assert.True(t, p.Running())
}

func TestPollerSuccessResetsAttempt(t *testing.T) {
	var n int32
	p, fc := newTestPoller(t, func(context.Context) (time.Duration, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			return 0, stderrors.New("first")
		}
		return 0, nil
	}, time.Minute)

	p.Start()
	waitCycles(t, p, 1)
	fc.Advance(500 * time.Millisecond)
	waitCycles(t, p, 2)

	s := p.Schedule()
	assert.Equal(t, 0, s.Attempt)
	assert.Empty(t, s.LastError)
	assert.Equal(t, time.Minute, s.NextDelay)
}

func TestPollerCancelMidFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	p, fc := newTestPoller(t, func(ctx context.Context) (time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return time.Second, nil
	}, time.Minute)

	p.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, waitFor, tick)

	p.Stop()
	close(release)

	fc.Advance(time.Hour)
	assert.Never(t, func() bool { return atomic.LoadInt32(&calls) > 1 }, 100*time.Millisecond, tick)

	s := p.Schedule()
	assert.True(t, s.Cancelled)
	assert.Equal(t, 0, s.Cycles)
}

func TestPollerStopIdempotent(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		return time.Second, nil
	}, time.Minute)

	p.Stop()
	p.Start()
	p.Start()
	waitCycles(t, p, 1)
	p.Stop()
	p.Stop()
	assert.False(t, p.Running())
}

func TestPollerRefresh(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		return time.Hour, nil
	}, time.Minute)

	p.Start()
	waitCycles(t, p, 1)
	p.Refresh()
	waitCycles(t, p, 2)
}

func TestPanicErrorCode(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		panic("x")
	}, time.Minute)

	_, err := p.safeFetch(context.Background())
	assert.True(t, errors.IsCode(err, errors.PollerFetchPanicked))
}

func TestPollerImmediateOverridesBackoff(t *testing.T) {
	var n int32
	p, _ := newTestPoller(t, func(context.Context) (time.Duration, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			return Immediately, errors.New(errors.FeedRateLimited, "/api/balance")
		}
		return time.Hour, nil
	}, time.Minute)

	p.Start()
	// The second cycle runs without advancing the clock.
	waitCycles(t, p, 2)

	s := p.Schedule()
	assert.Equal(t, time.Hour, s.NextDelay)
	assert.Equal(t, 0, s.Attempt)
}
