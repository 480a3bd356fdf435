// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	return New(3, l)
}

type stubProber struct {
	result response.Result
	paths  []string
}

func (s *stubProber) Fetch(_ context.Context, _, path string) response.Result {
	s.paths = append(s.paths, path)
	return s.result
}

func TestMachineStartsConnected(t *testing.T) {
	m := newTestMachine(t)
	snap := m.Snapshot()

	assert.True(t, snap.IsConnected)
	assert.False(t, snap.IsConnecting)
	assert.Equal(t, PhaseConnected, snap.Phase)
	assert.Equal(t, 0, snap.Attempt)
	assert.Equal(t, 3, snap.MaxAttempts)
}

func TestSubscribeReplaysCurrentState(t *testing.T) {
	m := newTestMachine(t)
	m.Transition(PhaseConnecting, 2, "retrying")

	var got []Snapshot
	unsub := m.Subscribe(func(s Snapshot) { got = append(got, s) })
	defer unsub()

	require.Len(t, got, 1)
	assert.Equal(t, PhaseConnecting, got[0].Phase)
	assert.Equal(t, 2, got[0].Attempt)
}

func TestNotifiesOnlyOnPhaseChange(t *testing.T) {
	m := newTestMachine(t)

	var phases []Phase
	m.Subscribe(func(s Snapshot) { phases = append(phases, s.Phase) })

	assert.False(t, m.SetPhase(PhaseConnected, "noop"))
	assert.True(t, m.Transition(PhaseConnecting, 1, "attempt 1"))
	assert.False(t, m.Transition(PhaseConnecting, 2, "attempt 2"))
	assert.True(t, m.Transition(PhaseConnected, 2, "recovered"))

	assert.Equal(t, []Phase{PhaseConnected, PhaseConnecting, PhaseConnected}, phases)
	assert.Equal(t, 0, m.Snapshot().Attempt)
}

func TestCountersUpdateWithoutNotification(t *testing.T) {
	m := newTestMachine(t)
	m.Transition(PhaseConnecting, 1, "")
	m.Transition(PhaseConnecting, 3, "")

	assert.Equal(t, 3, m.Snapshot().Attempt)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := newTestMachine(t)

	calls := 0
	unsub := m.Subscribe(func(Snapshot) { calls++ })
	unsub()
	m.SetPhase(PhaseDisconnected, "down")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, m.Subscribers())
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	m := newTestMachine(t)

	m.Subscribe(func(s Snapshot) {
		if s.Phase == PhaseDisconnected {
			panic("boom")
		}
	})
	var last Phase
	m.Subscribe(func(s Snapshot) { last = s.Phase })

	require.NotPanics(t, func() { m.SetPhase(PhaseDisconnected, "down") })
	assert.Equal(t, PhaseDisconnected, last)
}

func TestConcurrentTransitions(t *testing.T) {
	m := newTestMachine(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.Transition(PhaseConnecting, i%4, "")
			} else {
				m.Transition(PhaseConnected, 0, "")
			}
		}(i)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Contains(t, []Phase{PhaseConnected, PhaseConnecting}, snap.Phase)
	assert.Equal(t, 3, snap.MaxAttempts)
}

func TestTestConnection(t *testing.T) {
	limit := int64(1000)
	tests := []struct {
		name   string
		result response.Result
		want   Phase
	}{
		{"ok", response.Result{Kind: response.KindOk, StatusCode: 200}, PhaseConnected},
		{"rate limited", response.Result{Kind: response.KindRateLimited, StatusCode: 429, RetryAfterMs: &limit}, PhaseDisconnected},
		{"application failure", response.Result{Kind: response.KindFailed, StatusCode: 503, Error: "down"}, PhaseDisconnected},
		{"transport failure", response.TransportFailure(errors.New("refused")), PhaseDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t)
			if tt.want == PhaseConnected {
				m.SetPhase(PhaseDisconnected, "")
			}
			p := &stubProber{result: tt.result}

			snap := m.TestConnection(context.Background(), p)
			assert.Equal(t, tt.want, snap.Phase)
			assert.Equal(t, []string{"/health"}, p.paths)
		})
	}
}
