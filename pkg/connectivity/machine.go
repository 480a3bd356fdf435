// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/response"
)

// Phase is the aggregate link state shown to status surfaces
type Phase string

const (
	PhaseConnected    Phase = "connected"
	PhaseConnecting   Phase = "connecting"
	PhaseDisconnected Phase = "disconnected"
)

var Phases = []string{string(PhaseConnected), string(PhaseConnecting), string(PhaseDisconnected)}

const DefaultMaxAttempts = 3

// Snapshot is a copy of the machine state handed to subscribers
type Snapshot struct {
	IsConnected  bool      `json:"isConnected"`
	IsConnecting bool      `json:"isConnecting"`
	Phase        Phase     `json:"phase"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"maxAttempts"`
	Reason       string    `json:"reason,omitempty"`
	ChangedAt    time.Time `json:"changedAt"`
}

// Prober performs a single liveness request. The transport requester
// satisfies it.
type Prober interface {
	Fetch(ctx context.Context, method, path string) response.Result
}

// Machine holds the shared connectivity state. It starts optimistic
// (connected) and is never terminal.
type Machine struct {
	logger logger.Logger
	clock  clockwork.Clock

	mu          sync.Mutex
	phase       Phase
	attempt     int
	maxAttempts int
	reason      string
	changedAt   time.Time

	// notifyMu orders deliveries so subscribers observe transitions in the
	// order they were applied
	notifyMu sync.Mutex
	hub      *events.Hub[Snapshot]
}

type Option func(*Machine)

func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// New creates a machine in the connected phase
func New(maxAttempts int, l logger.Logger, opts ...Option) *Machine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	m := &Machine{
		logger:      l,
		clock:       clockwork.NewRealClock(),
		phase:       PhaseConnected,
		maxAttempts: maxAttempts,
		hub:         events.NewHub[Snapshot]("connectivity", l),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.changedAt = m.clock.Now()
	return m
}

// SetPhase moves to phase, keeping the attempt counter unless the new phase
// is connected. It is a no-op when the phase is unchanged.
func (m *Machine) SetPhase(phase Phase, reason string) bool {
	m.mu.Lock()
	attempt := m.attempt
	m.mu.Unlock()
	return m.Transition(phase, attempt, reason)
}

// Transition records attempt and moves to phase. Counters are always
// updated; subscribers are notified only when the phase changes. Entering
// connected resets the attempt counter.
func (m *Machine) Transition(phase Phase, attempt int, reason string) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if phase == PhaseConnected {
		attempt = 0
	}
	m.attempt = attempt
	changed := m.phase != phase
	if changed {
		m.phase = phase
		m.reason = reason
		m.changedAt = m.clock.Now()
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if !changed {
		return false
	}

	if m.logger != nil {
		m.logger.Debug("Connectivity changed",
			"phase", snap.Phase,
			"attempt", snap.Attempt,
			"reason", reason)
	}
	m.hub.Publish(snap)
	return true
}

// SetMaxAttempts updates the ceiling reported in snapshots
func (m *Machine) SetMaxAttempts(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.maxAttempts = n
	m.mu.Unlock()
}

// Snapshot returns the current state
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		IsConnected:  m.phase == PhaseConnected,
		IsConnecting: m.phase == PhaseConnecting,
		Phase:        m.phase,
		Attempt:      m.attempt,
		MaxAttempts:  m.maxAttempts,
		Reason:       m.reason,
		ChangedAt:    m.changedAt,
	}
}

// Subscribe registers fn and immediately invokes it with the current
// snapshot. fn must not call Transition, SetPhase or TestConnection
// synchronously; hand such work off to a goroutine.
func (m *Machine) Subscribe(fn func(Snapshot)) events.Unsubscribe {
	if fn == nil {
		return func() {}
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	unsub := m.hub.Subscribe(fn)
	m.hub.Deliver(fn, m.Snapshot())
	return unsub
}

// Subscribers returns the number of active subscriptions
func (m *Machine) Subscribers() int {
	return m.hub.Len()
}

// TestConnection issues one liveness request and settles the phase from its
// outcome. A rate-limited answer counts as a failure here.
func (m *Machine) TestConnection(ctx context.Context, p Prober) Snapshot {
	res := p.Fetch(ctx, http.MethodGet, constants.EndpointHealth)

	switch res.Kind {
	case response.KindOk:
		m.Transition(PhaseConnected, 0, "liveness check succeeded")
	case response.KindRateLimited:
		m.SetPhase(PhaseDisconnected, "liveness check rate limited")
	default:
		m.SetPhase(PhaseDisconnected, "liveness check failed: "+res.ErrorString())
	}
	return m.Snapshot()
}
