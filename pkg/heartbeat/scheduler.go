// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package heartbeat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/metrics"
	"github.com/stratastor/tether/pkg/response"
)

// Pinger issues a single liveness request
type Pinger interface {
	FetchOnce(ctx context.Context, method, path string) response.Result
}

// timer is a cancellable clock timer tagged with the generation it was
// armed under; callbacks from older generations are ignored
type timer struct {
	t   clockwork.Timer
	gen uint64
}

func (t *timer) stop() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.gen++
}

// Scheduler turns Decide's effects into clock timers and pings
type Scheduler struct {
	cfg     Config
	pinger  Pinger
	clock   clockwork.Clock
	logger  logger.Logger
	metrics *metrics.Collector
	hub     *events.Hub[events.Event]

	mu       sync.Mutex
	state    State
	running  bool
	runGen   uint64
	ctx      context.Context
	cancel   context.CancelFunc
	interval timer
	every    time.Duration
	oneShot  timer
	cooldown timer
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a stopped scheduler
func New(cfg Config, pinger Pinger, l logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg.withDefaults(),
		pinger: pinger,
		clock:  clockwork.NewRealClock(),
		logger: l,
		hub:    events.NewHub[events.Event]("heartbeat", l),
		state:  State{Mode: ModeNormal},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Config() Config {
	return s.cfg
}

// Subscribe registers fn for ping success and failure events
func (s *Scheduler) Subscribe(fn func(events.Event)) events.Unsubscribe {
	return s.hub.Subscribe(fn)
}

// State returns a copy of the current bookkeeping
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins pinging immediately. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.runGen++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	gen := s.runGen
	s.mu.Unlock()

	s.logger.Info("Heartbeat started",
		"interval", s.cfg.NormalInterval,
		"endpoint", s.cfg.PingPath)
	s.dispatch(gen, Started{At: s.clock.Now()})
}

// Stop cancels every timer and any in-flight ping. Results that arrive
// afterwards are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	s.interval.stop()
	s.oneShot.stop()
	s.cooldown.stop()
	s.state.InFlight = false

	s.logger.Info("Heartbeat stopped",
		"total_pings", s.state.TotalAttempts,
		"successful_pings", s.state.SuccessfulAttempts)
}

// RecordActivity notes user interaction, switching a normal cadence to the
// active one
func (s *Scheduler) RecordActivity() {
	s.mu.Lock()
	gen := s.runGen
	s.mu.Unlock()
	s.dispatch(gen, Activity{At: s.clock.Now()})
}

// HealthCheck pings the full health endpoint now and folds the outcome into
// the failure counters. It works whether or not the scheduler is running.
func (s *Scheduler) HealthCheck(ctx context.Context) response.Result {
	s.mu.Lock()
	gen := s.runGen
	s.mu.Unlock()

	endpoint := s.cfg.HealthPath
	start := s.clock.Now()
	res := s.pinger.FetchOnce(ctx, http.MethodGet, endpoint)
	latency := s.clock.Since(start)

	s.observe(endpoint, res, latency)
	s.dispatch(gen, PingResult{
		At:       start,
		Endpoint: endpoint,
		Latency:  latency,
		Result:   res,
		Manual:   true,
	})
	return res
}

// dispatch runs Decide under the lock, arms timers, then publishes and
// pings outside it. Events from an earlier run are dropped.
func (s *Scheduler) dispatch(gen uint64, ev Event) {
	s.mu.Lock()
	if gen != s.runGen {
		s.mu.Unlock()
		return
	}
	if !s.running {
		// manual checks still update counters and notify while stopped,
		// but never arm timers
		pr, ok := ev.(PingResult)
		if !ok || !pr.Manual {
			s.mu.Unlock()
			return
		}
		var fx []Effect
		s.state, fx = Decide(s.cfg, s.state, ev)
		s.mu.Unlock()
		for _, f := range fx {
			if p, ok := f.(Publish); ok {
				s.hub.Publish(p.Event)
			}
		}
		return
	}

	prevMode := s.state.Mode
	var fx []Effect
	s.state, fx = Decide(s.cfg, s.state, ev)
	state := s.state

	var pings []Ping
	var publish []events.Event
	for _, f := range fx {
		switch e := f.(type) {
		case ScheduleInterval:
			s.armInterval(gen, e.Every)
		case PauseInterval:
			s.interval.stop()
		case ScheduleOneShot:
			s.armOneShot(gen, e.After)
		case ScheduleCooldown:
			s.armCooldown(gen, e.After)
		case Ping:
			pings = append(pings, e)
		case Publish:
			publish = append(publish, e.Event)
		}
	}
	ctx := s.ctx
	s.mu.Unlock()

	if state.Mode != prevMode {
		s.logger.Info("Heartbeat mode changed",
			"from", prevMode,
			"to", state.Mode,
			"failures", state.ConsecutiveFailures,
			"interval", s.cfg.Interval(state.Mode))
	}
	s.metrics.SetHeartbeatMode(string(state.Mode), state.ConsecutiveFailures, Modes...)

	for _, ev := range publish {
		s.hub.Publish(ev)
	}
	for _, p := range pings {
		go s.ping(ctx, gen, p.Endpoint)
	}
}

func (s *Scheduler) ping(ctx context.Context, gen uint64, endpoint string) {
	start := s.clock.Now()
	res := s.pinger.FetchOnce(ctx, http.MethodGet, endpoint)
	latency := s.clock.Since(start)

	if ctx.Err() != nil {
		return
	}

	s.observe(endpoint, res, latency)
	s.dispatch(gen, PingResult{
		At:       start,
		Endpoint: endpoint,
		Latency:  latency,
		Result:   res,
	})
}

func (s *Scheduler) observe(endpoint string, res response.Result, latency time.Duration) {
	switch res.Kind {
	case response.KindOk:
		s.logger.Debug("Heartbeat ping succeeded",
			"endpoint", endpoint,
			"latency", latency)
		s.metrics.ObservePing(endpoint, true, latency)
	case response.KindRateLimited:
		s.logger.Warn("Heartbeat ping rate limited",
			"endpoint", endpoint,
			"retry_after_ms", res.RetryAfterMs)
		s.metrics.ObserveRateLimitedPing(endpoint)
	default:
		s.logger.Warn("Heartbeat ping failed",
			"endpoint", endpoint,
			"status", res.StatusCode,
			"error", res.ErrorString())
		s.metrics.ObservePing(endpoint, false, latency)
	}
}

// Timer arming; callers hold s.mu.

func (s *Scheduler) armInterval(gen uint64, every time.Duration) {
	s.interval.stop()
	s.every = every
	tgen := s.interval.gen
	s.interval.t = s.clock.AfterFunc(every, func() { s.onInterval(gen, tgen) })
}

func (s *Scheduler) onInterval(gen, tgen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.runGen || tgen != s.interval.gen {
		s.mu.Unlock()
		return
	}
	s.interval.t = s.clock.AfterFunc(s.every, func() { s.onInterval(gen, tgen) })
	s.mu.Unlock()

	s.dispatch(gen, Tick{At: s.clock.Now()})
}

func (s *Scheduler) armOneShot(gen uint64, after time.Duration) {
	s.oneShot.stop()
	tgen := s.oneShot.gen
	s.oneShot.t = s.clock.AfterFunc(after, func() {
		if s.current(gen, &s.oneShot, tgen) {
			s.dispatch(gen, OneShotFired{At: s.clock.Now()})
		}
	})
}

func (s *Scheduler) armCooldown(gen uint64, after time.Duration) {
	s.cooldown.stop()
	tgen := s.cooldown.gen
	s.cooldown.t = s.clock.AfterFunc(after, func() {
		if s.current(gen, &s.cooldown, tgen) {
			s.dispatch(gen, CooldownElapsed{At: s.clock.Now()})
		}
	})
}

func (s *Scheduler) current(gen uint64, t *timer, tgen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && gen == s.runGen && tgen == t.gen
}
