// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/backoff"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/metrics"
)

// FetchFunc performs one cycle and returns the delay before the next one.
// A zero or negative delay means "use the default". A non-nil error marks the
// cycle as failed; its delay is still honoured when positive, otherwise the
// poller backs off on its own. Return Immediately to re-poll without delay.
type FetchFunc func(ctx context.Context) (time.Duration, error)

// Immediately asks the poller to run the next cycle right away, overriding
// both the default delay and its own backoff.
const Immediately time.Duration = math.MinInt64

// PollSchedule is the per-poller bookkeeping
type PollSchedule struct {
	NextDelay time.Duration `json:"nextDelay"`
	Attempt   int           `json:"attempt"`
	Cancelled bool          `json:"cancelled"`
	Cycles    int           `json:"cycles"`
	LastRunAt time.Time     `json:"lastRunAt"`
	LastError string        `json:"lastError,omitempty"`
}

// Poller runs fetch, then reschedules itself with the delay fetch returned.
// Each poller owns its own failure count and timer.
type Poller struct {
	name         string
	fetch        FetchFunc
	defaultDelay time.Duration
	clock        clockwork.Clock
	logger       logger.Logger
	metrics      *metrics.Collector
	backoff      backoff.Policy

	mu       sync.Mutex
	schedule PollSchedule
	running  bool
	gen      uint64
	timer    clockwork.Timer
	ctx      context.Context
	cancel   context.CancelFunc
}

type Option func(*Poller)

func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(p *Poller) { p.metrics = m }
}

func WithBackoff(b backoff.Policy) Option {
	return func(p *Poller) { p.backoff = b }
}

// New creates a stopped poller
func New(name string, fetch FetchFunc, defaultDelay time.Duration, l logger.Logger, opts ...Option) *Poller {
	p := &Poller{
		name:         name,
		fetch:        fetch,
		defaultDelay: defaultDelay,
		clock:        clockwork.NewRealClock(),
		logger:       l,
		backoff:      backoff.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.defaultDelay <= 0 {
		p.defaultDelay = p.backoff.Max()
	}
	return p
}

func (p *Poller) Name() string {
	return p.name
}

// Schedule returns a copy of the current bookkeeping
func (p *Poller) Schedule() PollSchedule {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schedule
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start runs the first cycle immediately. It is a no-op if already running.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.gen++
	p.schedule.Cancelled = false
	p.ctx, p.cancel = context.WithCancel(context.Background())
	gen, ctx := p.gen, p.ctx
	p.mu.Unlock()

	p.logger.Debug("Poller started", "poller", p.name, "default_delay", p.defaultDelay)
	go p.run(ctx, gen)
}

// Stop clears the pending timer and cancels any in-flight cycle, whose
// result is then discarded. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.gen++
	p.schedule.Cancelled = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.cancel()

	p.logger.Debug("Poller stopped", "poller", p.name)
}

// Refresh replaces the pending timer with an immediate cycle
func (p *Poller) Refresh() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	gen, ctx := p.gen, p.ctx
	p.mu.Unlock()

	go p.run(ctx, gen)
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && gen == p.gen
}

func (p *Poller) run(ctx context.Context, gen uint64) {
	if !p.current(gen) {
		return
	}
	started := p.clock.Now()
	delay, err := p.safeFetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || gen != p.gen {
		return
	}

	immediate := delay == Immediately
	if immediate {
		delay = 0
	}

	result := "ok"
	p.schedule.Cycles++
	p.schedule.LastRunAt = started
	if err != nil {
		result = "failed"
		p.schedule.LastError = err.Error()
		if delay <= 0 && !immediate {
			delay = p.backoff.NextDelay(p.schedule.Attempt)
		}
		p.schedule.Attempt++
		p.logger.Warn("Poll cycle failed",
			"poller", p.name,
			"attempt", p.schedule.Attempt,
			"next_in", delay,
			"error", err)
	} else {
		p.schedule.Attempt = 0
		p.schedule.LastError = ""
		if delay <= 0 && !immediate {
			delay = p.defaultDelay
		}
	}
	p.schedule.NextDelay = delay
	p.metrics.ObservePoll(p.name, result, delay)

	p.timer = p.clock.AfterFunc(delay, func() { p.run(ctx, gen) })
}

func (p *Poller) safeFetch(ctx context.Context) (delay time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			delay = 0
			err = errors.New(errors.PollerFetchPanicked, fmt.Sprintf("%v", r)).
				WithMetadata("poller", p.name)
		}
	}()
	return p.fetch(ctx)
}
