// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package heartbeat

import (
	"time"

	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/backoff"
	"github.com/stratastor/tether/pkg/response"
)

// Mode is the cadence the scheduler is running at
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeActive    Mode = "active"
	ModeEmergency Mode = "emergency"
)

var Modes = []string{string(ModeNormal), string(ModeActive), string(ModeEmergency)}

// Config holds cadence and escalation settings
type Config struct {
	NormalInterval    time.Duration
	ActiveInterval    time.Duration
	ActiveWindow      time.Duration
	EmergencyInterval time.Duration
	Cooldown          time.Duration
	FailureThreshold  int
	PingPath          string
	HealthPath        string

	// Backoff computes the one-shot delay when a rate-limited ping carries
	// no hint
	Backoff backoff.Policy
}

func DefaultConfig() Config {
	return Config{
		NormalInterval:    5 * time.Minute,
		ActiveInterval:    3 * time.Minute,
		ActiveWindow:      15 * time.Minute,
		EmergencyInterval: 2 * time.Minute,
		Cooldown:          20 * time.Minute,
		FailureThreshold:  3,
		PingPath:          constants.EndpointPing,
		HealthPath:        constants.EndpointHealth,
		Backoff:           backoff.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NormalInterval <= 0 {
		c.NormalInterval = d.NormalInterval
	}
	if c.ActiveInterval <= 0 {
		c.ActiveInterval = d.ActiveInterval
	}
	if c.ActiveWindow <= 0 {
		c.ActiveWindow = d.ActiveWindow
	}
	if c.EmergencyInterval <= 0 {
		c.EmergencyInterval = d.EmergencyInterval
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.PingPath == "" {
		c.PingPath = d.PingPath
	}
	if c.HealthPath == "" {
		c.HealthPath = d.HealthPath
	}
	if c.Backoff.Max() == 0 {
		c.Backoff = d.Backoff
	}
	return c
}

// Interval returns the cadence for mode
func (c Config) Interval(m Mode) time.Duration {
	switch m {
	case ModeActive:
		return c.ActiveInterval
	case ModeEmergency:
		return c.EmergencyInterval
	default:
		return c.NormalInterval
	}
}

// State is the heartbeat bookkeeping. Zero times mean "never".
type State struct {
	Mode                Mode          `json:"mode"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	TotalAttempts       int           `json:"totalAttempts"`
	SuccessfulAttempts  int           `json:"successfulAttempts"`
	LastAttemptAt       time.Time     `json:"lastAttemptAt"`
	LastSuccessAt       time.Time     `json:"lastSuccessAt"`
	LastActivityAt      time.Time     `json:"lastActivityAt"`
	LastLatency         time.Duration `json:"lastLatency"`
	EmergencySince      time.Time     `json:"emergencySince"`

	// RateLimited is set while the interval is paused awaiting a one-shot
	RateLimited      bool `json:"rateLimited"`
	RateLimitAttempt int  `json:"rateLimitAttempt"`
	InFlight         bool `json:"inFlight"`
}

// Endpoint picks the cheap ping while healthy and the full health check
// once any failure has been seen
func (s State) Endpoint(cfg Config) string {
	if s.ConsecutiveFailures > 0 {
		return cfg.HealthPath
	}
	return cfg.PingPath
}

// Event is an input to Decide
type Event interface{ event() }

type Started struct{ At time.Time }

type Activity struct{ At time.Time }

type Tick struct{ At time.Time }

type OneShotFired struct{ At time.Time }

type CooldownElapsed struct{ At time.Time }

// PingResult reports a completed ping. At is when it was issued. Manual
// results come from on-demand checks and never touch scheduling.
type PingResult struct {
	At       time.Time
	Endpoint string
	Latency  time.Duration
	Result   response.Result
	Manual   bool
}

func (Started) event()         {}
func (Activity) event()        {}
func (Tick) event()            {}
func (OneShotFired) event()    {}
func (CooldownElapsed) event() {}
func (PingResult) event()      {}

// Effect is an instruction for the timer adapter
type Effect interface{ effect() }

// ScheduleInterval replaces the repeating timer
type ScheduleInterval struct{ Every time.Duration }

// PauseInterval stops the repeating timer until the next ScheduleInterval
type PauseInterval struct{}

type ScheduleOneShot struct{ After time.Duration }

// ScheduleCooldown arms, or re-arms, the emergency decay timer
type ScheduleCooldown struct{ After time.Duration }

type Ping struct{ Endpoint string }

type Publish struct{ Event events.Event }

func (ScheduleInterval) effect() {}
func (PauseInterval) effect()    {}
func (ScheduleOneShot) effect()  {}
func (ScheduleCooldown) effect() {}
func (Ping) effect()             {}
func (Publish) effect()          {}

// PingSuccess is the payload of a backend-ping-success event
type PingSuccess struct {
	ResponseTime int64  `json:"responseTime"`
	Data         any    `json:"data"`
	TotalPings   int    `json:"totalPings"`
	Endpoint     string `json:"endpoint"`
}

// PingFailure is the payload of a backend-ping-failed event
type PingFailure struct {
	Error        string `json:"error"`
	Failures     int    `json:"failures"`
	Endpoint     string `json:"endpoint"`
	RateLimited  bool   `json:"rateLimited,omitempty"`
	RetryAfterMs *int64 `json:"retryAfterMs,omitempty"`
}

// Reconnecting is the empty payload of a connection-status-reconnecting
// event
type Reconnecting struct{}

func at(ev Event) time.Time {
	switch e := ev.(type) {
	case Started:
		return e.At
	case Activity:
		return e.At
	case Tick:
		return e.At
	case OneShotFired:
		return e.At
	case CooldownElapsed:
		return e.At
	case PingResult:
		return e.At
	}
	return time.Time{}
}

// Decide applies ev to s and returns the new state with the effects the
// adapter must carry out. It performs no I/O.
func Decide(cfg Config, s State, ev Event) (State, []Effect) {
	var fx []Effect

	ping := func() {
		if s.InFlight {
			return
		}
		s.InFlight = true
		if s.ConsecutiveFailures > 0 {
			fx = append(fx, Publish{Event: events.New(events.TypeReconnecting, at(ev), Reconnecting{})})
		}
		fx = append(fx, Ping{Endpoint: s.Endpoint(cfg)})
	}

	switch e := ev.(type) {
	case Started:
		s.Mode = ModeNormal
		s.InFlight = false
		s.RateLimited = false
		s.RateLimitAttempt = 0
		fx = append(fx, ScheduleInterval{Every: cfg.NormalInterval})
		ping()

	case Activity:
		s.LastActivityAt = e.At
		if s.Mode == ModeNormal {
			s.Mode = ModeActive
			if !s.RateLimited {
				fx = append(fx, ScheduleInterval{Every: cfg.ActiveInterval})
			}
		}

	case Tick:
		if s.Mode == ModeActive && e.At.Sub(s.LastActivityAt) > cfg.ActiveWindow {
			s.Mode = ModeNormal
			fx = append(fx, ScheduleInterval{Every: cfg.NormalInterval})
		}
		ping()

	case OneShotFired:
		if s.RateLimited {
			ping()
		}

	case CooldownElapsed:
		if s.Mode == ModeEmergency {
			s.Mode = ModeNormal
			s.EmergencySince = time.Time{}
			if !s.RateLimited {
				fx = append(fx, ScheduleInterval{Every: cfg.NormalInterval})
			}
		}

	case PingResult:
		s, fx = decidePing(cfg, s, e, fx)
	}

	return s, fx
}

func decidePing(cfg Config, s State, e PingResult, fx []Effect) (State, []Effect) {
	s.TotalAttempts++
	s.LastAttemptAt = e.At
	if !e.Manual {
		s.InFlight = false
	}
	done := e.At.Add(e.Latency)

	switch e.Result.Kind {
	case response.KindOk:
		s.ConsecutiveFailures = 0
		s.SuccessfulAttempts++
		s.LastSuccessAt = done
		s.LastLatency = e.Latency
		fx = append(fx, Publish{Event: events.New(events.TypePingSuccess, done, PingSuccess{
			ResponseTime: e.Latency.Milliseconds(),
			Data:         e.Result.Body,
			TotalPings:   s.TotalAttempts,
			Endpoint:     e.Endpoint,
		})})
		if !e.Manual {
			fx = resume(cfg, &s, fx)
		}

	case response.KindRateLimited:
		fx = append(fx, Publish{Event: events.New(events.TypePingFailed, done, PingFailure{
			Error:        "rate limited",
			Failures:     s.ConsecutiveFailures,
			Endpoint:     e.Endpoint,
			RateLimited:  true,
			RetryAfterMs: e.Result.RetryAfterMs,
		})})
		if e.Manual {
			break
		}
		delay := cfg.Backoff.Delay(e.Result.RetryAfterMs, s.RateLimitAttempt)
		s.RateLimitAttempt++
		if !s.RateLimited {
			fx = append(fx, PauseInterval{})
		}
		s.RateLimited = true
		fx = append(fx, ScheduleOneShot{After: delay})

	default:
		s.ConsecutiveFailures++
		fx = append(fx, Publish{Event: events.New(events.TypePingFailed, done, PingFailure{
			Error:    e.Result.ErrorString(),
			Failures: s.ConsecutiveFailures,
			Endpoint: e.Endpoint,
		})})

		escalated := false
		if s.ConsecutiveFailures >= cfg.FailureThreshold {
			if s.Mode != ModeEmergency {
				s.Mode = ModeEmergency
				s.EmergencySince = done
				escalated = true
			}
			fx = append(fx, ScheduleCooldown{After: cfg.Cooldown})
		}

		reschedule := escalated && !s.RateLimited
		if !e.Manual && s.RateLimited {
			s.RateLimited = false
			s.RateLimitAttempt = 0
			reschedule = true
		}
		if reschedule {
			fx = append(fx, ScheduleInterval{Every: cfg.Interval(s.Mode)})
		}
	}

	return s, fx
}

// resume clears a rate-limit pause and restarts the interval for the
// current mode
func resume(cfg Config, s *State, fx []Effect) []Effect {
	if s.RateLimited {
		s.RateLimited = false
		s.RateLimitAttempt = 0
		return append(fx, ScheduleInterval{Every: cfg.Interval(s.Mode)})
	}
	return fx
}
