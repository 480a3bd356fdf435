// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultBase = 1 * time.Second
	DefaultMax  = 60 * time.Second
)

// Policy computes full-jitter exponential delays. The zero value is not
// usable; construct with New.
type Policy struct {
	base  time.Duration
	max   time.Duration
	float func() float64
}

// Option configures a Policy
type Option func(*Policy)

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) Option {
	return func(p *Policy) {
		p.float = f
	}
}

// New creates a policy. Non-positive values fall back to the defaults.
func New(base, max time.Duration, opts ...Option) Policy {
	if base <= 0 {
		base = DefaultBase
	}
	if max <= 0 {
		max = DefaultMax
	}
	if max < base {
		max = base
	}
	p := Policy{base: base, max: max, float: rand.Float64}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Default returns a policy with a 1s base and a 60s cap
func Default() Policy {
	return New(DefaultBase, DefaultMax)
}

// Base returns the configured base delay
func (p Policy) Base() time.Duration { return p.base }

// Max returns the configured cap
func (p Policy) Max() time.Duration { return p.max }

// Ceiling returns min(base * 2^attempt, max), the upper bound of the jitter
// window for attempt.
func (p Policy) Ceiling(attempt int) time.Duration {
	return Ceiling(attempt, p.base, p.max)
}

// NextDelay returns a delay drawn uniformly from [0, Ceiling(attempt)).
func (p Policy) NextDelay(attempt int) time.Duration {
	ceiling := p.Ceiling(attempt)
	if ceiling <= 0 {
		return 0
	}
	d := time.Duration(p.float() * float64(ceiling))
	if d >= ceiling {
		d = ceiling - 1
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Delay applies the precedence rule shared by every caller: a valid
// server-supplied hint always wins over the computed jittered delay.
func (p Policy) Delay(hintMs *int64, attempt int) time.Duration {
	if hint, ok := RetryHint(hintMs); ok {
		return hint
	}
	return p.NextDelay(attempt)
}

// Ceiling computes min(base * 2^attempt, max). Negative attempts count as 0.
func Ceiling(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		return 0
	}
	exp := float64(base) * math.Pow(2, float64(attempt))
	if exp >= float64(max) || math.IsInf(exp, 1) {
		return max
	}
	return time.Duration(exp)
}

// NextDelay is the package-level form of Policy.NextDelay using the default
// jitter source.
func NextDelay(attempt int, base, max time.Duration) time.Duration {
	return New(base, max).NextDelay(attempt)
}

// maxHintMs is the largest millisecond count a time.Duration can hold
const maxHintMs = math.MaxInt64 / int64(time.Millisecond)

// RetryHint validates a server-supplied retry hint in milliseconds. Missing or
// negative hints are rejected; hints past the Duration range are clamped.
func RetryHint(ms *int64) (time.Duration, bool) {
	if ms == nil || *ms < 0 {
		return 0, false
	}
	if *ms > maxHintMs {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(*ms) * time.Millisecond, true
}
