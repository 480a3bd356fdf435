// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelayBounds(t *testing.T) {
	p := Default()
	for attempt := 0; attempt < 12; attempt++ {
		ceiling := p.Ceiling(attempt)
		for i := 0; i < 200; i++ {
			d := p.NextDelay(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, ceiling, "attempt %d", attempt)
		}
	}
}

func TestCeilingNonDecreasing(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 80; attempt++ {
		c := Ceiling(attempt, DefaultBase, DefaultMax)
		assert.GreaterOrEqual(t, c, prev)
		assert.LessOrEqual(t, c, DefaultMax)
		prev = c
	}
	assert.Equal(t, DefaultMax, Ceiling(6, DefaultBase, DefaultMax))
	assert.Equal(t, 32*time.Second, Ceiling(5, DefaultBase, DefaultMax))
}

func TestNextDelayAttemptZero(t *testing.T) {
	p := New(time.Second, time.Minute, WithRand(func() float64 { return 0.999999 }))
	d := p.NextDelay(0)
	assert.Less(t, d, time.Second)
	assert.Greater(t, d, 990*time.Millisecond)
}

func TestNextDelayUpperEdgeClamped(t *testing.T) {
	p := New(time.Second, time.Minute, WithRand(func() float64 { return 1 }))
	assert.Equal(t, time.Second-1, p.NextDelay(0))
}

func TestNextDelayDeterministicJitter(t *testing.T) {
	p := New(time.Second, time.Minute, WithRand(func() float64 { return 0.5 }))
	assert.Equal(t, 500*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 30*time.Second, p.NextDelay(10))
}

func TestNewDefaults(t *testing.T) {
	p := New(0, -1)
	assert.Equal(t, DefaultBase, p.Base())
	assert.Equal(t, DefaultMax, p.Max())

	p = New(10*time.Second, time.Second)
	assert.Equal(t, 10*time.Second, p.Max())
}

func TestRetryHint(t *testing.T) {
	ms := func(v int64) *int64 { return &v }

	tests := []struct {
		name   string
		hint   *int64
		want   time.Duration
		wantOK bool
	}{
		{name: "missing", hint: nil},
		{name: "negative", hint: ms(-1)},
		{name: "zero", hint: ms(0), want: 0, wantOK: true},
		{name: "seconds", hint: ms(5000), want: 5 * time.Second, wantOK: true},
		{name: "large", hint: ms(9223372036000), want: 9223372036 * time.Second, wantOK: true},
		{name: "past duration range", hint: ms(math.MaxInt64), want: time.Duration(math.MaxInt64), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RetryHint(tt.hint)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDelayHintTakesPrecedence(t *testing.T) {
	p := New(time.Second, time.Minute, WithRand(func() float64 { return 0.5 }))
	hint := int64(5000)

	assert.Equal(t, 5*time.Second, p.Delay(&hint, 10))
	assert.Equal(t, 500*time.Millisecond, p.Delay(nil, 0))
}
