// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/backoff"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/poller"
	"github.com/stratastor/tether/pkg/response"
)

// Fetcher issues one logical request and normalizes the outcome. The
// transport requester satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, method, path string) response.Result
}

// Envelope is the JSON wrapper every feed endpoint answers with
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func (e Envelope[T]) describe() string {
	switch {
	case e.Error != nil:
		return fmt.Sprintf("%v", e.Error)
	case e.Message != "":
		return e.Message
	default:
		return "success=false"
	}
}

// Spec names a feed endpoint and its healthy polling interval
type Spec struct {
	Name     string
	Enabled  bool
	Path     string
	Interval time.Duration
}

// Update is the state of a feed after a cycle. Stale is set when the
// latest cycle failed and Data comes from an earlier success or the cache.
type Update[T any] struct {
	Feed      string        `json:"feed"`
	Data      T             `json:"data"`
	HasData   bool          `json:"hasData"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Stale     bool          `json:"stale"`
	Error     string        `json:"error,omitempty"`
	Failures  int           `json:"failures"`
	NextDelay time.Duration `json:"nextDelay"`
}

// Feed decodes one endpoint into T on an adaptive schedule
type Feed[T any] struct {
	spec    Spec
	fetcher Fetcher
	cache   Cache[T]
	backoff backoff.Policy
	clock   clockwork.Clock
	logger  logger.Logger
	hub     *events.Hub[Update[T]]

	mu       sync.Mutex
	latest   Update[T]
	failures int
}

type Option[T any] func(*Feed[T])

func WithCache[T any](c Cache[T]) Option[T] {
	return func(f *Feed[T]) { f.cache = c }
}

func WithBackoff[T any](b backoff.Policy) Option[T] {
	return func(f *Feed[T]) { f.backoff = b }
}

func WithClock[T any](c clockwork.Clock) Option[T] {
	return func(f *Feed[T]) { f.clock = c }
}

// NewFeed creates a feed. An in-memory cache is used unless one is given.
func NewFeed[T any](spec Spec, fetcher Fetcher, l logger.Logger, opts ...Option[T]) *Feed[T] {
	f := &Feed[T]{
		spec:    spec,
		fetcher: fetcher,
		backoff: backoff.Default(),
		clock:   clockwork.NewRealClock(),
		logger:  l,
		hub:     events.NewHub[Update[T]]("feed."+spec.Name, l),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = NewMemoryCache[T]()
	}
	f.latest.Feed = spec.Name
	return f
}

func (f *Feed[T]) Name() string            { return f.spec.Name }
func (f *Feed[T]) Path() string            { return f.spec.Path }
func (f *Feed[T]) Interval() time.Duration { return f.spec.Interval }

// Subscribe registers fn for every completed cycle
func (f *Feed[T]) Subscribe(fn func(Update[T])) events.Unsubscribe {
	return f.hub.Subscribe(fn)
}

// Latest returns the most recent update, falling back to the cache when no
// cycle has produced data yet
func (f *Feed[T]) Latest() Update[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.latest
	if !u.HasData {
		if v, at, ok := f.cache.Get(); ok {
			u.Data, u.UpdatedAt, u.HasData, u.Stale = v, at, true, true
		}
	}
	return u
}

// Snapshot is the type-erased view of Latest
func (f *Feed[T]) Snapshot() Status {
	u := f.Latest()
	st := Status{
		Name:      f.spec.Name,
		Path:      f.spec.Path,
		Interval:  f.spec.Interval,
		HasData:   u.HasData,
		UpdatedAt: u.UpdatedAt,
		Stale:     u.Stale,
		Error:     u.Error,
		Failures:  u.Failures,
	}
	if u.HasData {
		st.Data = u.Data
	}
	return st
}

// FetchOnce runs one cycle. It returns the healthy interval on success, the
// server hint on rate limiting (poller.Immediately for a zero hint), and a
// jittered backoff otherwise. Failures
// also return a typed error for the poller's bookkeeping; the delay is
// always set.
func (f *Feed[T]) FetchOnce(ctx context.Context) (time.Duration, error) {
	res := f.fetcher.Fetch(ctx, http.MethodGet, f.spec.Path)
	if ctx.Err() != nil {
		return 0, errors.Wrap(ctx.Err(), errors.PollerCancelled).
			WithMetadata("feed", f.spec.Name)
	}

	switch res.Kind {
	case response.KindOk:
		var env Envelope[T]
		if err := res.Decode(&env); err != nil {
			return f.fail(errors.Wrap(err, errors.FeedDecodeFailed), nil)
		}
		if !env.Success {
			return f.fail(errors.New(errors.FeedUnsuccessful, env.describe()), nil)
		}
		if env.Data == nil {
			return f.fail(errors.New(errors.FeedNoData, f.spec.Path), nil)
		}
		return f.succeed(*env.Data), nil

	case response.KindRateLimited:
		return f.fail(errors.New(errors.FeedRateLimited, f.spec.Path), res.RetryAfterMs)

	default:
		err := errors.New(errors.FeedRequestFailed, res.ErrorString())
		if res.StatusCode > 0 {
			err.WithMetadata("status", fmt.Sprintf("%d", res.StatusCode))
		}
		return f.fail(err, nil)
	}
}

func (f *Feed[T]) succeed(v T) time.Duration {
	now := f.clock.Now()
	f.cache.Set(v, now)

	f.mu.Lock()
	f.failures = 0
	f.latest = Update[T]{
		Feed:      f.spec.Name,
		Data:      v,
		HasData:   true,
		UpdatedAt: now,
		NextDelay: f.spec.Interval,
	}
	u := f.latest
	f.mu.Unlock()

	f.hub.Publish(u)
	return f.spec.Interval
}

func (f *Feed[T]) fail(err *errors.TetherError, hintMs *int64) (time.Duration, error) {
	f.mu.Lock()
	delay := f.backoff.Delay(hintMs, f.failures)
	f.failures++

	u := f.latest
	if !u.HasData {
		if v, at, ok := f.cache.Get(); ok {
			u.Data, u.UpdatedAt, u.HasData = v, at, true
		}
	}
	u.Feed = f.spec.Name
	u.Stale = u.HasData
	u.Error = err.Error()
	u.Failures = f.failures
	u.NextDelay = delay
	f.latest = u
	f.mu.Unlock()

	err.WithMetadata("feed", f.spec.Name)
	f.logger.Warn("Feed cycle failed",
		"feed", f.spec.Name,
		"failures", u.Failures,
		"next_in", delay,
		"error", err)

	f.hub.Publish(u)
	if delay == 0 && hintMs != nil {
		return poller.Immediately, err
	}
	return delay, err
}
