// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/connectivity"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/httpclient"
	"github.com/stratastor/tether/pkg/metrics"
	"github.com/stratastor/tether/pkg/response"
)

// Options controls the retry schedule. RetryDelays is a fixed table indexed
// by the failed attempt; FallbackDelay applies once the table runs out.
type Options struct {
	MaxRetries    int
	RetryDelays   []time.Duration
	FallbackDelay time.Duration
	Timeout       time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:    3,
		RetryDelays:   []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
		FallbackDelay: 5 * time.Second,
		Timeout:       30 * time.Second,
	}
}

func (o Options) delay(attempt int) time.Duration {
	if attempt >= 0 && attempt < len(o.RetryDelays) {
		return o.RetryDelays[attempt]
	}
	return o.FallbackDelay
}

// Requester issues one logical request with bounded transport retries and
// reports connectivity transitions as a side effect. Any response, whatever
// its status, ends the sequence.
type Requester struct {
	client  *httpclient.Client
	machine *connectivity.Machine
	opts    Options
	clock   clockwork.Clock
	logger  logger.Logger
	metrics *metrics.Collector
}

type Option func(*Requester)

func WithClock(c clockwork.Clock) Option {
	return func(r *Requester) { r.clock = c }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(r *Requester) { r.metrics = m }
}

func WithOptions(o Options) Option {
	return func(r *Requester) { r.opts = o }
}

// New creates a requester bound to the shared connectivity machine
func New(client *httpclient.Client, machine *connectivity.Machine, l logger.Logger, opts ...Option) *Requester {
	r := &Requester{
		client:  client,
		machine: machine,
		opts:    DefaultOptions(),
		clock:   clockwork.NewRealClock(),
		logger:  l,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opts.MaxRetries < 0 {
		r.opts.MaxRetries = 0
	}
	if r.opts.Timeout <= 0 {
		r.opts.Timeout = DefaultOptions().Timeout
	}
	if r.opts.FallbackDelay <= 0 {
		r.opts.FallbackDelay = DefaultOptions().FallbackDelay
	}
	return r
}

func (r *Requester) Options() Options {
	return r.opts
}

// Execute runs the retry sequence for a GET-style request with no body
func (r *Requester) Execute(ctx context.Context, method, path string) (*resty.Response, error) {
	return r.Do(ctx, method, httpclient.RequestConfig{Path: path})
}

// Do runs the retry sequence for cfg. The raw response is returned
// untouched; status interpretation belongs to the caller.
func (r *Requester) Do(ctx context.Context, method string, cfg httpclient.RequestConfig) (*resty.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 || r.machine.Phase() != connectivity.PhaseConnected {
			r.machine.Transition(connectivity.PhaseConnecting, attempt,
				fmt.Sprintf("%s %s attempt %d", method, cfg.Path, attempt+1))
		}

		resp, err := r.attempt(ctx, method, cfg)
		if err == nil {
			r.machine.Transition(connectivity.PhaseConnected, 0, "response received")
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.TransportCancelled).
				WithMetadata("path", cfg.Path)
		}

		if attempt == r.opts.MaxRetries {
			break
		}

		wait := r.opts.delay(attempt)
		r.logger.Warn("Request failed, retrying",
			"method", method,
			"path", cfg.Path,
			"attempt", attempt+1,
			"retry_in", wait,
			"error", err)
		r.metrics.ObserveRetry(cfg.Path)

		select {
		case <-r.clock.After(wait):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.TransportCancelled).
				WithMetadata("path", cfg.Path)
		}
	}

	attempts := r.opts.MaxRetries + 1
	r.machine.Transition(connectivity.PhaseDisconnected, attempts,
		fmt.Sprintf("%s %s failed after %d attempts", method, cfg.Path, attempts))
	r.logger.Error("Request retries exhausted",
		"method", method,
		"path", cfg.Path,
		"attempts", attempts,
		"error", lastErr)

	return nil, errors.Wrap(lastErr, errors.TransportRetriesExhausted).
		WithMetadata("path", cfg.Path).
		WithMetadata("attempts", strconv.Itoa(attempts))
}

// Fetch runs the retry sequence and normalizes the outcome. Exhausted
// retries surface as a transport failure result.
func (r *Requester) Fetch(ctx context.Context, method, path string) response.Result {
	resp, err := r.Execute(ctx, method, path)
	if err != nil {
		return response.TransportFailure(err)
	}
	return response.NormalizeAt(resp, r.clock.Now())
}

// FetchOnce issues a single attempt. A response marks the link connected;
// a failure leaves the phase alone and is reported as a transport failure.
func (r *Requester) FetchOnce(ctx context.Context, method, path string) response.Result {
	resp, err := r.attempt(ctx, method, httpclient.RequestConfig{Path: path})
	if err != nil {
		return response.TransportFailure(err)
	}
	r.machine.Transition(connectivity.PhaseConnected, 0, "response received")
	return response.NormalizeAt(resp, r.clock.Now())
}

func (r *Requester) attempt(ctx context.Context, method string, cfg httpclient.RequestConfig) (*resty.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	cfg.Context = reqCtx
	start := r.clock.Now()
	resp, err := r.client.NewRequest(cfg).Execute(method)
	elapsed := r.clock.Since(start)

	if err != nil {
		outcome := "error"
		if reqCtx.Err() == context.DeadlineExceeded {
			outcome = "timeout"
			err = errors.Wrap(err, errors.TransportTimeout).
				WithMetadata("timeout", r.opts.Timeout.String())
		}
		r.metrics.ObserveRequest(method, cfg.Path, outcome, elapsed)
		return nil, err
	}

	r.metrics.ObserveRequest(method, cfg.Path, outcomeFor(resp.StatusCode()), elapsed)
	return resp, nil
}

func outcomeFor(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 200 && status < 300:
		return "ok"
	default:
		return "failed"
	}
}
