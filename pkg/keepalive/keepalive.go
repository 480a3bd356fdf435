// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package keepalive

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/response"
)

const DefaultReportInterval = 10 * time.Minute

// Stats are the backend's aggregate keep-alive counters
type Stats struct {
	Uptime        float64   `json:"uptime"`
	TotalRequests int64     `json:"totalRequests"`
	LastPing      time.Time `json:"lastPing"`
	StartedAt     time.Time `json:"startedAt"`
}

// UptimeDuration returns Uptime, reported in seconds, as a duration
func (s Stats) UptimeDuration() time.Duration {
	return time.Duration(s.Uptime * float64(time.Second))
}

type envelope struct {
	Success bool   `json:"success"`
	Data    *Stats `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// Fetcher issues one normalized request
type Fetcher interface {
	Fetch(ctx context.Context, method, path string) response.Result
}

// Client reads the keep-alive stats endpoint
type Client struct {
	fetcher Fetcher
	path    string
}

func NewClient(f Fetcher, path string) *Client {
	if path == "" {
		path = constants.EndpointKeepAliveStats
	}
	return &Client{fetcher: f, path: path}
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	res := c.fetcher.Fetch(ctx, http.MethodGet, c.path)
	if !res.IsOK() {
		err := errors.New(errors.HeartbeatStatsFailed, res.ErrorString()).
			WithMetadata("kind", res.Kind.String())
		if res.StatusCode > 0 {
			err.WithMetadata("status", fmt.Sprintf("%d", res.StatusCode))
		}
		return Stats{}, err
	}

	var env envelope
	if err := res.Decode(&env); err != nil {
		return Stats{}, errors.Wrap(err, errors.HeartbeatStatsFailed)
	}
	if !env.Success || env.Data == nil {
		msg := env.Message
		if env.Error != nil {
			msg = fmt.Sprintf("%v", env.Error)
		}
		return Stats{}, errors.New(errors.HeartbeatStatsFailed, msg)
	}
	return *env.Data, nil
}

// Reporter polls the stats endpoint on a gocron schedule and keeps the
// latest value
type Reporter struct {
	client    *Client
	interval  time.Duration
	logger    logger.Logger
	scheduler gocron.Scheduler

	mu      sync.RWMutex
	last    Stats
	lastAt  time.Time
	lastErr error
	running bool
	cancel  context.CancelFunc
}

// NewReporter creates a stopped reporter
func NewReporter(client *Client, interval time.Duration, l logger.Logger) (*Reporter, error) {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.HeartbeatReporterFailed).
			WithMetadata("operation", "create_scheduler")
	}
	return &Reporter{
		client:    client,
		interval:  interval,
		logger:    l,
		scheduler: scheduler,
	}, nil
}

// Start schedules the report job and runs it once immediately. Jobs run
// under a context derived from ctx that Stop cancels.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.Report(jobCtx) }),
		gocron.WithName("keepalive_stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		return errors.Wrap(err, errors.HeartbeatReporterFailed).
			WithMetadata("operation", "schedule_stats")
	}

	r.scheduler.Start()
	r.running = true
	r.cancel = cancel
	r.logger.Info("Keep-alive reporter started", "interval", r.interval)
	return nil
}

// Stop cancels any in-flight report and shuts the scheduler down. A stopped
// reporter cannot be restarted.
func (r *Reporter) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	// The running job records its result under r.mu, so Shutdown must not
	// be called with the lock held.
	cancel()
	if err := r.scheduler.Shutdown(); err != nil {
		return errors.Wrap(err, errors.HeartbeatReporterStopFailed).
			WithMetadata("operation", "shutdown")
	}
	return nil
}

// Report fetches and records the stats once
func (r *Reporter) Report(ctx context.Context) {
	stats, err := r.client.Stats(ctx)
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.last = stats
		r.lastAt = time.Now()
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("Keep-alive stats unavailable", "error", err)
		return
	}
	r.logger.Info("Keep-alive stats",
		"uptime", stats.UptimeDuration(),
		"total_requests", stats.TotalRequests,
		"last_ping", stats.LastPing)
}

// Last returns the most recent stats and when they were read
func (r *Reporter) Last() (Stats, time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.lastAt, r.lastErr
}
