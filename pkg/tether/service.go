// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package tether wires the connection-resilience components into a single
// service object. One Service is constructed at process start and handed to
// every consumer (status API, CLI).
package tether

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/config"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/connectivity"
	"github.com/stratastor/tether/pkg/feeds"
	"github.com/stratastor/tether/pkg/heartbeat"
	"github.com/stratastor/tether/pkg/httpclient"
	"github.com/stratastor/tether/pkg/keepalive"
	"github.com/stratastor/tether/pkg/metrics"
	"github.com/stratastor/tether/pkg/poller"
	"github.com/stratastor/tether/pkg/response"
	"github.com/stratastor/tether/pkg/transport"
)

// Service owns the connectivity machine, the retrying requester, the
// heartbeat scheduler, the feed pollers and the keep-alive reporter
type Service struct {
	cfg     *config.Config
	logger  logger.Logger
	clock   clockwork.Clock
	metrics *metrics.Collector

	machine   *connectivity.Machine
	requester *transport.Requester
	heartbeat *heartbeat.Scheduler
	feeds     *feeds.Registry
	stats     *keepalive.Client

	// hub fans connectivity and heartbeat events out to stream consumers
	hub    *events.Hub[events.Event]
	unsubs []events.Unsubscribe

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	reporter  *keepalive.Reporter
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// New validates cfg and builds a stopped service
func New(cfg *config.Config, l logger.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:    cfg,
		logger: l,
		clock:  clockwork.NewRealClock(),
		hub:    events.NewHub[events.Event]("service", l),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	reqOpts := cfg.RequesterOptions()
	policy := cfg.BackoffPolicy()

	s.machine = connectivity.New(reqOpts.MaxRetries, l, connectivity.WithClock(s.clock))

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = l
	s.requester = transport.New(httpclient.NewClient(clientCfg), s.machine, l,
		transport.WithOptions(reqOpts),
		transport.WithClock(s.clock),
		transport.WithMetrics(s.metrics))

	s.heartbeat = heartbeat.New(cfg.HeartbeatConfig(), s.requester, l,
		heartbeat.WithClock(s.clock),
		heartbeat.WithMetrics(s.metrics))

	s.feeds = feeds.NewRegistry(l,
		poller.WithClock(s.clock),
		poller.WithMetrics(s.metrics),
		poller.WithBackoff(policy))
	for _, src := range feeds.Catalog(cfg.FeedSpecs(), s.requester, policy, l) {
		s.feeds.Add(src)
	}

	s.stats = keepalive.NewClient(s.requester, cfg.KeepAlive.StatsPath)

	s.unsubs = append(s.unsubs,
		s.machine.Subscribe(func(snap connectivity.Snapshot) {
			s.metrics.SetPhase(string(snap.Phase), connectivity.Phases...)
			s.hub.Publish(events.New(events.TypeConnectivity, snap.ChangedAt, snap))
		}),
		s.heartbeat.Subscribe(s.hub.Publish),
	)

	return s, nil
}

// Start launches the heartbeat, the feed pollers and the keep-alive
// reporter. Starting a running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	if s.cfg.KeepAlive.Enabled {
		reporter, err := keepalive.NewReporter(s.stats, s.cfg.ReportInterval(), s.logger)
		if err != nil {
			cancel()
			return err
		}
		if err := reporter.Start(runCtx); err != nil {
			cancel()
			return err
		}
		s.reporter = reporter
	}

	if s.cfg.Heartbeat.Enabled {
		s.heartbeat.Start()
	}
	s.feeds.StartAll()

	s.cancel = cancel
	s.running = true
	s.startedAt = s.clock.Now()
	s.logger.Info("Tether service started",
		"backend", s.cfg.Backend.BaseURL,
		"heartbeat", s.cfg.Heartbeat.Enabled,
		"feeds", s.feeds.Names())
	return nil
}

// Stop halts every background component. Stopping a stopped service is a
// no-op; a stopped service may be started again.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.cancel()
	s.heartbeat.Stop()
	s.feeds.StopAll()

	var err error
	if s.reporter != nil {
		err = s.reporter.Stop()
		s.reporter = nil
	}
	s.running = false
	s.logger.Info("Tether service stopped")
	return err
}

// Close stops the service and detaches its internal subscriptions
func (s *Service) Close() error {
	err := s.Stop()
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	return err
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TestConnection probes the health endpoint through the retrying requester
// and returns the resulting connectivity snapshot
func (s *Service) TestConnection(ctx context.Context) connectivity.Snapshot {
	if s.machine.Phase() != connectivity.PhaseConnected {
		s.hub.Publish(events.New(events.TypeReconnecting, s.clock.Now(), heartbeat.Reconnecting{}))
	}
	return s.machine.TestConnection(ctx, s.requester)
}

// HealthCheck runs an immediate heartbeat against the health endpoint
func (s *Service) HealthCheck(ctx context.Context) response.Result {
	return s.heartbeat.HealthCheck(ctx)
}

// RecordActivity signals user interaction to the heartbeat
func (s *Service) RecordActivity() {
	s.heartbeat.RecordActivity()
}

// SubscribeConnectivity receives the current snapshot and every phase
// change. fn runs on the notifying goroutine while deliveries are
// serialized; it must not call TestConnection or anything else that changes
// the phase synchronously. Hand such work off to a goroutine.
func (s *Service) SubscribeConnectivity(fn func(connectivity.Snapshot)) events.Unsubscribe {
	return s.machine.Subscribe(fn)
}

func (s *Service) SubscribeHeartbeat(fn func(events.Event)) events.Unsubscribe {
	return s.heartbeat.Subscribe(fn)
}

// SubscribeEvents receives connectivity changes and heartbeat events in a
// single stream. Connectivity events are delivered while phase changes are
// serialized, so fn is under the same restriction as SubscribeConnectivity:
// no synchronous TestConnection, HealthCheck or Start.
func (s *Service) SubscribeEvents(fn func(events.Event)) events.Unsubscribe {
	return s.hub.Subscribe(fn)
}

// Feed returns the named feed's status including its cached data
func (s *Service) Feed(name string) (feeds.Status, error) {
	return s.feeds.Status(name)
}

// RefreshFeed polls the named feed immediately
func (s *Service) RefreshFeed(name string) error {
	return s.feeds.Refresh(name)
}

// KeepAliveStats reads the backend's keep-alive counters now
func (s *Service) KeepAliveStats(ctx context.Context) (keepalive.Stats, error) {
	return s.stats.Stats(ctx)
}

func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

func (s *Service) Config() *config.Config {
	return s.cfg
}
