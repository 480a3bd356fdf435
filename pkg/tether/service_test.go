// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package tether

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/config"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/connectivity"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/feeds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	*httptest.Server
	pings  atomic.Int32
	health atomic.Int32

	slowStats    atomic.Bool
	statsEntered chan struct{}
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{statsEntered: make(chan struct{}, 1)}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		b.pings.Add(1)
		w.Write([]byte("pong"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		b.health.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/keep-alive/stats", func(w http.ResponseWriter, r *http.Request) {
		if b.slowStats.Load() {
			select {
			case b.statsEntered <- struct{}{}:
			default:
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(3 * time.Second):
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"uptime":42.5,"totalRequests":7}}`))
	})
	mux.HandleFunc("/api/balance", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"currency":"USD","total":100,"available":80,"locked":20}}`))
	})
	list := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[]}`))
	}
	mux.HandleFunc("/api/notifications", list)
	mux.HandleFunc("/api/trading/positions", list)
	mux.HandleFunc("/api/market/prices", list)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Backend.BaseURL = baseURL
	cfg.Requester.MaxRetries = 1
	cfg.Requester.RetryDelays = []string{"1ms"}
	cfg.Requester.FallbackDelay = "1ms"
	cfg.Requester.Timeout = "2s"
	return cfg
}

func newService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	s, err := New(cfg, l)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.Heartbeat.FailureThreshold = 0

	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	_, err = New(cfg, l)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ConfigValidationFailed))
}

func TestServiceStartStop(t *testing.T) {
	b := newBackend(t)
	s := newService(t, testConfig(t, b.URL))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return b.pings.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		st, err := s.Feed(feeds.FeedBalance)
		return err == nil && st.HasData
	}, 2*time.Second, 10*time.Millisecond)

	st, err := s.Feed(feeds.FeedBalance)
	require.NoError(t, err)
	bal, ok := st.Data.(feeds.Balance)
	require.True(t, ok)
	assert.Equal(t, "USD", bal.Currency)

	require.Eventually(t, func() bool {
		ks := s.Status().KeepAlive
		return ks != nil && ks.Stats.TotalRequests == 7
	}, 2*time.Second, 10*time.Millisecond)

	status := s.Status()
	assert.True(t, status.Running)
	assert.True(t, status.Heartbeat.Running)
	assert.Equal(t, "/ping", status.Heartbeat.Endpoint)
	assert.Equal(t, connectivity.PhaseConnected, status.Connectivity.Phase)
	assert.Len(t, status.Feeds, 4)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	assert.False(t, s.Status().Heartbeat.Running)
	assert.Nil(t, s.Status().KeepAlive)

	// restart builds a fresh reporter
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
}

func TestServiceUnknownFeed(t *testing.T) {
	s := newService(t, testConfig(t, "http://localhost"))

	_, err := s.Feed("orders")
	assert.True(t, errors.IsCode(err, errors.FeedNotFound))
	assert.True(t, errors.IsCode(s.RefreshFeed("orders"), errors.FeedNotFound))
}

func TestServiceTestConnection(t *testing.T) {
	b := newBackend(t)
	s := newService(t, testConfig(t, b.URL))

	snap := s.TestConnection(context.Background())
	assert.True(t, snap.IsConnected)
	assert.Equal(t, int32(1), b.health.Load())
}

func TestServiceTestConnectionOffline(t *testing.T) {
	b := newBackend(t)
	url := b.URL
	b.Close()

	s := newService(t, testConfig(t, url))

	var mu sync.Mutex
	var types []events.Type
	s.SubscribeEvents(func(ev events.Event) {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
	})

	snap := s.TestConnection(context.Background())
	assert.Equal(t, connectivity.PhaseDisconnected, snap.Phase)

	snap = s.TestConnection(context.Background())
	assert.Equal(t, connectivity.PhaseDisconnected, snap.Phase)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, types, events.TypeConnectivity)
	assert.Contains(t, types, events.TypeReconnecting)
}

func TestServiceHealthCheckPublishes(t *testing.T) {
	b := newBackend(t)
	s := newService(t, testConfig(t, b.URL))

	got := make(chan events.Event, 4)
	s.SubscribeHeartbeat(func(ev events.Event) { got <- ev })

	res := s.HealthCheck(context.Background())
	require.True(t, res.IsOK())

	select {
	case ev := <-got:
		assert.Equal(t, events.TypePingSuccess, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat event")
	}
	assert.Equal(t, 1, s.Status().Heartbeat.State.SuccessfulAttempts)
}

func TestServiceMetricsTrackPhase(t *testing.T) {
	s := newService(t, testConfig(t, "http://localhost"))

	families, err := s.Metrics().Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "tether_connectivity_phase" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == string(connectivity.PhaseConnected) {
					found = m.GetGauge().GetValue() == 1
				}
			}
		}
	}
	assert.True(t, found)
}

func TestServiceStopDuringKeepAliveReport(t *testing.T) {
	b := newBackend(t)
	b.slowStats.Store(true)
	s := newService(t, testConfig(t, b.URL))

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-b.statsEntered:
	case <-time.After(5 * time.Second):
		t.Fatal("keep-alive report never started")
	}

	started := time.Now()
	require.NoError(t, s.Stop())
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.False(t, s.Running())
}

func TestServiceSubscriberRetestsFromGoroutine(t *testing.T) {
	b := newBackend(t)
	url := b.URL
	b.Close()

	s := newService(t, testConfig(t, url))

	var once sync.Once
	retested := make(chan connectivity.Snapshot, 1)
	s.SubscribeConnectivity(func(snap connectivity.Snapshot) {
		if snap.Phase != connectivity.PhaseDisconnected {
			return
		}
		once.Do(func() {
			go func() { retested <- s.TestConnection(context.Background()) }()
		})
	})

	s.TestConnection(context.Background())

	select {
	case snap := <-retested:
		assert.Equal(t, connectivity.PhaseDisconnected, snap.Phase)
	case <-time.After(5 * time.Second):
		t.Fatal("retest from subscriber did not complete")
	}
}
