// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/connectivity"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/httpclient"
	"github.com/stratastor/tether/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type phaseRecorder struct {
	mu     sync.Mutex
	phases []connectivity.Phase
}

func (p *phaseRecorder) record(s connectivity.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, s.Phase)
}

func (p *phaseRecorder) get() []connectivity.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]connectivity.Phase(nil), p.phases...)
}

func fastOptions() Options {
	return Options{
		MaxRetries:    3,
		RetryDelays:   []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		FallbackDelay: time.Millisecond,
		Timeout:       2 * time.Second,
	}
}

func setup(t *testing.T, baseURL string, opts Options) (*Requester, *connectivity.Machine, *phaseRecorder) {
	t.Helper()
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)

	cfg := httpclient.NewClientConfig()
	cfg.BaseURL = baseURL
	cfg.DisableKeepAlives = true

	machine := connectivity.New(3, l)
	rec := &phaseRecorder{}
	machine.Subscribe(rec.record)

	return New(httpclient.NewClient(cfg), machine, l, WithOptions(opts)), machine, rec
}

func closedServerURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestRateLimitIsNotATransportFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r, machine, rec := setup(t, srv.URL, fastOptions())

	resp, err := r.Execute(context.Background(), http.MethodGet, "/api/notifications")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	snap := machine.Snapshot()
	assert.Equal(t, connectivity.PhaseConnected, snap.Phase)
	assert.Equal(t, 0, snap.Attempt)
	assert.Equal(t, []connectivity.Phase{connectivity.PhaseConnected}, rec.get())
}

func TestRetriesExhaustedDisconnects(t *testing.T) {
	r, machine, rec := setup(t, closedServerURL(), fastOptions())

	resp, err := r.Execute(context.Background(), http.MethodGet, "/ping")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.IsCode(err, errors.TransportRetriesExhausted))
	assert.Contains(t, err.Error(), "dial")

	var te *errors.TetherError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "4", te.Metadata["attempts"])

	snap := machine.Snapshot()
	assert.Equal(t, connectivity.PhaseDisconnected, snap.Phase)
	assert.Greater(t, snap.Attempt, snap.MaxAttempts)
	assert.Equal(t, []connectivity.Phase{
		connectivity.PhaseConnected,
		connectivity.PhaseConnecting,
		connectivity.PhaseDisconnected,
	}, rec.get())
}

func TestRecoveryResetsAttemptAndNotifiesOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			panic(http.ErrAbortHandler)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	r, machine, rec := setup(t, srv.URL, fastOptions())

	res := r.Fetch(context.Background(), http.MethodGet, "/api/balance")
	require.True(t, res.IsOK())
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	snap := machine.Snapshot()
	assert.Equal(t, connectivity.PhaseConnected, snap.Phase)
	assert.Equal(t, 0, snap.Attempt)
	assert.Equal(t, []connectivity.Phase{
		connectivity.PhaseConnected,
		connectivity.PhaseConnecting,
		connectivity.PhaseConnected,
	}, rec.get())
}

func TestNotConnectedPhaseMarksConnectingOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, machine, rec := setup(t, srv.URL, fastOptions())
	machine.SetPhase(connectivity.PhaseDisconnected, "earlier outage")

	_, err := r.Execute(context.Background(), http.MethodGet, "/ping")
	require.NoError(t, err)
	assert.Equal(t, []connectivity.Phase{
		connectivity.PhaseConnected,
		connectivity.PhaseDisconnected,
		connectivity.PhaseConnecting,
		connectivity.PhaseConnected,
	}, rec.get())
}

func TestCancelDuringRetryWait(t *testing.T) {
	opts := fastOptions()
	opts.RetryDelays = []time.Duration{time.Hour}
	r, machine, _ := setup(t, closedServerURL(), opts)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Execute(ctx, http.MethodGet, "/ping")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.TransportCancelled))
	assert.NotEqual(t, connectivity.PhaseDisconnected, machine.Phase())
}

func TestFetchNormalizesApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Error"))
	}))
	defer srv.Close()

	r, machine, _ := setup(t, srv.URL, fastOptions())

	res := r.Fetch(context.Background(), http.MethodGet, "/api/trading/positions")
	assert.Equal(t, response.KindFailed, res.Kind)
	assert.Equal(t, 500, res.StatusCode)
	assert.Equal(t, "Internal Error", res.Error)
	assert.Equal(t, connectivity.PhaseConnected, machine.Phase())
}

func TestFetchExhaustedIsTransportFailure(t *testing.T) {
	r, _, _ := setup(t, closedServerURL(), fastOptions())

	res := r.Fetch(context.Background(), http.MethodGet, "/ping")
	assert.True(t, res.IsTransportFailure())
	assert.True(t, errors.IsCode(res.Cause, errors.TransportRetriesExhausted))
}

func TestFetchOnceLeavesPhaseOnFailure(t *testing.T) {
	r, machine, _ := setup(t, closedServerURL(), fastOptions())

	res := r.FetchOnce(context.Background(), http.MethodGet, "/ping")
	assert.True(t, res.IsTransportFailure())
	assert.Equal(t, connectivity.PhaseConnected, machine.Phase())
}

func TestRetryDelayTable(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, time.Second, o.delay(0))
	assert.Equal(t, 3*time.Second, o.delay(1))
	assert.Equal(t, 5*time.Second, o.delay(2))
	assert.Equal(t, 5*time.Second, o.delay(7))
}
