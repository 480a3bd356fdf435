// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the gathered sample for name whose labels include all of
// the given pairs
func value(t *testing.T, c *Collector, name string, labels ...string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.ObserveRequest("GET", "/ping", "ok", time.Second)
		c.ObserveRetry("/ping")
		c.SetPhase("connected", "connected", "connecting")
		c.ObservePing("/ping", true, time.Millisecond)
		c.SetHeartbeatMode("normal", 0, "normal")
		c.ObservePoll("balance", "ok", time.Second)
	})
	assert.Nil(t, c.Registry())
}

func TestCollectorCounts(t *testing.T) {
	c := New()

	c.ObserveRequest("GET", "/api/balance", "ok", 20*time.Millisecond)
	c.ObserveRequest("GET", "/api/balance", "ok", 30*time.Millisecond)
	c.ObserveRetry("/api/balance")

	assert.Equal(t, 2.0, value(t, c, "tether_transport_requests_total", "path", "/api/balance", "outcome", "ok"))
	assert.Equal(t, 1.0, value(t, c, "tether_transport_retries_total", "path", "/api/balance"))
}

func TestOneHotGauges(t *testing.T) {
	c := New()
	phases := []string{"connected", "connecting", "disconnected"}

	c.SetPhase("connecting", phases...)
	c.SetPhase("disconnected", phases...)

	assert.Equal(t, 0.0, value(t, c, "tether_connectivity_phase", "phase", "connecting"))
	assert.Equal(t, 1.0, value(t, c, "tether_connectivity_phase", "phase", "disconnected"))
	assert.Equal(t, 1.0, value(t, c, "tether_connectivity_transitions_total", "phase", "connecting"))

	c.SetHeartbeatMode("emergency", 3, "normal", "active", "emergency")
	assert.Equal(t, 3.0, value(t, c, "tether_heartbeat_consecutive_failures"))
	assert.Equal(t, 1.0, value(t, c, "tether_heartbeat_mode", "mode", "emergency"))
}

func TestHandlerServesExposition(t *testing.T) {
	c := New()
	c.ObservePoll("balance", "ok", 30*time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tether_poller_next_delay_seconds")
}
