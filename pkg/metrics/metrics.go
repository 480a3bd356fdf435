// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tether"

// Collector owns a private registry so every service instance, and every
// test, gets isolated series. All methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	connectionPhase  *prometheus.GaugeVec
	transitionsTotal *prometheus.CounterVec

	heartbeatPings    *prometheus.CounterVec
	heartbeatLatency  prometheus.Histogram
	heartbeatMode     *prometheus.GaugeVec
	heartbeatFailures prometheus.Gauge

	pollCycles *prometheus.CounterVec
	pollDelay  *prometheus.GaugeVec
}

// New registers all series on a fresh registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Requests issued by the retrying requester, by outcome",
		}, []string{"method", "path", "outcome"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Duration of single request attempts",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"path"}),

		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Transport retries scheduled after a failed attempt",
		}, []string{"path"}),

		connectionPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "phase",
			Help:      "1 for the current connectivity phase, 0 otherwise",
		}, []string{"phase"}),

		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "transitions_total",
			Help:      "Connectivity phase transitions",
		}, []string{"phase"}),

		heartbeatPings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "pings_total",
			Help:      "Heartbeat pings by endpoint and result",
		}, []string{"endpoint", "result"}),

		heartbeatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "latency_seconds",
			Help:      "Latency of successful heartbeat pings",
			Buckets:   prometheus.DefBuckets,
		}),

		heartbeatMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "mode",
			Help:      "1 for the current heartbeat mode, 0 otherwise",
		}, []string{"mode"}),

		heartbeatFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "consecutive_failures",
			Help:      "Current run of failed heartbeat pings",
		}),

		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Completed poll cycles by feed and result",
		}, []string{"feed", "result"}),

		pollDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "next_delay_seconds",
			Help:      "Delay chosen for the next poll cycle",
		}, []string{"feed"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requestsTotal,
		c.requestDuration,
		c.retriesTotal,
		c.connectionPhase,
		c.transitionsTotal,
		c.heartbeatPings,
		c.heartbeatLatency,
		c.heartbeatMode,
		c.heartbeatFailures,
		c.pollCycles,
		c.pollDelay,
	)

	return c
}

// Registry exposes the underlying registry for scraping and tests
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collector) ObserveRequest(method, path, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, path, outcome).Inc()
	c.requestDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (c *Collector) ObserveRetry(path string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(path).Inc()
}

// SetPhase marks current as the active phase among all
func (c *Collector) SetPhase(current string, all ...string) {
	if c == nil {
		return
	}
	setOneHot(c.connectionPhase, current, all)
	c.transitionsTotal.WithLabelValues(current).Inc()
}

func (c *Collector) ObservePing(endpoint string, ok bool, latency time.Duration) {
	if c == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
		c.heartbeatLatency.Observe(latency.Seconds())
	}
	c.heartbeatPings.WithLabelValues(endpoint, result).Inc()
}

func (c *Collector) ObserveRateLimitedPing(endpoint string) {
	if c == nil {
		return
	}
	c.heartbeatPings.WithLabelValues(endpoint, "rate_limited").Inc()
}

func (c *Collector) SetHeartbeatMode(current string, failures int, all ...string) {
	if c == nil {
		return
	}
	setOneHot(c.heartbeatMode, current, all)
	c.heartbeatFailures.Set(float64(failures))
}

func (c *Collector) ObservePoll(feed, result string, next time.Duration) {
	if c == nil {
		return
	}
	c.pollCycles.WithLabelValues(feed, result).Inc()
	c.pollDelay.WithLabelValues(feed).Set(next.Seconds())
}

func setOneHot(g *prometheus.GaugeVec, current string, all []string) {
	for _, v := range all {
		if v != current {
			g.WithLabelValues(v).Set(0)
		}
	}
	g.WithLabelValues(current).Set(1)
}
