// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package tether

import (
	"time"

	"github.com/stratastor/tether/pkg/connectivity"
	"github.com/stratastor/tether/pkg/feeds"
	"github.com/stratastor/tether/pkg/heartbeat"
	"github.com/stratastor/tether/pkg/keepalive"
)

// Status aggregates every component for status surfaces
type Status struct {
	Running      bool                  `json:"running"`
	StartedAt    time.Time             `json:"startedAt"`
	Backend      string                `json:"backend"`
	Connectivity connectivity.Snapshot `json:"connectivity"`
	Heartbeat    HeartbeatStatus       `json:"heartbeat"`
	Feeds        []feeds.Status        `json:"feeds"`
	KeepAlive    *KeepAliveStatus      `json:"keepAlive,omitempty"`
}

type HeartbeatStatus struct {
	Enabled  bool            `json:"enabled"`
	Running  bool            `json:"running"`
	Endpoint string          `json:"endpoint"`
	Interval time.Duration   `json:"interval"`
	State    heartbeat.State `json:"state"`
}

type KeepAliveStatus struct {
	Stats  keepalive.Stats `json:"stats"`
	ReadAt time.Time       `json:"readAt"`
	Error  string          `json:"error,omitempty"`
}

// Status returns a point-in-time view of the service
func (s *Service) Status() Status {
	s.mu.Lock()
	running, startedAt, reporter := s.running, s.startedAt, s.reporter
	s.mu.Unlock()

	hbCfg := s.heartbeat.Config()
	hbState := s.heartbeat.State()

	st := Status{
		Running:      running,
		StartedAt:    startedAt,
		Backend:      s.cfg.Backend.BaseURL,
		Connectivity: s.machine.Snapshot(),
		Heartbeat: HeartbeatStatus{
			Enabled:  s.cfg.Heartbeat.Enabled,
			Running:  s.heartbeat.Running(),
			Endpoint: hbState.Endpoint(hbCfg),
			Interval: hbCfg.Interval(hbState.Mode),
			State:    hbState,
		},
		Feeds: s.feeds.Statuses(),
	}

	if reporter != nil {
		stats, at, err := reporter.Last()
		ka := &KeepAliveStatus{Stats: stats, ReadAt: at}
		if err != nil {
			ka.Error = err.Error()
		}
		st.KeepAlive = ka
	}
	return st
}
