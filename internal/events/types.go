// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"time"

	"github.com/stratastor/tether/internal/common"
)

// Type names an event published to UI surfaces
type Type string

const (
	TypePingSuccess  Type = "backend-ping-success"
	TypePingFailed   Type = "backend-ping-failed"
	TypeReconnecting Type = "connection-status-reconnecting"
	TypeConnectivity Type = "connection-status-changed"
)

// Event is the envelope handed to subscribers and streamed by the status API
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh ID
func New(t Type, at time.Time, payload any) Event {
	return Event{
		ID:        common.UUID7(),
		Type:      t,
		Timestamp: at,
		Payload:   payload,
	}
}
