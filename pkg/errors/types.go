// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

const (
	DomainConfig    Domain = "CONFIG"
	DomainServer    Domain = "SERVER"
	DomainTransport Domain = "TRANSPORT"
	DomainHeartbeat Domain = "HEARTBEAT"
	DomainPoller    Domain = "POLLER"
	DomainFeed      Domain = "FEED"
	DomainLifecycle Domain = "LIFECYCLE"
	DomainMisc      Domain = "MISC"
)

// ErrorCode represents unique error identifiers
type ErrorCode int

// Domain represents the subsystem where the error originated
type Domain string

type TetherError struct {
	Code       ErrorCode `json:"code"`
	Domain     Domain    `json:"domain"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`

	// Metadata carries request-specific context (path, attempt counts, status
	// codes) for structured logs and API responses.
	Metadata map[string]string `json:"metadata,omitempty"`

	cause error
}

// Error code ranges:
// 1000-1099: Configuration errors
// 1100-1199: Server errors
// 1200-1299: Transport errors
// 1300-1399: Heartbeat errors
// 1400-1499: Poller errors
// 1500-1599: Feed errors
// 1600-1699: Lifecycle errors
// 1900-1999: Misc
const (
	// Configuration Errors (1000-1099)
	ConfigNotFound         = 1000 + iota // Config file not found
	ConfigInvalid                        // Invalid config format
	ConfigLoadFailed                     // Failed to load config
	ConfigWriteFailed                    // Failed to write config
	ConfigValidationFailed               // Config validation failed
	ConfigMarshalFailed                  // Config serialization failed
	ConfigUnmarshalFailed                // Config deserialization failed
	ConfigHomeDirectoryError             // Error getting home directory
)

const (
	// Server Errors (1100-1199)
	ServerStart             = 1100 + iota // Failed to start server
	ServerShutdown                        // Error during shutdown
	ServerRequestValidation               // Request validation failed
	ServerNotFound                        // Resource not found
	ServerInternalError
)

const (
	// Transport Errors (1200-1299)
	TransportRequestFailed    = 1200 + iota // Request could not be issued
	TransportTimeout                        // Request aborted after timeout
	TransportRetriesExhausted               // All retry attempts failed
	TransportCancelled                      // Caller cancelled the request
)

const (
	// Heartbeat Errors (1300-1399)
	HeartbeatPingFailed     = 1300 + iota // Liveness ping failed
	HeartbeatRateLimited                  // Liveness ping rate limited
	HeartbeatNotRunning                   // Scheduler is stopped
	HeartbeatAlreadyRunning               // Scheduler already started
	HeartbeatStatsFailed                  // Keep-alive stats request failed
	HeartbeatReporterFailed               // Stats reporter could not be scheduled
	HeartbeatReporterStopFailed           // Stats reporter did not shut down cleanly
)

const (
	// Poller Errors (1400-1499)
	PollerFetchPanicked = 1400 + iota // Fetch cycle panicked
	PollerCancelled                   // Poller cancelled
)

const (
	// Feed Errors (1500-1599)
	FeedRequestFailed = 1500 + iota // Feed endpoint returned a failure
	FeedRateLimited                 // Feed endpoint rate limited
	FeedDecodeFailed                // Envelope could not be decoded
	FeedUnsuccessful                // Envelope reported success=false
	FeedNotFound                    // Unknown feed name
	FeedNoData                      // Feed has not produced data yet
)

const (
	// Lifecycle Errors (1600-1699)
	LifecyclePID      = 1600 + iota // PID file operation failed
	LifecycleShutdown               // Shutdown process error
	LifecycleDaemon                 // Daemon operation failed
)

const (
	// Misc (1900-1999)
	MiscUnknown = 1900 + iota
)

var errorDefinitions = map[ErrorCode]struct {
	message    string
	domain     Domain
	httpStatus int
}{
	// Configuration errors
	ConfigNotFound: {"Configuration file not found", DomainConfig, http.StatusNotFound},
	ConfigInvalid:  {"Invalid configuration format", DomainConfig, http.StatusBadRequest},
	ConfigLoadFailed: {
		"Failed to load configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigWriteFailed: {
		"Failed to write configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigValidationFailed: {
		"Configuration validation failed",
		DomainConfig,
		http.StatusBadRequest,
	},
	ConfigMarshalFailed: {
		"Failed to serialize configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigUnmarshalFailed: {
		"Failed to deserialize configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigHomeDirectoryError: {
		"Failed to get home directory",
		DomainConfig,
		http.StatusInternalServerError,
	},

	// Server errors
	ServerStart:    {"Failed to start server", DomainServer, http.StatusInternalServerError},
	ServerShutdown: {"Error during server shutdown", DomainServer, http.StatusInternalServerError},
	ServerRequestValidation: {
		"Request validation failed",
		DomainServer,
		http.StatusBadRequest,
	},
	ServerNotFound:      {"Resource not found", DomainServer, http.StatusNotFound},
	ServerInternalError: {"Internal server error", DomainServer, http.StatusInternalServerError},

	// Transport errors
	TransportRequestFailed: {
		"Request failed before a response was received",
		DomainTransport,
		http.StatusBadGateway,
	},
	TransportTimeout: {
		"Request timed out",
		DomainTransport,
		http.StatusGatewayTimeout,
	},
	TransportRetriesExhausted: {
		"Connection failed after retries",
		DomainTransport,
		http.StatusServiceUnavailable,
	},
	TransportCancelled: {
		"Request cancelled",
		DomainTransport,
		http.StatusServiceUnavailable,
	},

	// Heartbeat errors
	HeartbeatPingFailed:  {"Backend ping failed", DomainHeartbeat, http.StatusBadGateway},
	HeartbeatRateLimited: {"Backend ping rate limited", DomainHeartbeat, http.StatusTooManyRequests},
	HeartbeatNotRunning: {
		"Heartbeat scheduler is not running",
		DomainHeartbeat,
		http.StatusConflict,
	},
	HeartbeatAlreadyRunning: {
		"Heartbeat scheduler is already running",
		DomainHeartbeat,
		http.StatusConflict,
	},
	HeartbeatStatsFailed: {"Keep-alive stats unavailable", DomainHeartbeat, http.StatusBadGateway},
	HeartbeatReporterFailed: {
		"Failed to schedule keep-alive reporter",
		DomainHeartbeat,
		http.StatusInternalServerError,
	},
	HeartbeatReporterStopFailed: {
		"Failed to stop keep-alive reporter",
		DomainHeartbeat,
		http.StatusInternalServerError,
	},

	// Poller errors
	PollerFetchPanicked: {"Fetch cycle panicked", DomainPoller, http.StatusInternalServerError},
	PollerCancelled:     {"Poller cancelled", DomainPoller, http.StatusServiceUnavailable},

	// Feed errors
	FeedRequestFailed: {"Feed request failed", DomainFeed, http.StatusBadGateway},
	FeedRateLimited:   {"Feed request rate limited", DomainFeed, http.StatusTooManyRequests},
	FeedDecodeFailed: {
		"Failed to decode feed envelope",
		DomainFeed,
		http.StatusBadGateway,
	},
	FeedUnsuccessful: {"Feed reported an unsuccessful result", DomainFeed, http.StatusBadGateway},
	FeedNotFound:     {"Feed not found", DomainFeed, http.StatusNotFound},
	FeedNoData:       {"Feed has no data yet", DomainFeed, http.StatusServiceUnavailable},

	// Lifecycle errors
	LifecyclePID:      {"PID file operation failed", DomainLifecycle, http.StatusInternalServerError},
	LifecycleShutdown: {"Shutdown process error", DomainLifecycle, http.StatusInternalServerError},
	LifecycleDaemon:   {"Daemon operation failed", DomainLifecycle, http.StatusInternalServerError},

	MiscUnknown: {"Unknown error", DomainMisc, http.StatusInternalServerError},
}
