// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package constants

// Build-time variables set via ldflags
var (
	Version   = "v0.0.1-dev" // Set via -X flag during build
	CommitSHA = "unknown"    // Set via -X flag during build
	BuildTime = "unknown"    // Set via -X flag during build
)

const (
	TetherVersion     = "v0.0.1"
	TetherPIDFileName = "tether.pid"

	// config
	ConfigFileName = "tether.yml"
	ConfigDirName  = ".tether"
	ConfigEnvVar   = "TETHER_CONFIG"
	EnvPrefix      = "TETHER"

	// backend endpoints
	EndpointHealth         = "/health"
	EndpointPing           = "/ping"
	EndpointKeepAliveStats = "/keep-alive/stats"

	// local status API routes
	APIVersion    = "v1"
	APIBase       = "/api/" + APIVersion + "/tether"
	APIStatus     = APIBase + "/status"
	APIFeeds      = APIBase + "/feeds"
	APIActivity   = APIBase + "/activity"
	APIConnection = APIBase + "/connection"
	APIHealth     = APIBase + "/health-check"
	APIEvents     = APIBase + "/events"
	APIMetrics    = "/metrics"
)
