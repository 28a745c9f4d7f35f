package relay

import "github.com/driftline/relay/oplog"

// Wire shapes for the sync protocol. The client package mirrors these;
// field names are part of the device contract and must not change.

type pullResponse struct {
	Events     []oplog.Event `json:"events"`
	HasMore    bool          `json:"has_more"`
	ServerTime string        `json:"server_time"`
	NextCursor string        `json:"next_cursor"`
}

type pushResponse struct {
	Accepted   int      `json:"accepted"`
	Rejected   int      `json:"rejected"`
	Errors     []string `json:"errors,omitempty"`
	BufferSize int      `json:"buffer_size"`
}

type registerRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceInfo string `json:"device_info,omitempty"`
}

type relayInfo struct {
	MaxBatchSize      int   `json:"max_batch_size"`
	CleanupIntervalMs int64 `json:"cleanup_interval_ms"`
	RetentionMs       int64 `json:"retention_ms"`
	MaxBufferEvents   int   `json:"max_buffer_events"`
}

type registerResponse struct {
	Registered bool      `json:"registered"`
	DeviceID   string    `json:"device_id"`
	ServerTime string    `json:"server_time"`
	RelayInfo  relayInfo `json:"relay_info"`
}

type healthResponse struct {
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime"`
	EventsInBuffer   int     `json:"events_in_buffer"`
	ConnectedDevices int     `json:"connected_devices"`
	MemoryUsageMB    float64 `json:"memory_usage_mb"`
	Version          string  `json:"version"`
}

type metricsResponse struct {
	UptimeSeconds      float64  `json:"uptime_seconds"`
	BufferSize         int      `json:"buffer_size"`
	TotalEventsRelayed int64    `json:"total_events_relayed"`
	KnownDevices       []string `json:"known_devices"`
	EventsPerSecond    float64  `json:"events_per_second"`
	LastCleanup        string   `json:"last_cleanup,omitempty"`
	Goroutines         int      `json:"goroutines"`
	GoVersion          string   `json:"go_version"`
	Version            string   `json:"version"`
}
