package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/driftline/relay/hlc"
	"github.com/driftline/relay/oplog"
	"github.com/driftline/relay/version"
)

// pushRequest keeps Events raw so a non-array payload can be rejected with
// a useful message instead of a generic unmarshal error.
type pushRequest struct {
	Events   json.RawMessage `json:"events"`
	DeviceID string          `json:"device_id"`
}

// HandleHealth handles GET /health
func (r *Relay) HandleHealth(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}

	resp := healthResponse{
		Status:           "ok",
		UptimeSeconds:    r.uptime().Seconds(),
		EventsInBuffer:   r.buf.Len(),
		ConnectedDevices: r.registry.Count(),
		MemoryUsageMB:    residentMemoryMB(),
		Version:          version.VersionTag,
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		r.logger.Errorw("Failed to write health response", "error", err)
	}
}

// residentMemoryMB reports the process RSS. Returns 0 when the platform
// query fails rather than failing the health check.
func residentMemoryMB() float64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return float64(mem.RSS) / (1024 * 1024)
}

// HandleSyncPush handles POST /sync/push. Each event in the batch is
// validated and admitted independently; one bad event never blocks its
// siblings. Duplicates count as rejected without an error entry.
func (r *Relay) HandleSyncPush(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	var body pushRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var events []oplog.Event
	if err := json.Unmarshal(body.Events, &events); err != nil {
		writeError(w, http.StatusBadRequest, "Events must be an array")
		return
	}

	if max := r.maxBatch(); len(events) > max {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Batch exceeds maximum size of %d events", max))
		return
	}

	if body.DeviceID != "" {
		r.registry.Seen(body.DeviceID)
		if !r.registry.AllowPush(body.DeviceID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	resp := pushResponse{}
	for i, ev := range events {
		if err := oplog.Validate(ev); err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}
		admitted, err := r.buf.Admit(ev)
		if err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}
		if !admitted {
			// Already relayed under this op_id; silently ignored.
			resp.Rejected++
			continue
		}
		resp.Accepted++
		r.totalRelayed.Add(1)
		r.publish(ev)
	}

	if evicted := r.buf.TrimToCapacity(r.maxBuffer()); evicted > 0 {
		r.logger.Debugw("Buffer trimmed after push", "evicted", evicted)
	}
	resp.BufferSize = r.buf.Len()

	r.logger.Debugw("Push processed",
		"device_id", body.DeviceID,
		"accepted", resp.Accepted,
		"rejected", resp.Rejected,
	)
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		r.logger.Errorw("Failed to write push response", "error", err)
	}
}

// HandleSyncSince handles GET /sync/since. Events are returned in clock
// order, strictly after the cursor, excluding the requester's own events.
func (r *Relay) HandleSyncSince(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}

	after := req.URL.Query().Get("after")
	if after == "" {
		writeError(w, http.StatusBadRequest, "Missing or invalid after parameter")
		return
	}
	cursor, err := hlc.Parse(after)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid HLC format")
		return
	}

	deviceID := req.URL.Query().Get("device")
	if deviceID != "" {
		r.registry.Seen(deviceID)
	}

	limit := r.maxBatch()
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		if n < limit {
			limit = n
		}
	}

	events, hasMore, next := r.buf.QueryAfter(cursor, deviceID, limit)
	if events == nil {
		events = []oplog.Event{}
	}

	resp := pullResponse{
		Events:     events,
		HasMore:    hasMore,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
		NextCursor: next.String(),
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		r.logger.Errorw("Failed to write pull response", "error", err)
	}
}

// HandleRegister handles POST /devices/register. Registration is
// informational; unregistered devices can still push and pull.
func (r *Relay) HandleRegister(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodPost) {
		return
	}

	var body registerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "Missing device_id")
		return
	}

	r.registry.Register(body.DeviceID, body.DeviceInfo)
	r.logger.Infow("Device registered", "device_id", body.DeviceID)

	resp := registerResponse{
		Registered: true,
		DeviceID:   body.DeviceID,
		ServerTime: time.Now().UTC().Format(time.RFC3339),
		RelayInfo: relayInfo{
			MaxBatchSize:      r.maxBatch(),
			CleanupIntervalMs: r.cleanupInterval.Milliseconds(),
			RetentionMs:       r.retentionWindow().Milliseconds(),
			MaxBufferEvents:   r.maxBuffer(),
		},
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		r.logger.Errorw("Failed to write register response", "error", err)
	}
}

// HandleMetrics handles GET /metrics
func (r *Relay) HandleMetrics(w http.ResponseWriter, req *http.Request) {
	if !requireMethod(w, req, http.MethodGet) {
		return
	}

	uptime := r.uptime().Seconds()
	relayed := r.totalRelayed.Load()
	perSecond := 0.0
	if uptime > 0 {
		perSecond = float64(relayed) / uptime
	}

	resp := metricsResponse{
		UptimeSeconds:      uptime,
		BufferSize:         r.buf.Len(),
		TotalEventsRelayed: relayed,
		KnownDevices:       r.registry.Devices(),
		EventsPerSecond:    perSecond,
		Goroutines:         runtime.NumGoroutine(),
		GoVersion:          runtime.Version(),
		Version:            version.VersionTag,
	}
	if last := r.lastCleanup.Load(); last > 0 {
		resp.LastCleanup = time.UnixMilli(last).UTC().Format(time.RFC3339)
	}
	if resp.KnownDevices == nil {
		resp.KnownDevices = []string{}
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		r.logger.Errorw("Failed to write metrics response", "error", err)
	}
}
