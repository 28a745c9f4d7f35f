// Package client is the device-side library for the sync relay: it mints
// operation log events with locally generated op ids and hybrid logical
// clock positions, and speaks the relay's push/pull HTTP protocol.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/relay/errors"
	"github.com/driftline/relay/hlc"
	"github.com/driftline/relay/oplog"
)

// PullResult is one page of events from the relay.
type PullResult struct {
	Events     []oplog.Event `json:"events"`
	HasMore    bool          `json:"has_more"`
	ServerTime string        `json:"server_time"`
	NextCursor string        `json:"next_cursor"`
}

// PushResult reports per-batch admission outcome.
type PushResult struct {
	Accepted   int      `json:"accepted"`
	Rejected   int      `json:"rejected"`
	Errors     []string `json:"errors"`
	BufferSize int      `json:"buffer_size"`
}

// RelayInfo carries the relay's operational limits, returned on register.
type RelayInfo struct {
	MaxBatchSize      int   `json:"max_batch_size"`
	CleanupIntervalMs int64 `json:"cleanup_interval_ms"`
	RetentionMs       int64 `json:"retention_ms"`
	MaxBufferEvents   int   `json:"max_buffer_events"`
}

// RegisterResult is the relay's response to a device registration.
type RegisterResult struct {
	Registered bool      `json:"registered"`
	DeviceID   string    `json:"device_id"`
	ServerTime string    `json:"server_time"`
	RelayInfo  RelayInfo `json:"relay_info"`
}

// Client talks to one relay on behalf of one device. Safe for concurrent
// use; the embedded clock serializes its own updates.
type Client struct {
	baseURL  string
	deviceID string
	http     *http.Client
	clock    *hlc.Clock
}

// New creates a relay client for the given device.
func New(baseURL, deviceID string) *Client {
	return &Client{
		baseURL:  baseURL,
		deviceID: deviceID,
		http:     &http.Client{Timeout: 30 * time.Second},
		clock:    hlc.NewClock(),
	}
}

// DeviceID returns the device identity this client pushes and pulls as.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// NewEvent mints an event at the clock's next position with a fresh op id.
// The caller supplies the already-encrypted payload and its digest and
// signature; the client never sees plaintext.
func (c *Client) NewEvent(entityType oplog.EntityType, entityID string, op oplog.Op, cipherBlob, hash, sig string) (oplog.Event, error) {
	ts, err := c.clock.Now()
	if err != nil {
		return oplog.Event{}, errors.Wrap(err, "minting event clock")
	}
	return oplog.Event{
		OpID:       uuid.NewString(),
		HLC:        ts.String(),
		DeviceID:   c.deviceID,
		EntityType: string(entityType),
		EntityID:   entityID,
		Op:         string(op),
		CipherBlob: cipherBlob,
		Hash:       hash,
		Sig:        sig,
	}, nil
}

// Register announces the device to the relay and returns its limits.
func (c *Client) Register(ctx context.Context, deviceInfo string) (*RegisterResult, error) {
	body := map[string]string{"device_id": c.deviceID}
	if deviceInfo != "" {
		body["device_info"] = deviceInfo
	}

	var result RegisterResult
	if err := c.postJSON(ctx, "/devices/register", body, &result); err != nil {
		return nil, errors.Wrap(err, "register")
	}
	return &result, nil
}

// Push uploads a batch of events. Partial rejection is reported in the
// result, not as an error; err is non-nil only when the whole request
// failed.
func (c *Client) Push(ctx context.Context, events []oplog.Event) (*PushResult, error) {
	body := map[string]interface{}{
		"device_id": c.deviceID,
		"events":    events,
	}

	var result PushResult
	if err := c.postJSON(ctx, "/sync/push", body, &result); err != nil {
		return nil, errors.Wrap(err, "push")
	}
	return &result, nil
}

// Pull fetches one page of events strictly after the cursor, excluding
// this device's own. limit 0 uses the relay's batch size. Every remote
// clock observed in the page advances the local clock, preserving
// causality for events minted afterwards.
func (c *Client) Pull(ctx context.Context, after hlc.Timestamp, limit int) (*PullResult, error) {
	q := url.Values{}
	q.Set("after", after.String())
	q.Set("device", c.deviceID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/sync/since?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "pull")
	}

	var result PullResult
	if err := c.do(req, &result); err != nil {
		return nil, errors.Wrap(err, "pull")
	}

	for _, ev := range result.Events {
		ts, err := ev.Timestamp()
		if err != nil {
			continue // relay admitted it, treat as unobservable
		}
		c.clock.Observe(ts)
	}
	return &result, nil
}

// PullAll pages through the relay until has_more is false, returning all
// events after the cursor and the cursor to persist for the next sync.
func (c *Client) PullAll(ctx context.Context, after hlc.Timestamp) ([]oplog.Event, hlc.Timestamp, error) {
	cursor := after
	var all []oplog.Event
	for {
		page, err := c.Pull(ctx, cursor, 0)
		if err != nil {
			return all, cursor, err
		}
		all = append(all, page.Events...)

		next, err := hlc.Parse(page.NextCursor)
		if err != nil {
			return all, cursor, errors.Wrap(err, "relay returned unparseable cursor")
		}
		cursor = next

		if !page.HasMore {
			return all, cursor, nil
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return errors.Newf("relay returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return errors.Newf("relay returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}
