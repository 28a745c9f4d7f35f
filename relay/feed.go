package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftline/relay/oplog"
)

const (
	// feedQueueSize bounds the hub's inbound event channel and each
	// client's outbound queue.
	feedQueueSize = 256

	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Devices connect from app webviews and local processes; origin
	// enforcement belongs to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedClient is one WebSocket subscriber to the live event feed.
type feedClient struct {
	relay    *Relay
	conn     *websocket.Conn
	deviceID string
	send     chan []byte
}

// HandleSyncWS handles GET /sync/ws: upgrades the connection and streams
// every event accepted after the upgrade, excluding the subscriber's own.
// The feed is an optimization; pull remains the source of truth.
func (r *Relay) HandleSyncWS(w http.ResponseWriter, req *http.Request) {
	deviceID := req.URL.Query().Get("device")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "Missing device parameter")
		return
	}

	conn, err := feedUpgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	r.registry.Seen(deviceID)

	client := &feedClient{
		relay:    r,
		conn:     conn,
		deviceID: deviceID,
		send:     make(chan []byte, feedQueueSize),
	}
	r.register <- client

	go client.writePump()
	go client.readPump()
}

// publish hands an accepted event to the feed hub. Never blocks the push
// path: if the hub is saturated the event is simply not broadcast, and
// subscribers catch up through pull.
func (r *Relay) publish(ev oplog.Event) {
	select {
	case r.events <- ev:
	default:
	}
}

// runFeedHub owns the client set. Registration, teardown and broadcast all
// flow through its channels, so the set needs no locking beyond feedMu for
// the shutdown path.
func (r *Relay) runFeedHub() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			r.closeFeedClients()
			return
		case client := <-r.register:
			r.feedMu.Lock()
			r.feedClients[client] = true
			r.feedMu.Unlock()
			r.logger.Debugw("Feed client connected", "device_id", client.deviceID)
		case client := <-r.unregister:
			r.dropFeedClient(client)
		case ev := <-r.events:
			payload, err := json.Marshal(ev)
			if err != nil {
				r.logger.Errorw("Failed to marshal feed event", "error", err)
				continue
			}
			r.feedMu.Lock()
			for client := range r.feedClients {
				if client.deviceID == ev.DeviceID {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// Slow consumer: drop it rather than stall the feed.
					delete(r.feedClients, client)
					close(client.send)
				}
			}
			r.feedMu.Unlock()
		}
	}
}

func (r *Relay) dropFeedClient(client *feedClient) {
	r.feedMu.Lock()
	if _, ok := r.feedClients[client]; ok {
		delete(r.feedClients, client)
		close(client.send)
	}
	r.feedMu.Unlock()
}

func (r *Relay) closeFeedClients() {
	r.feedMu.Lock()
	for client := range r.feedClients {
		delete(r.feedClients, client)
		close(client.send)
	}
	r.feedMu.Unlock()
}

// writePump drains the client's send queue onto the socket and keeps the
// connection alive with pings. One writer per connection.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames — the feed is one-way — and detects
// disconnects so the hub can release the client.
func (c *feedClient) readPump() {
	defer func() {
		select {
		case c.relay.unregister <- c:
		case <-c.relay.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
