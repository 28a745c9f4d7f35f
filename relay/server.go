// Package relay implements the multi-device sync relay service: a
// stateless HTTP daemon that accepts batches of encrypted operation log
// events, orders them by hybrid logical clock, deduplicates them, and
// redistributes them to the owner's other devices via cursor-based pulls
// and an optional live WebSocket feed.
//
// The relay never decrypts payloads and never verifies signatures; it
// preserves and forwards every event unaltered.
package relay

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/relay/buffer"
	"github.com/driftline/relay/config"
	"github.com/driftline/relay/oplog"
)

// Relay is the service root. All state lives on the instance — there are
// no package-level globals — so tests and embedders can run several relays
// side by side without shared state.
type Relay struct {
	buf      *buffer.Buffer
	registry *Registry
	logger   *zap.SugaredLogger
	mux      *http.ServeMux

	// Limits, hot-reloadable via ApplyLimits
	maxBatchSize    atomic.Int64
	maxBufferEvents atomic.Int64
	retention       atomic.Int64 // nanoseconds

	cleanupInterval time.Duration
	port            int
	addr            string // bound listen address, set by Start

	startedAt    time.Time
	totalRelayed atomic.Int64
	lastCleanup  atomic.Int64 // unix milliseconds, 0 = never ran

	// Live feed hub
	feedClients map[*feedClient]bool
	feedMu      sync.Mutex
	register    chan *feedClient
	unregister  chan *feedClient
	events      chan oplog.Event

	// Lifecycle
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New builds a relay from the given configuration. Call Start to serve.
func New(cfg *config.Config, logger *zap.SugaredLogger) *Relay {
	r := &Relay{
		buf:             buffer.New(),
		registry:        NewRegistry(cfg.Registry.TTL, cfg.Sync.PushRatePerSec),
		logger:          logger,
		mux:             http.NewServeMux(),
		cleanupInterval: cfg.Sync.CleanupInterval,
		port:            cfg.Server.Port,
		startedAt:       time.Now(),
		feedClients:     make(map[*feedClient]bool),
		register:        make(chan *feedClient),
		unregister:      make(chan *feedClient),
		events:          make(chan oplog.Event, feedQueueSize),
	}
	r.maxBatchSize.Store(int64(cfg.Sync.MaxBatchSize))
	r.maxBufferEvents.Store(int64(cfg.Buffer.MaxEvents))
	r.retention.Store(int64(cfg.Sync.Retention))
	r.setupRoutes()
	return r
}

// ApplyLimits adopts the hot-reloadable limits from a fresh config. Wired
// as a config.Watcher callback; listen port and cleanup period require a
// restart and are deliberately not touched here.
func (r *Relay) ApplyLimits(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.maxBatchSize.Store(int64(cfg.Sync.MaxBatchSize))
	r.maxBufferEvents.Store(int64(cfg.Buffer.MaxEvents))
	r.retention.Store(int64(cfg.Sync.Retention))
	r.logger.Infow("Relay limits updated",
		"max_batch_size", cfg.Sync.MaxBatchSize,
		"max_buffer_events", cfg.Buffer.MaxEvents,
		"retention", cfg.Sync.Retention,
	)
	return nil
}

// Buffer exposes the event buffer for tests and embedders.
func (r *Relay) Buffer() *buffer.Buffer {
	return r.buf
}

// Handler returns the relay's HTTP handler, for serving through an
// embedder's own listener or httptest.
func (r *Relay) Handler() http.Handler {
	return r.mux
}

func (r *Relay) maxBatch() int {
	return int(r.maxBatchSize.Load())
}

func (r *Relay) maxBuffer() int {
	return int(r.maxBufferEvents.Load())
}

func (r *Relay) retentionWindow() time.Duration {
	return time.Duration(r.retention.Load())
}

func (r *Relay) uptime() time.Duration {
	return time.Since(r.startedAt)
}
