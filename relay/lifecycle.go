package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/driftline/relay/errors"
)

const shutdownTimeout = 10 * time.Second

// Start binds the listen port and launches the HTTP server, the feed hub
// and the cleanup loop. It returns once the listener is bound; serving
// continues in the background until Stop or ctx cancellation.
func (r *Relay) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", r.port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", r.port)
	}
	r.addr = ln.Addr().String()

	r.httpServer = &http.Server{
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	r.wg.Add(1)
	go r.runFeedHub()

	r.wg.Add(1)
	go r.runJanitor()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			r.logger.Errorw("HTTP server exited", "error", err)
		}
	}()

	r.logger.Infow("Relay listening",
		"addr", r.addr,
		"max_batch_size", r.maxBatch(),
		"max_buffer_events", r.maxBuffer(),
		"retention", r.retentionWindow(),
	)
	return nil
}

// Addr returns the bound listen address, valid after Start. Useful when
// the configured port is 0.
func (r *Relay) Addr() string {
	return r.addr
}

// Stop shuts the relay down: drains in-flight HTTP requests, stops the
// background loops and releases the registry. Safe to call once after a
// successful Start.
func (r *Relay) Stop() error {
	r.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := r.httpServer.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		r.logger.Warnw("Timed out waiting for background loops to stop")
	}

	r.registry.Close()
	r.logger.Infow("Relay stopped")
	if err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}
