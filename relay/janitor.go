package relay

import "time"

// runJanitor periodically evicts events older than the retention window.
// Size-based trimming happens inline on push; this loop only enforces age,
// so an idle relay still sheds stale events.
func (r *Relay) runJanitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.runCleanup(time.Now())
		}
	}
}

// runCleanup performs one eviction pass. Split out so tests can trigger a
// pass without waiting on the ticker.
func (r *Relay) runCleanup(now time.Time) {
	cutoff := now.Add(-r.retentionWindow())
	evicted := r.buf.EvictOlderThan(cutoff)
	r.lastCleanup.Store(now.UnixMilli())

	if evicted > 0 {
		r.logger.Infow("Cleanup evicted expired events",
			"evicted", evicted,
			"cutoff", cutoff.UTC().Format(time.RFC3339),
			"buffer_size", r.buf.Len(),
		)
	} else {
		r.logger.Debugw("Cleanup pass found nothing to evict",
			"buffer_size", r.buf.Len(),
		)
	}
}
