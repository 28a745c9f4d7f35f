// Package buffer holds admitted sync events in memory, ordered by their
// hybrid logical clock position, deduplicated by operation id, and bounded
// by both capacity and age.
//
// The backing store is a sorted set keyed by op id with the packed HLC as
// score, so the head of the set is always the oldest event and range
// queries come back in causal order. A single RWMutex guards the set:
// mutations are exclusive, reads may run concurrently with each other.
package buffer

import (
	"sync"
	"time"

	"github.com/wangjia184/sortedset"

	"github.com/driftline/relay/errors"
	"github.com/driftline/relay/hlc"
	"github.com/driftline/relay/oplog"
)

// Buffer is the relay's in-memory event store. Construct with New; the
// zero value is not usable. Buffer instances are independent — there is
// deliberately no package-level shared state, so tests and embedders can
// run several relays side by side.
type Buffer struct {
	mu  sync.RWMutex
	set *sortedset.SortedSet
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{set: sortedset.New()}
}

// Admit inserts a validated event. It returns false without error when an
// event with the same op id is already present: duplicates are an expected
// replay condition, not a failure, and the stored event wins
// (first-writer-wins — a later event reusing the op id is dropped even if
// its content differs).
func (b *Buffer) Admit(ev oplog.Event) (bool, error) {
	ts, err := ev.Timestamp()
	if err != nil {
		return false, errors.Wrapf(err, "admitting event %s", ev.OpID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.set.GetByKey(ev.OpID) != nil {
		return false, nil
	}
	b.set.AddOrUpdate(ev.OpID, sortedset.SCORE(ts.Key()), ev)
	return true, nil
}

// QueryAfter returns events strictly after cursor in HLC order, skipping
// events originated by excludeDevice, capped at limit. hasMore reports
// whether matching events remained beyond the page. next is the HLC of the
// last returned event, or the input cursor when the page is empty — the
// cursor never regresses.
func (b *Buffer) QueryAfter(cursor hlc.Timestamp, excludeDevice string, limit int) (events []oplog.Event, hasMore bool, next hlc.Timestamp) {
	next = cursor
	if limit <= 0 {
		return nil, false, next
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	maxNode := b.set.PeekMax()
	if maxNode == nil || maxNode.Score() <= sortedset.SCORE(cursor.Key()) {
		return nil, false, next
	}

	nodes := b.set.GetByScoreRange(
		sortedset.SCORE(cursor.Key()),
		maxNode.Score(),
		&sortedset.GetByScoreRangeOptions{ExcludeStart: true},
	)

	for _, node := range nodes {
		ev := node.Value.(oplog.Event)
		if ev.DeviceID == excludeDevice {
			continue
		}
		if len(events) >= limit {
			hasMore = true
			break
		}
		events = append(events, ev)
	}

	if n := len(events); n > 0 {
		// Admitted events always carry a parseable HLC.
		ts, _ := events[n-1].Timestamp()
		next = ts
	}
	return events, hasMore, next
}

// TrimToCapacity drops the oldest events (lowest HLC) until at most max
// remain. Returns the number dropped.
func (b *Buffer) TrimToCapacity(max int) int {
	if max < 0 {
		max = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	excess := b.set.GetCount() - max
	if excess <= 0 {
		return 0
	}
	removed := b.set.GetByRankRange(1, excess, true)
	return len(removed)
}

// EvictOlderThan removes every event whose HLC physical component is
// before cutoff, regardless of capacity pressure. Returns the number
// removed.
func (b *Buffer) EvictOlderThan(cutoff time.Time) int {
	cutoffKey := hlc.Timestamp{Physical: cutoff.UnixMilli()}.Key()

	b.mu.Lock()
	defer b.mu.Unlock()

	minNode := b.set.PeekMin()
	if minNode == nil || minNode.Score() >= sortedset.SCORE(cutoffKey) {
		return 0
	}

	stale := b.set.GetByScoreRange(
		minNode.Score(),
		sortedset.SCORE(cutoffKey),
		&sortedset.GetByScoreRangeOptions{ExcludeEnd: true},
	)
	for _, node := range stale {
		b.set.Remove(node.Key())
	}
	return len(stale)
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.set.GetCount()
}

// Contains reports whether an event with the given op id is buffered.
func (b *Buffer) Contains(opID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.set.GetByKey(opID) != nil
}

// Snapshot copies out all buffered events in ascending HLC order.
func (b *Buffer) Snapshot() []oplog.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	nodes := b.set.GetByRankRange(1, -1, false)
	events := make([]oplog.Event, 0, len(nodes))
	for _, node := range nodes {
		events = append(events, node.Value.(oplog.Event))
	}
	return events
}
