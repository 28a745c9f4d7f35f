package buffer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/relay/hlc"
	"github.com/driftline/relay/oplog"
)

func event(opID, token, device string) oplog.Event {
	return oplog.Event{
		OpID:       opID,
		HLC:        token,
		DeviceID:   device,
		EntityType: string(oplog.EntityMemoryRecord),
		EntityID:   "mem-1",
		Op:         string(oplog.OpUpdate),
		CipherBlob: "blob",
		Hash:       "hash",
		Sig:        "sig",
	}
}

func mustAdmit(t *testing.T, b *Buffer, ev oplog.Event) {
	t.Helper()
	accepted, err := b.Admit(ev)
	require.NoError(t, err)
	require.True(t, accepted, "event %s", ev.OpID)
}

func TestAdmitDeduplicates(t *testing.T) {
	b := New()

	accepted, err := b.Admit(event("e1", "1000-0", "A"))
	require.NoError(t, err)
	assert.True(t, accepted)

	// Same op id again: silent no-op, buffer unchanged.
	accepted, err = b.Admit(event("e1", "1000-0", "A"))
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 1, b.Len())
}

func TestAdmitFirstWriterWins(t *testing.T) {
	b := New()
	mustAdmit(t, b, event("e1", "1000-0", "A"))

	// Same op id, different content: dropped, stored event untouched.
	conflicting := event("e1", "2000-0", "B")
	accepted, err := b.Admit(conflicting)
	require.NoError(t, err)
	assert.False(t, accepted)

	got := b.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].DeviceID)
	assert.Equal(t, "1000-0", got[0].HLC)
}

func TestAdmitRejectsUnparseableClock(t *testing.T) {
	b := New()
	_, err := b.Admit(event("e1", "garbage", "A"))
	require.Error(t, err)
	assert.Equal(t, 0, b.Len())
}

func TestQueryAfterOrdersAndFilters(t *testing.T) {
	b := New()
	mustAdmit(t, b, event("e3", "3000-0", "A"))
	mustAdmit(t, b, event("e1", "1000-0", "A"))
	mustAdmit(t, b, event("e2", "2000-0", "B"))
	mustAdmit(t, b, event("e4", "3000-1", "B"))

	events, hasMore, next := b.QueryAfter(hlc.Timestamp{}, "", 10)
	require.Len(t, events, 4)
	assert.False(t, hasMore)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, opIDs(events))
	assert.Equal(t, "3000-1", next.String())

	// Self-exclusion: device B never sees its own writes.
	events, _, _ = b.QueryAfter(hlc.Timestamp{}, "B", 10)
	assert.Equal(t, []string{"e1", "e3"}, opIDs(events))

	// Strictly-after filter.
	cursor, _ := hlc.Parse("2000-0")
	events, _, _ = b.QueryAfter(cursor, "", 10)
	assert.Equal(t, []string{"e3", "e4"}, opIDs(events))
}

func TestQueryAfterPagination(t *testing.T) {
	b := New()
	for i := 0; i < 10; i++ {
		mustAdmit(t, b, event(fmt.Sprintf("e%d", i), fmt.Sprintf("%d-0", 1000+i), "A"))
	}

	cursor := hlc.Timestamp{}
	var seen []string
	for {
		events, hasMore, next := b.QueryAfter(cursor, "B", 3)
		seen = append(seen, opIDs(events)...)
		if !hasMore {
			break
		}
		require.NotEmpty(t, events)
		cursor = next
	}

	// Every event exactly once, in order.
	require.Len(t, seen, 10)
	for i, id := range seen {
		assert.Equal(t, fmt.Sprintf("e%d", i), id)
	}
}

func TestQueryAfterEmptyKeepsCursor(t *testing.T) {
	b := New()
	mustAdmit(t, b, event("e1", "1000-0", "A"))

	cursor, _ := hlc.Parse("5000-0")
	events, hasMore, next := b.QueryAfter(cursor, "", 10)
	assert.Empty(t, events)
	assert.False(t, hasMore)
	assert.Equal(t, cursor, next, "cursor must never regress")
}

func TestQueryAfterSelfExclusionOnlyPageStillAdvances(t *testing.T) {
	b := New()
	mustAdmit(t, b, event("e1", "1000-0", "A"))

	events, hasMore, next := b.QueryAfter(hlc.Timestamp{}, "A", 10)
	assert.Empty(t, events)
	assert.False(t, hasMore)
	assert.Equal(t, hlc.Timestamp{}, next)
}

func TestTrimToCapacityKeepsNewest(t *testing.T) {
	b := New()
	for i := 0; i < 10; i++ {
		mustAdmit(t, b, event(fmt.Sprintf("e%d", i), fmt.Sprintf("%d-0", 1000+i), "A"))
	}

	dropped := b.TrimToCapacity(4)
	assert.Equal(t, 6, dropped)
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, []string{"e6", "e7", "e8", "e9"}, opIDs(b.Snapshot()))

	// Already under capacity: nothing to do.
	assert.Equal(t, 0, b.TrimToCapacity(4))
}

func TestEvictOlderThan(t *testing.T) {
	b := New()
	mustAdmit(t, b, event("old1", "1000-0", "A"))
	mustAdmit(t, b, event("old2", "1999-5", "B"))
	mustAdmit(t, b, event("edge", "2000-0", "A"))
	mustAdmit(t, b, event("new1", "3000-0", "B"))

	removed := b.EvictOlderThan(time.UnixMilli(2000))
	assert.Equal(t, 2, removed)

	// Events at the cutoff millisecond survive; only strictly-older go.
	assert.Equal(t, []string{"edge", "new1"}, opIDs(b.Snapshot()))

	// Idempotent.
	assert.Equal(t, 0, b.EvictOlderThan(time.UnixMilli(2000)))
}

func TestConcurrentAdmitAndQuery(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for d := 0; d < 4; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ev := event(
					fmt.Sprintf("d%d-e%d", d, i),
					fmt.Sprintf("%d-%d", 1000+i, d),
					fmt.Sprintf("device-%d", d),
				)
				_, err := b.Admit(ev)
				assert.NoError(t, err)
			}
		}(d)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			b.QueryAfter(hlc.Timestamp{}, "device-0", 20)
			b.Len()
		}
	}()

	wg.Wait()
	assert.Equal(t, 400, b.Len())
}

func opIDs(events []oplog.Event) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.OpID)
	}
	return ids
}
