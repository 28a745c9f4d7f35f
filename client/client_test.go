package client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftline/relay/config"
	"github.com/driftline/relay/hlc"
	"github.com/driftline/relay/oplog"
	"github.com/driftline/relay/relay"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := relay.New(config.Default(), zap.NewNop().Sugar())
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEventMintsUniqueOrderedEvents(t *testing.T) {
	c := New("http://unused", "device-a")

	first, err := c.NewEvent(oplog.EntityMemoryRecord, "rec-1", oplog.OpCreate, "blob", "h", "s")
	require.NoError(t, err)
	second, err := c.NewEvent(oplog.EntityMemoryRecord, "rec-1", oplog.OpUpdate, "blob2", "h2", "s2")
	require.NoError(t, err)

	assert.NotEqual(t, first.OpID, second.OpID)
	assert.Equal(t, "device-a", first.DeviceID)
	require.NoError(t, oplog.Validate(first))
	require.NoError(t, oplog.Validate(second))

	ts1, err := first.Timestamp()
	require.NoError(t, err)
	ts2, err := second.Timestamp()
	require.NoError(t, err)
	assert.True(t, hlc.After(ts2, ts1))
}

func TestRegisterReturnsRelayLimits(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "device-a")

	result, err := c.Register(context.Background(), "laptop")
	require.NoError(t, err)
	assert.True(t, result.Registered)
	assert.Equal(t, "device-a", result.DeviceID)
	assert.Equal(t, 100, result.RelayInfo.MaxBatchSize)
	assert.Equal(t, 10000, result.RelayInfo.MaxBufferEvents)
}

func TestPushPullRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	sender := New(srv.URL, "device-a")
	receiver := New(srv.URL, "device-b")

	ev, err := sender.NewEvent(oplog.EntityOverlay, "ov-1", oplog.OpCreate, "blob", "h", "s")
	require.NoError(t, err)

	pushed, err := sender.Push(context.Background(), []oplog.Event{ev})
	require.NoError(t, err)
	assert.Equal(t, 1, pushed.Accepted)

	page, err := receiver.Pull(context.Background(), hlc.Timestamp{}, 0)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, ev.OpID, page.Events[0].OpID)
	assert.Equal(t, ev.CipherBlob, page.Events[0].CipherBlob)

	// Observing the remote clock means the receiver's next event orders
	// after what it just pulled.
	remoteTS, err := ev.Timestamp()
	require.NoError(t, err)
	next, err := receiver.NewEvent(oplog.EntityOverlay, "ov-1", oplog.OpUpdate, "blob2", "h2", "s2")
	require.NoError(t, err)
	nextTS, err := next.Timestamp()
	require.NoError(t, err)
	assert.True(t, hlc.After(nextTS, remoteTS))

	// The sender never sees its own event back.
	own, err := sender.Pull(context.Background(), hlc.Timestamp{}, 0)
	require.NoError(t, err)
	assert.Empty(t, own.Events)
}

func TestPullAllPages(t *testing.T) {
	srv := newTestServer(t)
	sender := New(srv.URL, "device-a")
	receiver := New(srv.URL, "device-b")

	var pushed []oplog.Event
	for i := 0; i < 12; i++ {
		ev := oplog.Event{
			OpID:       fmt.Sprintf("op-%02d", i),
			HLC:        fmt.Sprintf("%d-0", 1000+i),
			DeviceID:   "device-a",
			EntityType: string(oplog.EntityMemoryRecord),
			EntityID:   "rec-1",
			Op:         string(oplog.OpUpdate),
			CipherBlob: "blob",
			Hash:       "h",
			Sig:        "s",
		}
		pushed = append(pushed, ev)
	}
	result, err := sender.Push(context.Background(), pushed)
	require.NoError(t, err)
	require.Equal(t, 12, result.Accepted)

	all, cursor, err := receiver.PullAll(context.Background(), hlc.Timestamp{})
	require.NoError(t, err)
	require.Len(t, all, 12)
	for i, ev := range all {
		assert.Equal(t, fmt.Sprintf("op-%02d", i), ev.OpID)
	}
	assert.Equal(t, "1011-0", cursor.String())

	// Resuming from the returned cursor yields nothing new.
	more, _, err := receiver.PullAll(context.Background(), cursor)
	require.NoError(t, err)
	assert.Empty(t, more)
}

func TestPushRelayErrorSurfaces(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, "device-a")

	oversized := make([]oplog.Event, 101)
	for i := range oversized {
		ev, err := c.NewEvent(oplog.EntityConfig, "cfg", oplog.OpUpdate, "blob", "h", "s")
		require.NoError(t, err)
		oversized[i] = ev
	}
	_, err := c.Push(context.Background(), oversized)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay returned 400")
}
