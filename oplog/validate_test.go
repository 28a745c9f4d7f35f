package oplog

import (
	"testing"

	"github.com/driftline/relay/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() Event {
	return Event{
		OpID:       "op-1",
		HLC:        "1000-0",
		DeviceID:   "device-a",
		EntityType: string(EntityMemoryRecord),
		EntityID:   "mem-42",
		Op:         string(OpCreate),
		CipherBlob: "b64:abcdef",
		Hash:       "sha256:123",
		Sig:        "ed25519:456",
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	require.NoError(t, Validate(validEvent()))
}

func TestValidateRejectsMissingFields(t *testing.T) {
	fields := []struct {
		name   string
		mutate func(*Event)
	}{
		{"op_id", func(e *Event) { e.OpID = "" }},
		{"hlc", func(e *Event) { e.HLC = "" }},
		{"device_id", func(e *Event) { e.DeviceID = "" }},
		{"entity_type", func(e *Event) { e.EntityType = "" }},
		{"entity_id", func(e *Event) { e.EntityID = "" }},
		{"op", func(e *Event) { e.Op = "" }},
		{"cipher_blob", func(e *Event) { e.CipherBlob = "" }},
		{"hash", func(e *Event) { e.Hash = "" }},
		{"sig", func(e *Event) { e.Sig = "" }},
	}

	for _, f := range fields {
		t.Run(f.name, func(t *testing.T) {
			ev := validEvent()
			f.mutate(&ev)
			err := Validate(ev)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequestError(err))
			assert.Contains(t, err.Error(), f.name)
		})
	}
}

func TestValidateRejectsBadClock(t *testing.T) {
	ev := validEvent()
	ev.HLC = "not-a-clock"
	err := Validate(ev)
	require.Error(t, err)
	assert.True(t, errors.IsMalformedClockError(err))
}

func TestValidateRejectsUnknownEntityType(t *testing.T) {
	ev := validEvent()
	ev.EntityType = "spellbook"
	err := Validate(ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownEntityType))
}

func TestValidateRejectsUnknownOp(t *testing.T) {
	ev := validEvent()
	ev.Op = "upsert"
	err := Validate(ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownOperation))
}

func TestValidateDoesNotMutateCandidate(t *testing.T) {
	ev := validEvent()
	before := ev
	_ = Validate(ev)
	assert.Equal(t, before, ev)
}

func TestEventTimestamp(t *testing.T) {
	ev := validEvent()
	ts, err := ev.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts.Physical)
	assert.Equal(t, uint32(0), ts.Logical)
}
