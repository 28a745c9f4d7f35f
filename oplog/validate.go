package oplog

import (
	"github.com/driftline/relay/errors"
	"github.com/driftline/relay/hlc"
)

// Validate gatekeeps admission to the relay buffer. It is pure and
// synchronous: no I/O, no buffer access, and the candidate is never
// mutated. Deduplication is the buffer's concern, not validation's.
//
// Checks, in order:
//  1. every field present and non-empty
//  2. hlc parses into an in-range timestamp
//  3. entity_type in the closed set
//  4. op in create|update|delete
func Validate(ev Event) error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"op_id", ev.OpID},
		{"hlc", ev.HLC},
		{"device_id", ev.DeviceID},
		{"entity_type", ev.EntityType},
		{"entity_id", ev.EntityID},
		{"op", ev.Op},
		{"cipher_blob", ev.CipherBlob},
		{"hash", ev.Hash},
		{"sig", ev.Sig},
	} {
		if f.value == "" {
			return errors.Wrapf(errors.ErrInvalidRequest, "missing or empty field %q", f.name)
		}
	}

	if _, err := hlc.Parse(ev.HLC); err != nil {
		return errors.Wrapf(err, "event %s", ev.OpID)
	}

	if _, ok := knownEntityTypes[ev.EntityType]; !ok {
		return errors.Wrapf(errors.ErrUnknownEntityType, "%q", ev.EntityType)
	}

	if _, ok := knownOps[ev.Op]; !ok {
		return errors.Wrapf(errors.ErrUnknownOperation, "%q", ev.Op)
	}

	return nil
}
