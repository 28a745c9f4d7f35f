// Package oplog defines the operation log event — the immutable unit of
// replication between devices — and its admission validation.
//
// Events are opaque to the relay: cipher_blob is encrypted, hash and sig
// are caller-defined and never recomputed or verified here. The relay's
// contract is to preserve and forward every field unaltered.
package oplog

import "github.com/driftline/relay/hlc"

// Op is the mutation kind an event describes.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// EntityType tags which external entity class an event mutates. The relay
// validates membership in this closed set but never interprets content.
type EntityType string

const (
	EntityMemoryRecord EntityType = "memory-record"
	EntityOverlay      EntityType = "overlay"
	EntityKeyMaterial  EntityType = "key-material"
	EntityConfig       EntityType = "config"
)

// Event is one signed, encrypted record of a single entity mutation.
// Assigned at creation on the originating device and immutable afterwards.
type Event struct {
	OpID       string `json:"op_id"`       // globally unique, dedup key
	HLC        string `json:"hlc"`         // causal position, hlc wire token
	DeviceID   string `json:"device_id"`   // origin device, excluded on its own pulls
	EntityType string `json:"entity_type"` // member of the closed entity set
	EntityID   string `json:"entity_id"`   // affected entity instance
	Op         string `json:"op"`          // create | update | delete
	CipherBlob string `json:"cipher_blob"` // encrypted payload, never decrypted here
	Hash       string `json:"hash"`        // caller-defined digest, opaque
	Sig        string `json:"sig"`         // caller-defined signature, opaque
}

// Timestamp parses the event's HLC token. Events already admitted to the
// buffer have passed validation, so the error path only fires on
// unvalidated input.
func (e Event) Timestamp() (hlc.Timestamp, error) {
	return hlc.Parse(e.HLC)
}

// knownEntityTypes is the closed membership set for validation.
var knownEntityTypes = map[string]struct{}{
	string(EntityMemoryRecord): {},
	string(EntityOverlay):      {},
	string(EntityKeyMaterial):  {},
	string(EntityConfig):       {},
}

// knownOps is the closed membership set for validation.
var knownOps = map[string]struct{}{
	string(OpCreate): {},
	string(OpUpdate): {},
	string(OpDelete): {},
}
