// Package hlc implements hybrid logical clock timestamps for causal
// ordering of sync events across loosely-synchronized devices.
//
// A timestamp combines wall-clock milliseconds with a logical counter that
// breaks ties when two events share the same physical millisecond. Tokens
// travel on the wire as "<physical>-<logical>" (e.g. "1700000000000-3").
// The relay only parses and compares tokens; minting happens device-side
// via Clock.
package hlc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/driftline/relay/errors"
)

// Wire bounds. They keep Key() injective: a packed key is
// physical<<LogicalBits | logical, so physical must fit the remaining
// 43 bits of an int64 (enough milliseconds until the year ~2248).
const (
	LogicalBits = 20
	MaxLogical  = 1<<LogicalBits - 1
	MaxPhysical = 1<<43 - 1
)

// Timestamp is one hybrid logical clock reading.
type Timestamp struct {
	Physical int64  // milliseconds since the Unix epoch
	Logical  uint32 // tie-breaker within one physical millisecond
}

// Parse decodes a wire token into a Timestamp. It fails with
// errors.ErrMalformedClock on structural problems or out-of-range values.
func Parse(token string) (Timestamp, error) {
	phys, logical, ok := strings.Cut(token, "-")
	if !ok || phys == "" || logical == "" {
		return Timestamp{}, errors.Wrapf(errors.ErrMalformedClock, "token %q", token)
	}

	p, err := strconv.ParseInt(phys, 10, 64)
	if err != nil {
		return Timestamp{}, errors.Wrapf(errors.ErrMalformedClock, "physical component of %q", token)
	}
	l, err := strconv.ParseUint(logical, 10, 32)
	if err != nil {
		return Timestamp{}, errors.Wrapf(errors.ErrMalformedClock, "logical component of %q", token)
	}

	if p < 0 || p > MaxPhysical {
		return Timestamp{}, errors.Wrapf(errors.ErrMalformedClock, "physical %d out of range", p)
	}
	if l > MaxLogical {
		return Timestamp{}, errors.Wrapf(errors.ErrMalformedClock, "logical %d out of range", l)
	}

	return Timestamp{Physical: p, Logical: uint32(l)}, nil
}

// IsValid reports whether token parses into an in-range timestamp.
func IsValid(token string) bool {
	_, err := Parse(token)
	return err == nil
}

// String renders the wire token.
func (t Timestamp) String() string {
	return fmt.Sprintf("%d-%d", t.Physical, t.Logical)
}

// Key packs the timestamp into a single int64 preserving order:
// Compare(a, b) < 0 iff a.Key() < b.Key() for in-range timestamps.
func (t Timestamp) Key() int64 {
	return t.Physical<<LogicalBits | int64(t.Logical)
}

// Compare returns -1, 0 or 1 ordering a against b lexicographically on
// (physical, logical).
func Compare(a, b Timestamp) int {
	switch {
	case a.Physical < b.Physical:
		return -1
	case a.Physical > b.Physical:
		return 1
	case a.Logical < b.Logical:
		return -1
	case a.Logical > b.Logical:
		return 1
	default:
		return 0
	}
}

// After reports whether a is strictly later than b.
func After(a, b Timestamp) bool {
	return Compare(a, b) > 0
}

// Before reports whether a is strictly earlier than b.
func Before(a, b Timestamp) bool {
	return Compare(a, b) < 0
}
