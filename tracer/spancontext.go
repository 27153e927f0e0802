// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"encoding/binary"
	"encoding/hex"
)

// parseTraceID decodes a hex-encoded trace identifier. Both 128-bit
// (32 digits) and 64-bit (16 digits, stored in the lower half) encodings
// are accepted; anything else is corrupted.
func parseTraceID(v string) ([16]byte, error) {
	var id [16]byte
	switch len(v) {
	case 32:
		b, err := hex.DecodeString(v)
		if err != nil {
			return id, ErrSpanContextCorrupted
		}
		copy(id[:], b)
	case 16:
		b, err := hex.DecodeString(v)
		if err != nil {
			return id, ErrSpanContextCorrupted
		}
		copy(id[8:], b)
	default:
		return id, ErrSpanContextCorrupted
	}
	return id, nil
}

// traceIDFromUint64 places id in the lower half of a 128-bit trace
// identifier, upper half zeroed.
func traceIDFromUint64(id uint64) [16]byte {
	var t [16]byte
	binary.BigEndian.PutUint64(t[8:], id)
	return t
}

// traceIDLower returns the least significant 64 bits of id.
func traceIDLower(id [16]byte) uint64 {
	return binary.BigEndian.Uint64(id[8:])
}
