// Package value implements the NWS data-model Value: an opaque byte
// sequence plus a client-chosen 32-bit type descriptor, either held in
// memory ("short") or backed by a uniquely-named temp file ("long").
package value

import (
	"io"
	"sync"

	"github.com/bigcomputing/nws/internal/wire"
)

// Value is an in-memory or file-backed opaque byte sequence. A long value's
// backing file is owned by exactly one Value; it is removed once the Value
// has been marked consumed and its last transmission to the wire completes
// (or immediately, via Close, when a value is discarded without ever being
// handed to a consumer -- e.g. a Single container replace).
type Value struct {
	// Type is the opaque type descriptor the client attached on store.
	Type uint32

	payload *wire.Payload

	mu       sync.Mutex
	consumed bool
}

// New wraps payload with a type descriptor.
func New(typ uint32, payload *wire.Payload) *Value {
	return &Value{Type: typ, payload: payload}
}

// Len returns the value's byte length.
func (v *Value) Len() int64 { return v.payload.Len }

// IsLong reports whether the value is file-backed.
func (v *Value) IsLong() bool { return v.payload.IsFile() }

// Bytes returns the value's full contents, reading the spill file if
// necessary. Does not affect the consumed/transmitted lifecycle -- callers
// that want the file removed afterward should also call Consume.
func (v *Value) Bytes() ([]byte, error) {
	return v.payload.Bytes()
}

// Consume marks the value as removed from its container. It does not by
// itself delete a backing file: deletion only happens once the value has
// also been fully written to its last consumer (via WriteTo) or the value
// is discarded outright (via Close).
func (v *Value) Consume() {
	v.mu.Lock()
	v.consumed = true
	v.mu.Unlock()
}

// Consumed reports whether Consume has been called.
func (v *Value) Consumed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.consumed
}

// WriteTo streams the value to w, in ChunkSize pieces when file-backed. If
// the value has been marked consumed, the backing file is removed once the
// write attempt finishes, whether it succeeded or was aborted partway
// through -- matching the "on abort, close the file and, if consumed,
// delete it" rule for paused/resumed long-value transmission.
func (v *Value) WriteTo(w io.Writer) (int64, error) {
	n, err := v.payload.WriteTo(w)

	v.mu.Lock()
	consumed := v.consumed
	v.mu.Unlock()

	if consumed {
		v.payload.Remove()
	}

	return n, err
}

// Close immediately discards the value, removing any backing file
// regardless of whether it was ever transmitted. Used when a value is
// replaced without a consumer (Single overwrite) or when its container is
// purged.
func (v *Value) Close() {
	v.Consume()
	v.payload.Remove()
}
