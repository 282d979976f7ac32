// Package valuestore implements the lock-free content-addressable value
// store: an open-addressed hash→heap-address table written concurrently by
// many writers and compacted only by the master (spec.md §4.4).
//
// © 2025 shm-substrate authors. MIT License.
package valuestore

// Codec lets the host turn an opaque value into bytes and back. Put skips
// the codec entirely when the caller's value is already a []byte or string
// — those are stored verbatim as heap.KindString (spec.md §6 "Serializer
// hook": "identify whether a value is already a raw byte string").
type Codec interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, out any) error
}

// rawBytes extracts the raw byte representation of v if it is already a
// byte string, reporting ok=false otherwise (the caller must then use a
// Codec).
func rawBytes(v any) (data []byte, ok bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	default:
		return nil, false
	}
}
