package valuestore

import (
	"encoding/binary"

	"github.com/shmsubstrate/core/internal/serr"
)

// keyHash returns the first 8 bytes of key interpreted as a little-endian
// uint64 (spec.md §4.4 "Hash"). The caller owns the responsibility of
// making that prefix a good digest of the logical key; this store never
// hashes the remaining bytes.
func keyHash(key []byte) (uint64, error) {
	if len(key) < 8 {
		return 0, serr.ErrKeyTooShort
	}
	return binary.LittleEndian.Uint64(key[:8]), nil
}
