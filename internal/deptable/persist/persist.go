// Package persist implements the optional dependency-table persistence
// sink: a relational snapshot of the in-memory adjacency data, written and
// read through plain SQL rather than any embedded key-value engine. Most
// deployments never touch this package — the in-memory deptable.Table is
// self-sufficient — but long-running analyzer daemons use it to survive a
// full shared-memory region recreation without replaying every edge.
//
// © 2025 shm-substrate authors. MIT License.
package persist

import (
	"context"
	"encoding/binary"
)

// MagicConstant identifies a persisted snapshot as belonging to this
// module's schema, carried over from the original implementation's on-disk
// header so a stale or foreign file is never mistaken for a valid one.
const MagicConstant uint64 = 0xFACEFACEFACEB000

// Sink is the capability interface both persistence backends satisfy. A
// no-op implementation lets callers wire persistence optionally without an
// extra branch at every call site (spec.md §9 "Polymorphism").
//
// UpsertRow/SelectBlob mirror the original implementation's row shape
// exactly: one row per key vertex, whose blob is the concatenation of that
// vertex's successor vertices as 32-bit little-endian integers. Persisting
// a full adjacency list means encoding it with EncodeEdges first.
type Sink interface {
	// WriteHeader stamps the snapshot with MagicConstant and a caller
	// supplied build/version string, replacing any earlier header row.
	WriteHeader(ctx context.Context, buildInfo string) error

	// VerifyHeader reads back the stamped header and reports whether its
	// magic constant matches MagicConstant.
	VerifyHeader(ctx context.Context) (buildInfo string, ok bool, err error)

	// UpsertRow persists key's entire successor blob, replacing whatever
	// was previously stored under key.
	UpsertRow(ctx context.Context, key uint32, blob []byte) error

	// SelectBlob returns the blob stored under key, if any.
	SelectBlob(ctx context.Context, key uint32) (blob []byte, ok bool, err error)

	// Close releases any held resources (a DB connection pool, typically).
	Close() error
}

// EncodeEdges concatenates successor vertices into the blob format
// UpsertRow expects: each vertex as a 32-bit little-endian integer, in the
// given order.
func EncodeEdges(edges []uint32) []byte {
	blob := make([]byte, 4*len(edges))
	for i, v := range edges {
		binary.LittleEndian.PutUint32(blob[i*4:], v)
	}
	return blob
}

// DecodeEdges splits a blob previously produced by EncodeEdges back into
// its successor vertices.
func DecodeEdges(blob []byte) []uint32 {
	if len(blob) == 0 {
		return nil
	}
	edges := make([]uint32, len(blob)/4)
	for i := range edges {
		edges[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}
	return edges
}
