// Package unsafehelpers centralises **all** unavoidable usage of the
// `unsafe` standard-library package so that the rest of shm-substrate stays
// clean and easier to audit. Every helper is documented with clear pre-/post-
// conditions.
//
// ⚠️  DISCLAIMER  These helpers deliberately break the Go memory-safety
// model so that raw addresses inside a memory-mapped shared region can be
// read and written without copying through the Go allocator. Use ONLY
// inside this repository; they are not part of the public API and may
// change without notice. Misuse will lead to subtle data races or memory
// corruption — the shared region is outside the Go garbage collector's
// view entirely.
//
// All functions are go:linkname-free, cgo-free and pure Go.
//
// © 2025 shm-substrate authors. MIT License.
package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a mutable byte slice to an immutable string without
// allocating. The caller must guarantee that b will never be modified for
// the lifetime of the resulting string; otherwise the program exhibits
// undefined behaviour.
//
// Typical use inside shm-substrate: hashing a key prefix without copying.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes re-interprets string data as a byte slice without copying.
// The slice MUST remain read-only; writing to it mutates immutable string
// storage and will crash in future Go versions.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

/* -------------------------------------------------------------------------
   2. Generic pointer <-> slice helpers for the mapped region
   ------------------------------------------------------------------------- */

// PtrSlice converts an arbitrary *T pointer + element count into a []T
// without copying. Used to treat a run of region-resident slots as a slice
// for iteration (the dep table, the value hashtable).
func PtrSlice[T any](ptr *T, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice(ptr, n)
}

// ByteSliceFrom returns a []byte view of raw memory starting at ptr with the
// given length. Caller must ensure the memory block is at least length
// bytes. Used for viewing heap entry payloads by address.
func ByteSliceFrom(ptr unsafe.Pointer, length uintptr) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), length)
}

// Uint64At reinterprets the 8 bytes at base+offset as *uint64, for atomic
// access to a control-page word or a heap/hashtable slot field.
func Uint64At(base unsafe.Pointer, offset uintptr) *uint64 {
	return (*uint64)(unsafe.Add(base, offset))
}

// Uint32At reinterprets the 4 bytes at base+offset as *uint32.
func Uint32At(base unsafe.Pointer, offset uintptr) *uint32 {
	return (*uint32)(unsafe.Add(base, offset))
}

/* -------------------------------------------------------------------------
   3. Alignment helpers
   ------------------------------------------------------------------------- */

// AlignUp rounds x up to the nearest multiple of align (which must be a
// power of two). Used to round heap entry sizes up to the cache line.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}
