package shmregion

import (
	"unsafe"

	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// controlField names each cache-line-padded word on the control page
// (spec.md §3 "Counters and flags").
type controlField int

const (
	fieldHeapTop controlField = iota
	fieldHashtblCount
	fieldDeptblCount
	fieldGlobalCounter
	fieldLogLevel
	fieldSampleRate
	fieldWorkersShouldExit
	fieldAllowRemoves
	fieldAllowDepReads
	fieldWastedHeapBytes
	fieldMasterPID
	numControlFields
)

// controlWord returns a pointer to the given field within the mapped
// region's base.
func controlWord(base unsafe.Pointer, l Layout, f controlField) *uint64 {
	offset := uintptr(l.ControlOffset) + uintptr(f)*cacheLine
	return unsafehelpers.Uint64At(base, offset)
}
