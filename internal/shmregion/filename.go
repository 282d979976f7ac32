package shmregion

import (
	"encoding/binary"
	"unsafe"

	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// writeFilenamePage records the backing object's path directly in the
// region's reserved filename page (spec.md §2 "Filename page": "path of
// the backing persistence file"), so a process holding only the mapped
// region — no Handle — can recover which file backs it. The page is an
// 8-byte little-endian length prefix followed by the path bytes; an
// anonymous memfd-backed region (path=="") writes a zero length.
func writeFilenamePage(base unsafe.Pointer, layout Layout, path string) error {
	if uint64(len(path)) > filenamePageBytes-8 {
		return serr.New(serr.KindContract, "Init", "backing path too long for filename page")
	}
	page := unsafehelpers.ByteSliceFrom(unsafe.Add(base, layout.FilenameOffset), filenamePageBytes)
	binary.LittleEndian.PutUint64(page, uint64(len(path)))
	copy(page[8:], path)
	return nil
}

// readFilenamePage returns the path previously recorded by
// writeFilenamePage, or "" for an anonymous memfd-backed region.
func readFilenamePage(base unsafe.Pointer, layout Layout) string {
	page := unsafehelpers.ByteSliceFrom(unsafe.Add(base, layout.FilenameOffset), filenamePageBytes)
	n := binary.LittleEndian.Uint64(page)
	if n == 0 || n > filenamePageBytes-8 {
		return ""
	}
	return string(page[8 : 8+n])
}
