package shmregion

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// fixedCandidateBase is the virtual address every process attempts to map
// the region at. It is chosen well above the heap/stack/mmap arenas a
// typical process already uses, in the same spirit as the original's
// hand-picked constant (spec.md §3: "addresses in the region are raw and
// must be equal across processes").
const fixedCandidateBase = uintptr(0x7f0000000000)

// mmapFixed maps fd's first size bytes at fixedCandidateBase with
// MAP_FIXED|MAP_SHARED|MAP_NORESERVE. golang.org/x/sys/unix's Mmap does not
// expose a caller-chosen address, so the mmap syscall is issued directly —
// the one place in this package that bypasses the package's own wrappers.
func mmapFixed(fd int, size uint64) (unsafe.Pointer, error) {
	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		fixedCandidateBase,
		uintptr(size),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_FIXED|unix.MAP_SHARED|unix.MAP_NORESERVE),
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return nil, serr.ErrFailedAnonymousInit
	}
	if addr != fixedCandidateBase {
		_, _, _ = unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(size), 0)
		return nil, serr.New(serr.KindResource, "Init", "kernel did not honor MAP_FIXED at the requested address")
	}

	base := unsafe.Pointer(addr) //nolint:govet
	if err := unix.Madvise(unsafehelpers.ByteSliceFrom(base, uintptr(size)), unix.MADV_DONTDUMP); err != nil {
		// Best-effort: failing to exclude the region from core dumps is not
		// fatal to correctness, only to crash-dump hygiene.
		_ = err
	}
	return base, nil
}

func munmapFixed(base unsafe.Pointer, size uint64) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, uintptr(base), uintptr(size), 0)
	if errno != 0 {
		return fmt.Errorf("munmap: %w", errno)
	}
	return nil
}
