package shmregion

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shmsubstrate/core/internal/serr"
)

// createBackingObject sizes and returns the file descriptor Init maps, plus
// the filesystem path backing it (empty for the anonymous-memfd case). With
// no backingDir it creates an anonymous memfd, failing with
// FailedAnonymousInit if that is unavailable; with a backingDir it creates
// a regular file there instead, first checking the directory has at least
// minAvailBytes free (spec.md §4.1 "Failures").
func createBackingObject(size uint64, backingDir string, minAvailBytes uint64) (fd int, path string, err error) {
	if backingDir == "" {
		memFd, err := unix.MemfdCreate("shm-substrate-region", unix.MFD_CLOEXEC)
		if err != nil {
			return -1, "", serr.ErrFailedAnonymousInit
		}
		if err := unix.Ftruncate(memFd, int64(size)); err != nil {
			_ = unix.Close(memFd)
			return -1, "", serr.New(serr.KindResource, "Init", fmt.Sprintf("ftruncate memfd: %v", err))
		}
		return memFd, "", nil
	}

	if err := checkFreeSpace(backingDir, minAvailBytes); err != nil {
		return -1, "", err
	}

	f, err := os.CreateTemp(backingDir, "shm-substrate-*.region")
	if err != nil {
		return -1, "", serr.New(serr.KindResource, "Init", fmt.Sprintf("create backing file: %v", err))
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return -1, "", serr.New(serr.KindResource, "Init", fmt.Sprintf("truncate backing file: %v", err))
	}
	return int(f.Fd()), f.Name(), nil
}

// checkFreeSpace raises LessThanMinimumAvailable when backingDir's
// filesystem has fewer than minAvailBytes free (spec.md §4.1 "Failures").
func checkFreeSpace(dir string, minAvailBytes uint64) error {
	if minAvailBytes == 0 {
		return nil
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return serr.New(serr.KindResource, "Init", fmt.Sprintf("statfs %s: %v", dir, err))
	}
	avail := stat.Bavail * uint64(stat.Bsize)
	if avail < minAvailBytes {
		return serr.ErrLessThanMinimum.WithSize(int64(avail))
	}
	return nil
}
