// Package hostinfo asks the host about the storage a device image will live
// on, so the block size can be matched to the underlying sector size.
package hostinfo

import (
	"fmt"
	"os"
)

// DefaultSectorSize is reported when the host cannot tell.
const DefaultSectorSize = 512

func isBlockDevice(fi os.FileInfo) bool {
	m := fi.Mode()
	return m&os.ModeDevice != 0 && m&os.ModeCharDevice == 0
}

// SectorSize returns the logical sector size of the block device at path.
// For regular files and directories it returns the sector size of the disk
// holding them, or DefaultSectorSize when that disk cannot be identified
// (tmpfs, overlays, network filesystems).
func SectorSize(path string) (uint32, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("unable to stat: %w", err)
	}
	if isBlockDevice(fi) {
		return sectorSize(path)
	}
	return backingSectorSize(path)
}

// MediaSize returns the size in bytes of the block device or regular file at
// path.
func MediaSize(path string) (uint64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("unable to stat: %w", err)
	}
	if !isBlockDevice(fi) {
		return uint64(fi.Size()), nil
	}
	return mediaSize(path)
}
