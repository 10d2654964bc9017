// +build linux

package hostinfo

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const sysDevBlock = "/sys/dev/block"

func sectorSize(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("unable to open device: %w", err)
	}
	defer f.Close()

	n, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return 0, fmt.Errorf("unable to get sector size: %w", err)
	}
	return uint32(n), nil
}

func mediaSize(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("unable to open device: %w", err)
	}
	defer f.Close()

	var sz uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&sz)))
	if errno != 0 {
		return 0, fmt.Errorf("unable to get device size: %w", errno)
	}
	return sz, nil
}

func backingSectorSize(path string) (uint32, error) {
	var st unix.Stat_t
	err := unix.Stat(path, &st)
	if err != nil {
		return 0, fmt.Errorf("unable to stat: %w", &os.PathError{Op: "stat", Path: path, Err: err})
	}
	dev := uint64(st.Dev)
	return sysfsSectorSize(sysDevBlock, unix.Major(dev), unix.Minor(dev))
}

// sysfsSectorSize reads queue/logical_block_size for the device major:minor
// under root. Partitions have no queue directory of their own, so the parent
// disk's is used for them.
func sysfsSectorSize(root string, major, minor uint32) (uint32, error) {
	dir, err := filepath.EvalSymlinks(filepath.Join(root, fmt.Sprintf("%d:%d", major, minor)))
	if os.IsNotExist(err) {
		return DefaultSectorSize, nil
	} else if err != nil {
		return 0, fmt.Errorf("unable to resolve device: %w", err)
	}

	for _, d := range []string{dir, filepath.Dir(dir)} {
		b, err := ioutil.ReadFile(filepath.Join(d, "queue", "logical_block_size"))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return 0, fmt.Errorf("unable to read sector size: %w", err)
		}

		n, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("unable to parse sector size: %w", err)
		}
		if n == 0 {
			break
		}
		return uint32(n), nil
	}
	return DefaultSectorSize, nil
}
