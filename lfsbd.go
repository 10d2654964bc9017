// Package lfsbd emulates an erasable block device on top of one regular host
// file, for running flash filesystems such as littlefs in user space.
//
// Logical blocks are mapped lazily onto slots appended to the backing file, so
// the file only ever holds blocks that have been touched.
package lfsbd

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrInvalidConfig = errors.New("invalid device config")
	ErrClosed        = errors.New("device is closed")
	ErrShortImage    = errors.New("image ends in a partial block")
)

// BlockDevice is the contract a block oriented filesystem expects from its
// storage. block must be below the configured block count and
// offset+len(p) must not exceed the block size; breaking either is a
// programming error and panics.
type BlockDevice interface {
	ReadBlock(block, offset uint32, p []byte) error
	ProgBlock(block, offset uint32, p []byte) error
	EraseBlock(block uint32) error
	Sync() error
}

type Config struct {
	// BlockSize is the number of bytes per block.
	BlockSize uint32
	// BlockCount bounds the logical block indices. Blocks are allocated on
	// first use, not up front.
	BlockCount uint32
	// BlockCycles is handed through to the filesystem. -1 disables wear
	// leveling.
	BlockCycles int32
}

func DefaultConfig() Config {
	return Config{
		BlockSize:   512,
		BlockCount:  2048,
		BlockCycles: -1,
	}
}

func (c Config) Validate() error {
	if c.BlockSize == 0 {
		return fmt.Errorf("%w: block size must be positive", ErrInvalidConfig)
	}
	if c.BlockCount == 0 {
		return fmt.Errorf("%w: block count must be positive", ErrInvalidConfig)
	}
	return nil
}

// Errno converts an error returned by a Device into the negative error code
// convention of C block device drivers. nil maps to 0.
func Errno(err error) int {
	if err == nil {
		return 0
	}

	var errno unix.Errno
	switch {
	case errors.As(err, &errno):
		return -int(errno)
	case errors.Is(err, ErrClosed):
		return -int(unix.EBADF)
	case errors.Is(err, ErrInvalidConfig):
		return -int(unix.EINVAL)
	}
	return -int(unix.EIO)
}
