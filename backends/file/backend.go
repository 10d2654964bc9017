// Package file performs byte-range I/O against a single host file that backs
// an emulated block device.
package file

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

type Handle struct {
	path string
	f    *os.File
}

// Create replaces the file at path with a new empty one and opens it for
// reading and writing. Anything that cannot be unlinked, such as a
// directory, is left alone and reported.
func Create(path string) (*Handle, error) {
	_, err := os.Lstat(path)
	if err == nil {
		err = unix.Unlink(path)
		if err != nil {
			return nil, fmt.Errorf("unable to remove existing file: %w", &os.PathError{Op: "unlink", Path: path, Err: err})
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to stat file: %w", err)
	}

	cf, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to create file: %w", err)
	}
	err = cf.Close()
	if err != nil {
		return nil, fmt.Errorf("unable to create file: %w", err)
	}

	return Open(path, os.O_RDWR)
}

// Open opens an existing backing file with the given os.OpenFile flags.
func Open(path string, flag int) (*Handle, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}

	h := &Handle{
		path: path,
		f:    f,
	}
	return h, nil
}

func (h *Handle) Path() string {
	return h.path
}

// Extend writes n zero bytes at off, which is expected to be the end of the
// file. If the write fails the file is cut back to off so a retry starts from
// the same place.
func (h *Handle) Extend(off, n int64) error {
	err := h.WriteFull(make([]byte, n), off)
	if err != nil {
		terr := h.f.Truncate(off)
		if terr != nil {
			terr = fmt.Errorf("unable to roll back extension: %w", terr)
		}
		return multierr.Append(err, terr)
	}
	return nil
}

// ReadFull fills p from offset, looping over short reads.
func (h *Handle) ReadFull(p []byte, offset int64) error {
	_, err := h.f.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("unable to seek: %w", err)
	}

	for len(p) > 0 {
		n, err := h.f.Read(p)
		p = p[n:]
		if err == io.EOF {
			if len(p) == 0 {
				break
			}
			// reads never go past the end of an allocated slot, so this
			// means the file was changed underneath us
			return fmt.Errorf("unable to read: %w", io.ErrUnexpectedEOF)
		} else if err != nil {
			return fmt.Errorf("unable to read: %w", err)
		}
	}

	return nil
}

// WriteFull writes all of p at offset, looping over short writes.
func (h *Handle) WriteFull(p []byte, offset int64) error {
	_, err := h.f.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("unable to seek: %w", err)
	}

	for len(p) > 0 {
		n, err := h.f.Write(p)
		if err != nil {
			return fmt.Errorf("unable to write: %w", err)
		}
		p = p[n:]
	}

	return nil
}

func (h *Handle) Sync() error {
	err := h.f.Sync()
	if err != nil {
		return fmt.Errorf("unable to sync: %w", err)
	}
	return nil
}

// Size is the current size of the file on the host.
func (h *Handle) Size() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("unable to stat file: %w", err)
	}
	return fi.Size(), nil
}

// Close releases the file handle. The file itself stays on disk.
func (h *Handle) Close() error {
	return h.f.Close()
}
