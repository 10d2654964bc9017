package lfsbd

import (
	"bytes"
	"fmt"
	"io"
)

// WriteImage writes every logical block to w in logical order. Blocks that
// were never touched are written as zeros and stay unallocated.
func (d *Device) WriteImage(w io.Writer) error {
	if d.fh == nil {
		return ErrClosed
	}

	bs := int64(d.cfg.BlockSize)
	buf := make([]byte, bs)
	zero := make([]byte, bs)
	for block := uint32(0); block < d.cfg.BlockCount; block++ {
		p := zero
		if slot, ok := d.m.Slot(block); ok {
			err := d.fh.ReadFull(buf, slot*bs)
			if err != nil {
				return fmt.Errorf("unable to read block %d: %w", block, err)
			}
			p = buf
		}
		_, err := w.Write(p)
		if err != nil {
			return fmt.Errorf("unable to write image: %w", err)
		}
	}
	return nil
}

// LoadImage programs the device from a logical image as produced by
// WriteImage. All-zero blocks are skipped so they do not take up a slot.
// At most BlockCount blocks are consumed from r.
func (d *Device) LoadImage(r io.Reader) error {
	if d.fh == nil {
		return ErrClosed
	}

	buf := make([]byte, d.cfg.BlockSize)
	zero := make([]byte, d.cfg.BlockSize)
	for block := uint32(0); block < d.cfg.BlockCount; block++ {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return nil
		} else if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("block %d: %w", block, ErrShortImage)
		} else if err != nil {
			return fmt.Errorf("unable to read image: %w", err)
		}

		if bytes.Equal(buf, zero) {
			continue
		}
		err = d.ProgBlock(block, 0, buf)
		if err != nil {
			return err
		}
	}
	return nil
}
