package lfsbd

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/kochman/lfsbd/backends/file"
	"github.com/kochman/lfsbd/blockmap"
)

// Device is a BlockDevice backed by a single host file. It is not safe for
// concurrent use; callers serialize access.
type Device struct {
	cfg Config
	fh  *file.Handle
	m   *blockmap.Map
}

var _ BlockDevice = (*Device)(nil)

// Create removes any file at path, creates an empty one in its place and
// returns a device that grows it on demand.
func Create(path string, cfg Config) (*Device, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	fh, err := file.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create backing file: %w", err)
	}

	d := &Device{
		cfg: cfg,
		fh:  fh,
		m:   blockmap.New(int64(cfg.BlockSize), cfg.BlockCount),
	}
	if glog.V(1) {
		glog.Infof("lfsbd: created %s (block size %d, block count %d)", path, cfg.BlockSize, cfg.BlockCount)
	}
	return d, nil
}

// Destroy closes the backing file and drops the block map. The file stays on
// the host filesystem.
func (d *Device) Destroy() error {
	if d.fh == nil {
		return ErrClosed
	}
	path := d.fh.Path()
	err := d.fh.Close()
	d.fh = nil
	d.m = nil
	if err != nil {
		return fmt.Errorf("unable to close backing file: %w", err)
	}
	if glog.V(1) {
		glog.Infof("lfsbd: closed %s", path)
	}
	return nil
}

func (d *Device) Config() Config {
	return d.cfg
}

func (d *Device) checkRange(op string, block, offset uint32, n int) {
	if block >= d.cfg.BlockCount {
		panic(fmt.Sprintf("lfsbd: %s of block %d, block count is %d", op, block, d.cfg.BlockCount))
	}
	if uint64(offset)+uint64(n) > uint64(d.cfg.BlockSize) {
		panic(fmt.Sprintf("lfsbd: %s of %d bytes at offset %d overruns block size %d", op, n, offset, d.cfg.BlockSize))
	}
}

func (d *Device) ReadBlock(block, offset uint32, p []byte) error {
	d.checkRange("read", block, offset, len(p))
	if d.fh == nil {
		return ErrClosed
	}

	pos, err := d.m.Resolve(block, d.fh)
	if err != nil {
		return err
	}

	err = d.fh.ReadFull(p, pos+int64(offset))
	if err != nil {
		return fmt.Errorf("unable to read block %d: %w", block, err)
	}
	if glog.V(3) {
		glog.Infof("lfsbd: read block %d offset %d size %d", block, offset, len(p))
	}
	return nil
}

func (d *Device) ProgBlock(block, offset uint32, p []byte) error {
	d.checkRange("prog", block, offset, len(p))
	if d.fh == nil {
		return ErrClosed
	}

	pos, err := d.m.Resolve(block, d.fh)
	if err != nil {
		return err
	}

	err = d.fh.WriteFull(p, pos+int64(offset))
	if err != nil {
		return fmt.Errorf("unable to prog block %d: %w", block, err)
	}
	if glog.V(3) {
		glog.Infof("lfsbd: prog block %d offset %d size %d", block, offset, len(p))
	}
	return nil
}

// EraseBlock does nothing. The mapping and the bytes of an erased block are
// left as they were; the filesystem keeps track of what it has erased.
func (d *Device) EraseBlock(block uint32) error {
	d.checkRange("erase", block, 0, 0)
	if d.fh == nil {
		return ErrClosed
	}
	return nil
}

// Sync flushes the backing file to stable storage.
func (d *Device) Sync() error {
	if d.fh == nil {
		return ErrClosed
	}
	return d.fh.Sync()
}

type Stats struct {
	BlockSize  uint32
	BlockCount uint32
	// Allocated is the number of physical slots handed out.
	Allocated int64
	// FileSize is the size of the backing file as reported by the host.
	FileSize int64
}

func (d *Device) Stats() (Stats, error) {
	if d.fh == nil {
		return Stats{}, ErrClosed
	}
	size, err := d.fh.Size()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{
		BlockSize:  d.cfg.BlockSize,
		BlockCount: d.m.Cap(),
		Allocated:  d.m.Len(),
		FileSize:   size,
	}
	return s, nil
}
