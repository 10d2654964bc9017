// Command lfsbd creates a file backed block device, exercises it with a timed
// write and read-back pass, and optionally exports the result to GCS.
package main

import (
	"bytes"
	"context"
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/kochman/lfsbd"
	"github.com/kochman/lfsbd/backends/gcs"
	"github.com/kochman/lfsbd/internal/hostinfo"
	flag "github.com/spf13/pflag"
	"go.uber.org/multierr"
)

func main() {
	cfg := lfsbd.DefaultConfig()

	path := flag.String("path", "lfsbd.img", "backing file; replaced if it exists")
	blockSize := flag.Uint32("block-size", 0, "bytes per block; 0 uses the host sector size")
	flag.Uint32Var(&cfg.BlockCount, "block-count", cfg.BlockCount, "number of logical blocks")
	blocks := flag.Uint32("blocks", 64, "number of blocks to write in the workload")
	stride := flag.Uint32("stride", 7, "distance between logical blocks touched by the workload")
	bucket := flag.String("gcs-bucket", "", "export the image to this bucket when set")
	id := flag.String("image-id", "lfsbd", "object prefix for the exported image")
	device := flag.String("device", "", "block device to take the sector size and capacity from; defaults to the disk holding --path")
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	defer glog.Flush()

	host := *device
	if host == "" {
		host = filepath.Dir(*path)
	}

	cfg.BlockSize = *blockSize
	if cfg.BlockSize == 0 {
		ss, err := hostinfo.SectorSize(host)
		if err != nil {
			glog.Errorf("unable to get sector size: %v", err)
			os.Exit(1)
		}
		cfg.BlockSize = ss
	}

	// never expose more blocks than the named device could hold
	if *device != "" {
		ms, err := hostinfo.MediaSize(*device)
		if err != nil {
			glog.Errorf("unable to get media size: %v", err)
			os.Exit(1)
		}
		if n := ms / uint64(cfg.BlockSize); n < uint64(cfg.BlockCount) {
			glog.Infof("clamping block count from %d to %d to fit %s", cfg.BlockCount, n, *device)
			cfg.BlockCount = uint32(n)
		}
	}

	d, err := lfsbd.Create(*path, cfg)
	if err != nil {
		glog.Errorf("unable to create device: %v", err)
		os.Exit(1)
	}

	err = run(d, *blocks, *stride, *bucket, *id)
	if err != nil {
		glog.Errorf("%v", multierr.Append(err, d.Destroy()))
		os.Exit(1)
	}

	err = d.Destroy()
	if err != nil {
		glog.Errorf("unable to destroy device: %v", err)
		os.Exit(1)
	}
}

func run(d *lfsbd.Device, blocks, stride uint32, bucket, id string) error {
	cfg := d.Config()
	if blocks > cfg.BlockCount {
		blocks = cfg.BlockCount
	}
	if stride == 0 {
		stride = 1
	}

	// stride through the logical space so slot order differs from block order
	order := make([]uint32, 0, blocks)
	seen := make(map[uint32]bool, blocks)
	b := uint32(0)
	for uint32(len(order)) < blocks {
		for seen[b] {
			b = (b + 1) % cfg.BlockCount
		}
		seen[b] = true
		order = append(order, b)
		b = (b + stride) % cfg.BlockCount
	}

	pattern := func(block uint32) []byte {
		p := make([]byte, cfg.BlockSize)
		for i := range p {
			p[i] = byte(block) ^ byte(i)
		}
		return p
	}

	start := time.Now()
	for _, b := range order {
		err := d.ProgBlock(b, 0, pattern(b))
		if err != nil {
			return fmt.Errorf("unable to prog block %d: %w (errno %d)", b, err, lfsbd.Errno(err))
		}
	}
	err := d.Sync()
	if err != nil {
		return fmt.Errorf("unable to sync: %w", err)
	}
	glog.Infof("wrote %d blocks in %v", len(order), time.Since(start))

	start = time.Now()
	p := make([]byte, cfg.BlockSize)
	for _, b := range order {
		err := d.ReadBlock(b, 0, p)
		if err != nil {
			return fmt.Errorf("unable to read block %d: %w (errno %d)", b, err, lfsbd.Errno(err))
		}
		if !bytes.Equal(p, pattern(b)) {
			return fmt.Errorf("block %d read back wrong data", b)
		}
	}
	glog.Infof("read back %d blocks in %v", len(order), time.Since(start))

	s, err := d.Stats()
	if err != nil {
		return fmt.Errorf("unable to get stats: %w", err)
	}
	fmt.Printf("block size %d, block count %d, allocated %d, file size %d\n",
		s.BlockSize, s.BlockCount, s.Allocated, s.FileSize)

	if bucket == "" {
		return nil
	}
	ctx := context.Background()
	g, err := gcs.NewBackend(ctx, bucket)
	if err != nil {
		return fmt.Errorf("unable to create gcs backend: %w", err)
	}
	err = g.Upload(ctx, id, d)
	if err != nil {
		return fmt.Errorf("unable to export image: %w", err)
	}
	glog.Infof("exported image to gs://%s/%s", bucket, id)
	return nil
}
