// Package gcs stores logical images of block devices in a Google Cloud
// Storage bucket. Each image lives under its own prefix as a manifest plus a
// single image object.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/golang/glog"
	"github.com/kochman/lfsbd"
	"go.uber.org/multierr"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var ErrImageExists = errors.New("image already exists")

// Image is what gets uploaded: a device that can stream itself in logical
// block order. *lfsbd.Device satisfies it.
type Image interface {
	Stats() (lfsbd.Stats, error)
	WriteImage(w io.Writer) error
}

type manifest struct {
	BlockSize  uint32
	BlockCount uint32
	Allocated  int64
}

type Backend struct {
	b *storage.BucketHandle
}

func NewBackend(ctx context.Context, bucket string, opts ...option.ClientOption) (*Backend, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create client: %w", err)
	}

	b := client.Bucket(bucket)
	_, err = b.Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get bucket handle: %w", err)
	}

	backend := &Backend{
		b: b,
	}
	return backend, nil
}

func manifestKey(id string) string {
	return id + "/manifest.json"
}

func imageKey(id string) string {
	return id + "/image"
}

// Upload streams img to the bucket under id. It refuses to overwrite an
// existing image.
func (b *Backend) Upload(ctx context.Context, id string, img Image) error {
	s, err := img.Stats()
	if err != nil {
		return fmt.Errorf("unable to get device stats: %w", err)
	}

	// make sure this doesn't exist
	obj := b.b.Object(manifestKey(id))
	_, err = obj.Attrs(ctx)
	if err == nil {
		return ErrImageExists
	} else if err != storage.ErrObjectNotExist {
		return fmt.Errorf("unable to check for manifest: %w", err)
	}

	// the image goes first so a manifest always points at complete data
	iw := b.b.Object(imageKey(id)).NewWriter(ctx)
	iw.ContentType = "application/octet-stream"
	err = img.WriteImage(iw)
	if err != nil {
		return multierr.Append(fmt.Errorf("unable to write image: %w", err), iw.Close())
	}
	err = iw.Close()
	if err != nil {
		return fmt.Errorf("unable to close image writer: %w", err)
	}

	mw := obj.NewWriter(ctx)
	mw.ContentType = "application/json"
	m := manifest{BlockSize: s.BlockSize, BlockCount: s.BlockCount, Allocated: s.Allocated}
	enc := json.NewEncoder(mw)
	err = enc.Encode(m)
	if err != nil {
		return multierr.Append(fmt.Errorf("unable to write manifest: %w", err), mw.Close())
	}
	err = mw.Close()
	if err != nil {
		return fmt.Errorf("unable to close manifest: %w", err)
	}

	if glog.V(1) {
		glog.Infof("gcs: uploaded %s (%d blocks of %d bytes, %d allocated)", id, s.BlockCount, s.BlockSize, s.Allocated)
	}
	return nil
}

func (b *Backend) manifest(ctx context.Context, id string) (manifest, error) {
	mo, err := b.b.Object(manifestKey(id)).NewReader(ctx)
	if err != nil {
		return manifest{}, fmt.Errorf("unable to get manifest reader: %w", err)
	}
	defer mo.Close()
	m := manifest{}
	dec := json.NewDecoder(mo)
	err = dec.Decode(&m)
	if err != nil {
		return manifest{}, fmt.Errorf("unable to read manifest: %w", err)
	}
	return m, nil
}

// Download creates a device at path with the geometry recorded for id and
// loads the stored image into it. Only non-zero blocks end up allocated.
func (b *Backend) Download(ctx context.Context, id, path string) (*lfsbd.Device, error) {
	// a missing manifest means the upload never finished
	m, err := b.manifest(ctx, id)
	if err != nil {
		return nil, err
	}

	r, err := b.b.Object(imageKey(id)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get image reader: %w", err)
	}
	defer r.Close()

	cfg := lfsbd.DefaultConfig()
	cfg.BlockSize = m.BlockSize
	cfg.BlockCount = m.BlockCount
	d, err := lfsbd.Create(path, cfg)
	if err != nil {
		return nil, err
	}

	err = d.LoadImage(r)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to load image: %w", err), d.Destroy())
	}
	return d, nil
}

// Delete removes every object stored under id.
func (b *Backend) Delete(ctx context.Context, id string) error {
	q := &storage.Query{Prefix: id + "/"}
	err := q.SetAttrSelection([]string{"Name"})
	if err != nil {
		return fmt.Errorf("unable to set attribute selection: %w", err)
	}
	it := b.b.Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return fmt.Errorf("unable to iterate: %w", err)
		}

		obj := b.b.Object(attrs.Name)
		err = obj.Delete(ctx)
		if err != nil {
			return fmt.Errorf("unable to delete [%s]: %w", obj.ObjectName(), err)
		}
	}
	return nil
}
