package lfsbd

import (
	"bytes"
	"errors"
	"testing"
)

func TestImageRoundTrip(t *testing.T) {
	cfg := Config{BlockSize: 64, BlockCount: 8}
	src, _, cleanup := newDevice(t, cfg)
	defer cleanup()

	err := src.ProgBlock(6, 0, []byte("six"))
	if err != nil {
		t.Fatalf("unable to prog: %v", err)
	}
	err = src.ProgBlock(1, 10, []byte("one"))
	if err != nil {
		t.Fatalf("unable to prog: %v", err)
	}
	// allocated but still zero
	err = src.ReadBlock(3, 0, make([]byte, 64))
	if err != nil {
		t.Fatalf("unable to read: %v", err)
	}

	var img bytes.Buffer
	err = src.WriteImage(&img)
	if err != nil {
		t.Fatalf("unable to write image: %v", err)
	}
	if img.Len() != 64*8 {
		t.Fatalf("expected %d image bytes, got %d", 64*8, img.Len())
	}
	if !bytes.Equal(img.Bytes()[6*64:6*64+3], []byte("six")) {
		t.Errorf("block 6 not in logical position")
	}

	// writing the image must not allocate untouched blocks
	s, err := src.Stats()
	if err != nil {
		t.Fatalf("unable to get stats: %v", err)
	}
	if s.Allocated != 3 {
		t.Errorf("expected 3 slots, got %d", s.Allocated)
	}

	dst, _, cleanup2 := newDevice(t, cfg)
	defer cleanup2()

	err = dst.LoadImage(bytes.NewReader(img.Bytes()))
	if err != nil {
		t.Fatalf("unable to load image: %v", err)
	}
	s, err = dst.Stats()
	if err != nil {
		t.Fatalf("unable to get stats: %v", err)
	}
	if s.Allocated != 2 || s.FileSize != 128 {
		t.Errorf("expected 2 slots and 128 bytes, got %d and %d", s.Allocated, s.FileSize)
	}

	b := make([]byte, 3)
	err = dst.ReadBlock(1, 10, b)
	if err != nil {
		t.Fatalf("unable to read: %v", err)
	}
	if string(b) != "one" {
		t.Errorf("expected %q, got %q", "one", b)
	}
}

func TestLoadShortImage(t *testing.T) {
	d, _, cleanup := newDevice(t, Config{BlockSize: 64, BlockCount: 8})
	defer cleanup()

	err := d.LoadImage(bytes.NewReader(bytes.Repeat([]byte{1}, 100)))
	if !errors.Is(err, ErrShortImage) {
		t.Errorf("expected ErrShortImage, got %v", err)
	}
}
