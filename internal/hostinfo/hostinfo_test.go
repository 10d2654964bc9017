package hostinfo

import (
	"io/ioutil"
	"os"
	"path"
	"testing"
)

func TestRegularFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "lfsbd-hostinfo-")
	if err != nil {
		t.Fatalf("unable to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	p := path.Join(dir, "image")
	err = ioutil.WriteFile(p, make([]byte, 3000), 0644)
	if err != nil {
		t.Fatalf("unable to write file: %v", err)
	}

	// whatever disk holds the temp dir, the answer is a power of two
	for _, q := range []string{p, dir} {
		ss, err := SectorSize(q)
		if err != nil {
			t.Fatalf("unable to get sector size of %s: %v", q, err)
		}
		if ss < DefaultSectorSize || ss&(ss-1) != 0 {
			t.Errorf("%s: unexpected sector size %d", q, ss)
		}
	}

	ms, err := MediaSize(p)
	if err != nil {
		t.Fatalf("unable to get media size: %v", err)
	}
	if ms != 3000 {
		t.Errorf("expected 3000, got %d", ms)
	}
}

func TestMissing(t *testing.T) {
	_, err := SectorSize("/nonexistent-lfsbd-path")
	if err == nil {
		t.Errorf("expected error for missing path")
	}
	_, err = MediaSize("/nonexistent-lfsbd-path")
	if err == nil {
		t.Errorf("expected error for missing path")
	}
}
