package segload_test

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/segload"
	"github.com/nsoload/andromap/internal/testelf"
)

func openFixture(t *testing.T, opts testelf.Options) *elfimage.File {
	t.Helper()
	data := testelf.Build(opts)
	path := filepath.Join(t.TempDir(), "lib.so")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := elfimage.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestBuildMapsSingleLoadSegment(t *testing.T) {
	f := openFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x2000,
	})

	img, err := segload.Build(f)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer img.Close()

	if len(img.Segments) != 1 {
		t.Fatalf("Segments = %d, want 1", len(img.Segments))
	}
	if img.Size < 0x2000 {
		t.Errorf("Size = %#x, want >= 0x2000", img.Size)
	}
	if img.Base == 0 {
		t.Error("Base is zero")
	}
}

func TestSliceReadWrite(t *testing.T) {
	f := openFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x1000,
	})
	img, err := segload.Build(f)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer img.Close()

	w := img.Slice(0, 8)
	copy(w, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	r := img.Slice(0, 8)
	for i, b := range r {
		if b != byte(i+1) {
			t.Errorf("byte %d = %d, want %d", i, b, i+1)
		}
	}
}

func TestApplyProtectionsThenCloseIsClean(t *testing.T) {
	f := openFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x1000,
	})
	img, err := segload.Build(f)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := img.ApplyProtections(); err != nil {
		t.Fatalf("ApplyProtections: %v", err)
	}
	if err := img.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
