package reloc_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/reloc"
	"github.com/nsoload/andromap/internal/segload"
	"github.com/nsoload/andromap/internal/testelf"
)

func buildImage(t *testing.T, opts testelf.Options) (*elfimage.File, *segload.Image) {
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

	img, err := segload.Build(f)
	if err != nil {
		t.Fatalf("segload.Build: %v", err)
	}
	t.Cleanup(func() { img.Close() })
	return f, img
}

func TestApplyRelative(t *testing.T) {
	arch, err := reloc.HostArch()
	if err != nil {
		t.Skipf("unsupported host arch: %v", err)
	}

	f, img := buildImage(t, testelf.Options{
		Machine:  uint16(arch.Machine),
		DataSize: 0x1000,
		Relocs: []testelf.Reloc{
			{Offset: 0x100, Sym: 0, Type: arch.Relative, Addend: 0x20},
		},
	})

	if err := reloc.Apply(img, f, arch, func(string) uintptr { t.Fatal("resolver should not be called"); return 0 }); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := binary.LittleEndian.Uint64(img.Slice(0x100, 8))
	want := uint64(img.Base) + 0x20
	if got != want {
		t.Errorf("relocated word = %#x, want %#x", got, want)
	}
}

func TestApplyGlobDatResolvesSymbol(t *testing.T) {
	arch, err := reloc.HostArch()
	if err != nil {
		t.Skipf("unsupported host arch: %v", err)
	}

	f, img := buildImage(t, testelf.Options{
		Machine:  uint16(arch.Machine),
		DataSize: 0x1000,
		Symbols:  []testelf.Symbol{{Name: "widget_init", Value: 0x1000}},
		Relocs: []testelf.Reloc{
			{Offset: 0x200, Sym: 1, Type: arch.GlobDat, Addend: 0},
		},
	})

	var resolvedName string
	resolve := func(name string) uintptr {
		resolvedName = name
		return 0xdeadbeef
	}
	if err := reloc.Apply(img, f, arch, resolve); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if resolvedName != "widget_init" {
		t.Errorf("resolver called with %q, want widget_init", resolvedName)
	}
	got := binary.LittleEndian.Uint64(img.Slice(0x200, 8))
	if got != 0xdeadbeef {
		t.Errorf("relocated word = %#x, want 0xdeadbeef", got)
	}
}

func TestApplyUnsupportedType(t *testing.T) {
	arch, err := reloc.HostArch()
	if err != nil {
		t.Skipf("unsupported host arch: %v", err)
	}

	const bogusType = 0xfe
	f, img := buildImage(t, testelf.Options{
		Machine:  uint16(arch.Machine),
		DataSize: 0x1000,
		Relocs: []testelf.Reloc{
			{Offset: 0x100, Sym: 0, Type: bogusType, Addend: 0},
		},
	})

	err = reloc.Apply(img, f, arch, func(string) uintptr { return 0 })
	if err == nil {
		t.Fatal("expected ErrUnsupportedType")
	}
	var unsupported *reloc.ErrUnsupportedType
	if !errors.As(err, &unsupported) {
		t.Errorf("error = %v, want *ErrUnsupportedType", err)
	}
}
