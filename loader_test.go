package andromap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nsoload/andromap"
	"github.com/nsoload/andromap/internal/hostabi"
	"github.com/nsoload/andromap/internal/reloc"
	"github.com/nsoload/andromap/internal/testelf"
)

func writeFixture(t *testing.T, opts testelf.Options) string {
	t.Helper()
	data := testelf.Build(opts)
	path := filepath.Join(t.TempDir(), "libtest.so")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpenLibraryResolvesHostSymbolAndExport(t *testing.T) {
	arch, err := reloc.HostArch()
	if err != nil {
		t.Skipf("unsupported host arch: %v", err)
	}

	path := writeFixture(t, testelf.Options{
		Machine:  uint16(arch.Machine),
		DataSize: 0x1000,
		Symbols: []testelf.Symbol{
			{Name: "malloc", Value: 0}, // GLOB_DAT target; testelf also lists it in .gnu.hash
			{Name: "widget_entry", Value: 0x300},
		},
		Relocs: []testelf.Reloc{
			{Offset: 0x200, Sym: 1, Type: arch.GlobDat, Addend: 0},
		},
	})

	lib, err := andromap.OpenLibrary(path)
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()

	if lib.ID.String() == "" {
		t.Error("LoadedLibrary.ID is empty")
	}

	addr, err := lib.LoadSymbol("widget_entry")
	if err != nil {
		t.Fatalf("LoadSymbol(widget_entry): %v", err)
	}
	if addr == 0 {
		t.Error("LoadSymbol(widget_entry) = 0")
	}

	if _, ok := hostabi.Lookup("malloc"); !ok {
		t.Fatal("hostabi.Lookup(malloc) = not found")
	}
}

func TestOpenLibraryRejectsWrongMachine(t *testing.T) {
	arch, err := reloc.HostArch()
	if err != nil {
		t.Skipf("unsupported host arch: %v", err)
	}
	wrong := uint16(0xbeef)
	if wrong == uint16(arch.Machine) {
		t.Skip("host arch collides with sentinel")
	}
	path := writeFixture(t, testelf.Options{Machine: wrong, DataSize: 0x100})

	if _, err := andromap.OpenLibrary(path); err == nil {
		t.Fatal("expected an error opening a mismatched-architecture library")
	}
}

func TestLoadSymbolMissing(t *testing.T) {
	arch, err := reloc.HostArch()
	if err != nil {
		t.Skipf("unsupported host arch: %v", err)
	}
	path := writeFixture(t, testelf.Options{Machine: uint16(arch.Machine), DataSize: 0x100})

	lib, err := andromap.OpenLibrary(path)
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()

	if _, err := lib.LoadSymbol("nonexistent"); err == nil {
		t.Fatal("expected ErrSymbolNotFound")
	}
}
