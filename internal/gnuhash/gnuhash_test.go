package gnuhash_test

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/gnuhash"
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

func TestLookupResolvesExports(t *testing.T) {
	f := openFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x100,
		Symbols: []testelf.Symbol{
			{Name: "widget_init", Value: 0x1000},
			{Name: "widget_free", Value: 0x1040},
			{Name: "widget_render", Value: 0x1080},
		},
	})

	tbl, err := gnuhash.Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, tc := range []struct {
		name string
		want uint64
	}{
		{"widget_init", 0x1000},
		{"widget_free", 0x1040},
		{"widget_render", 0x1080},
	} {
		got, err := tbl.Lookup(tc.name)
		if err != nil {
			t.Errorf("Lookup(%q): %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Lookup(%q) = %#x, want %#x", tc.name, got, tc.want)
		}
	}
}

func TestLookupMissingSymbol(t *testing.T) {
	f := openFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x100,
		Symbols:  []testelf.Symbol{{Name: "widget_init", Value: 0x1000}},
	})
	tbl, err := gnuhash.Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := tbl.Lookup("does_not_exist"); err != gnuhash.ErrNotFound {
		t.Errorf("Lookup(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLookupStripsVersionSuffix(t *testing.T) {
	f := openFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x100,
		Symbols:  []testelf.Symbol{{Name: "widget_init", Value: 0x1000}},
	})
	tbl, err := gnuhash.Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := tbl.Lookup("widget_init@@WIDGET_1.0")
	if err != nil {
		t.Fatalf("Lookup with version suffix: %v", err)
	}
	if got != 0x1000 {
		t.Errorf("Lookup = %#x, want 0x1000", got)
	}
}

func TestHashMatchesGNUFormula(t *testing.T) {
	// h=5381; h=h*33+c for each byte.
	want := uint32(5381)
	for _, c := range []byte("open") {
		want = want*33 + uint32(c)
	}
	if got := gnuhash.Hash("open"); got != want {
		t.Errorf("Hash(open) = %#x, want %#x", got, want)
	}
}
