package elfimage_test

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/testelf"
)

func writeFixture(t *testing.T, opts testelf.Options) string {
	t.Helper()
	data := testelf.Build(opts)
	path := filepath.Join(t.TempDir(), "lib.so")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpenParsesHeader(t *testing.T) {
	path := writeFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x100,
		Symbols:  []testelf.Symbol{{Name: "widget_init", Value: 0x10}},
	})

	f, err := elfimage.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.ELF.Machine != elf.EM_X86_64 {
		t.Errorf("Machine = %v, want EM_X86_64", f.ELF.Machine)
	}
	if f.ELF.Type != elf.ET_DYN {
		t.Errorf("Type = %v, want ET_DYN", f.ELF.Type)
	}
	if f.Path() != path {
		t.Errorf("Path() = %q, want %q", f.Path(), path)
	}
	if f.Size() == 0 {
		t.Error("Size() = 0")
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.so")
	if err := os.WriteFile(path, []byte("not an elf file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := elfimage.Open(path); err == nil {
		t.Fatal("expected error opening non-ELF file")
	}
}

func TestIdentify(t *testing.T) {
	path := writeFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x100,
	})
	f, err := elfimage.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	magic, err := elfimage.Identify[[4]byte](f, 0)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	want := [4]byte{0x7f, 'E', 'L', 'F'}
	if magic != want {
		t.Errorf("Identify = %v, want %v", magic, want)
	}
}

func TestBytesOutOfBounds(t *testing.T) {
	path := writeFixture(t, testelf.Options{
		Machine:  uint16(elf.EM_X86_64),
		DataSize: 0x100,
	})
	f, err := elfimage.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, err := f.Bytes(uint64(f.Size()), 16); err == nil {
		t.Error("expected out-of-bounds error")
	}
}

func TestTrimVersion(t *testing.T) {
	cases := map[string]string{
		"open":        "open",
		"open@LIBC":   "open",
		"open@@LIBC":  "open",
		"":            "",
	}
	for in, want := range cases {
		if got := elfimage.TrimVersion(in); got != want {
			t.Errorf("TrimVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
