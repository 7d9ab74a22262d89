// Package elfimage memory-maps an ELF file and reinterprets byte ranges as
// typed structures. It is the loader's only direct file I/O surface:
// everything above it — segment layout, relocation, symbol lookup — reads
// through the mapping this package returns.
package elfimage

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotELF is returned when the file does not start with the ELF magic.
	ErrNotELF = errors.New("elfimage: not an ELF file")
	// ErrWordSizeMismatch is returned when the file's class does not match
	// the word size this build was compiled for.
	ErrWordSizeMismatch = errors.New("elfimage: ELF class does not match host word size")
	// ErrOutOfBounds is returned by Identify/IdentifyArray on a short read.
	ErrOutOfBounds = errors.New("elfimage: offset out of bounds")
)

// hostClass is the ELF class this build supports, selected by word size.
// Cross-word-size loading is not supported: a 32-bit host only loads
// ELFCLASS32 images, a 64-bit host only ELFCLASS64.
var hostClass = func() elf.Class {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		return elf.ELFCLASS64
	}
	return elf.ELFCLASS32
}()

// File is a read-only memory-mapped view of an ELF file. It stays mapped for
// the lifetime of any LoadedLibrary built from it. The section headers,
// string tables, symbol table and GNU hash table are read out of this
// mapping through debug/elf and Bytes.
type File struct {
	path string
	data []byte // mmap'd, PROT_READ, MAP_PRIVATE
	ELF  *elf.File
}

// Open memory-maps path read-only and parses it as an ELF file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfimage: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("elfimage: stat %s: %w", path, err)
	}
	size := info.Size()
	if size < int64(len(elf.ELFMAG)) {
		return nil, fmt.Errorf("%w: %s is too small", ErrNotELF, path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("elfimage: mmap %s: %w", path, err)
	}

	ef, err := elf.NewFile(newReaderAt(data))
	if err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	if ef.Class != hostClass {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("%w: file is %s, host is %s", ErrWordSizeMismatch, ef.Class, hostClass)
	}

	return &File{path: path, data: data, ELF: ef}, nil
}

// Close unmaps the file. Callers must not retain slices obtained from
// Identify/IdentifyArray/Bytes after Close returns.
func (f *File) Close() error {
	if f.data == nil {
		return nil
	}
	err := unix.Munmap(f.data)
	f.data = nil
	return err
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Size returns the mapped file size in bytes.
func (f *File) Size() int { return len(f.data) }

// Bytes returns the raw mapped bytes in [off, off+n). The returned slice
// aliases the mapping and must not be retained past Close.
func (f *File) Bytes(off, n uint64) ([]byte, error) {
	end := off + n
	if n > 0 && (end < off || end > uint64(len(f.data))) {
		return nil, fmt.Errorf("%w: [%#x, %#x) in %d-byte file", ErrOutOfBounds, off, end, len(f.data))
	}
	return f.data[off:end], nil
}

// ByteOrder returns the file's declared endianness.
func (f *File) ByteOrder() binary.ByteOrder { return f.ELF.ByteOrder }

// Identify reads a value of type T from [offset, offset+sizeof(T)).
func Identify[T any](f *File, offset uint64) (T, error) {
	var zero T
	size := uint64(unsafe.Sizeof(zero))
	b, err := f.Bytes(offset, size)
	if err != nil {
		return zero, err
	}
	return *(*T)(unsafe.Pointer(&b[0])), nil
}

// IdentifyArray reads count values of type T starting at offset.
func IdentifyArray[T any](f *File, offset uint64, count uint64) ([]T, error) {
	var zero T
	elemSize := uint64(unsafe.Sizeof(zero))
	if count == 0 {
		return nil, nil
	}
	total := elemSize * count
	if total/elemSize != count {
		return nil, fmt.Errorf("%w: element count overflow", ErrOutOfBounds)
	}
	b, err := f.Bytes(offset, total)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), count), nil
}

// OffsetForAddr translates a virtual address to a file offset using the
// PT_LOAD segment that covers it. Useful for diagnostics that want to show
// which file region backed a relocation target or symbol value.
func (f *File) OffsetForAddr(vaddr uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if vaddr >= p.Vaddr && vaddr < p.Vaddr+p.Memsz {
			off := vaddr - p.Vaddr + p.Off
			if off >= uint64(len(f.data)) {
				return 0, fmt.Errorf("%w: VA %#x maps past end of file", ErrOutOfBounds, vaddr)
			}
			return off, nil
		}
	}
	return 0, fmt.Errorf("elfimage: no PT_LOAD segment covers VA %#x", vaddr)
}

// TrimVersion strips a symbol version suffix ("@VERSION" or "@@VERSION"),
// the way the dynamic linker matches a relocation's symbol name against an
// unversioned export when no explicit version node applies.
func TrimVersion(name string) string {
	if i := strings.IndexByte(name, '@'); i >= 0 {
		return name[:i]
	}
	return name
}

// readerAt adapts a byte slice to io.ReaderAt without copying, so
// debug/elf.NewFile reads directly out of the mmap'd region.
type readerAt struct {
	b []byte
}

func newReaderAt(b []byte) *readerAt { return &readerAt{b: b} }

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.b)) {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfBounds, off)
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("elfimage: short read at %d", off)
	}
	return n, nil
}
