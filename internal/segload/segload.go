// Package segload builds a library's image allocation from its ELF program
// headers: a single contiguous, page-aligned, anonymous mapping holding
// every PT_LOAD segment at its correct relative offset, with correct final
// page protections.
package segload

import (
	"debug/elf"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/logging"
)

var (
	// ErrNoLoadSegments is returned when an ELF file has no PT_LOAD entries.
	ErrNoLoadSegments = errors.New("segload: no PT_LOAD segments")
	// ErrOverlappingSegments is returned when two PT_LOAD segments claim
	// overlapping virtual address ranges.
	ErrOverlappingSegments = errors.New("segload: overlapping PT_LOAD segments")
)

// Segment describes one loaded PT_LOAD region, already relocated into the
// image's address space (VAddr is base-relative, not file-relative).
type Segment struct {
	VAddr  uint64 // offset from image base
	Offset uint64 // file offset this segment was copied from
	Filesz uint64
	Memsz  uint64
	Flags  elf.ProgFlag
}

func (s Segment) IsReadable() bool   { return s.Flags&elf.PF_R != 0 }
func (s Segment) IsWritable() bool   { return s.Flags&elf.PF_W != 0 }
func (s Segment) IsExecutable() bool { return s.Flags&elf.PF_X != 0 }

// Image is the single anonymous mapping backing a loaded library.
type Image struct {
	mapping  []byte // the raw mmap region; Munmap target
	Base     uintptr
	Size     uint64
	Segments []Segment
}

func pageFloor(v, pageSize uint64) uint64 { return v &^ (pageSize - 1) }
func pageCeil(v, pageSize uint64) uint64  { return (v + pageSize - 1) &^ (pageSize - 1) }

// Build computes the library's virtual footprint from its PT_LOAD program
// headers, allocates a zero-filled anonymous mapping sized to cover it, and
// copies each segment's file contents into place. Protections are left
// read+write on every page at this point; ApplyProtections tightens them to
// the final p_flags state once the relocator is done patching the image
// (the relocator needs write access, so protections are applied in two
// passes rather than per-segment immediately — see ApplyProtections).
func Build(f *elfimage.File) (*Image, error) {
	log := logging.L
	if log == nil {
		log = logging.NewNop()
	}
	log = log.WithCategory("segload")

	pageSize := uint64(unix.Getpagesize())

	var progs []elf.Prog
	for _, p := range f.ELF.Progs {
		if p.Type == elf.PT_LOAD {
			progs = append(progs, *p)
		}
	}
	if len(progs) == 0 {
		return nil, ErrNoLoadSegments
	}

	minV := ^uint64(0)
	maxM := uint64(0)
	for _, p := range progs {
		if p.Vaddr < minV {
			minV = p.Vaddr
		}
		if end := p.Vaddr + p.Memsz; end > maxM {
			maxM = end
		}
	}
	if err := checkOverlaps(progs); err != nil {
		return nil, err
	}

	alignedMin := pageFloor(minV, pageSize)
	alignedMax := pageCeil(maxM, pageSize)
	size := alignedMax - alignedMin

	mapping, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("segload: mmap image (%d bytes): %w", size, err)
	}

	img := &Image{mapping: mapping, Base: base(mapping), Size: size}

	for _, p := range progs {
		dstOff := p.Vaddr - alignedMin
		if p.Filesz > 0 {
			src, err := f.Bytes(p.Off, p.Filesz)
			if err != nil {
				_ = unix.Munmap(mapping)
				return nil, fmt.Errorf("segload: read segment at file offset %#x: %w", p.Off, err)
			}
			copy(mapping[dstOff:dstOff+p.Filesz], src)
		}
		// Bytes beyond Filesz but within Memsz are already zero: the
		// mapping came back zero-filled from the kernel.
		img.Segments = append(img.Segments, Segment{
			VAddr:  dstOff,
			Offset: p.Off,
			Filesz: p.Filesz,
			Memsz:  p.Memsz,
			Flags:  p.Flags,
		})
		log.Segment(dstOff, p.Memsz, flagString(p.Flags))
	}

	return img, nil
}

// ApplyProtections sets each segment's final page protection to exactly
// the union of p_flags bits. Must be called only after the relocator has
// finished patching the image, since this may remove write access.
func (img *Image) ApplyProtections() error {
	pageSize := uint64(unix.Getpagesize())
	for _, s := range img.Segments {
		start := pageFloor(s.VAddr, pageSize)
		end := pageCeil(s.VAddr+s.Memsz, pageSize)
		region := img.mapping[start:end]
		if err := unix.Mprotect(region, progFlagsToProt(s.Flags)); err != nil {
			return fmt.Errorf("segload: mprotect [%#x,%#x): %w", start, end, err)
		}
	}
	return nil
}

// Slice returns the image bytes covering [off, off+n).
func (img *Image) Slice(off, n uint64) []byte {
	return img.mapping[off : off+n]
}

// Close releases the image mapping. Callers must not dereference any
// pointer into the image after Close returns.
func (img *Image) Close() error {
	if img.mapping == nil {
		return nil
	}
	err := unix.Munmap(img.mapping)
	img.mapping = nil
	return err
}

func progFlagsToProt(flags elf.ProgFlag) int {
	prot := unix.PROT_NONE
	if flags&elf.PF_R != 0 {
		prot |= unix.PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= unix.PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

// flagString renders p_flags the way readelf/objdump do: "R", "RW", "RWE".
func flagString(flags elf.ProgFlag) string {
	s := ""
	if flags&elf.PF_R != 0 {
		s += "R"
	}
	if flags&elf.PF_W != 0 {
		s += "W"
	}
	if flags&elf.PF_X != 0 {
		s += "E"
	}
	return s
}

func checkOverlaps(progs []elf.Prog) error {
	for i := range progs {
		for j := i + 1; j < len(progs); j++ {
			a, b := progs[i], progs[j]
			aEnd, bEnd := a.Vaddr+a.Memsz, b.Vaddr+b.Memsz
			if a.Vaddr < bEnd && b.Vaddr < aEnd {
				return fmt.Errorf("%w: [%#x,%#x) and [%#x,%#x)", ErrOverlappingSegments, a.Vaddr, aEnd, b.Vaddr, bEnd)
			}
		}
	}
	return nil
}
