// Package reloc applies dynamic ELF relocations to a mapped image, patching
// every dynamic reference to a concrete runtime address.
package reloc

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/logging"
	"github.com/nsoload/andromap/internal/segload"
)

// ErrUnsupportedType is returned for any relocation type outside the
// generic RELATIVE/GLOB_DAT/JUMP_SLOT/native-ABS set for the host arch.
type ErrUnsupportedType struct {
	Type uint32
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("reloc: unsupported relocation type: %d", e.Type)
}

// Resolver maps a symbol name to the address that should be patched into
// relocations that reference it, already substituting the host's
// undefined-symbol trampoline for names it doesn't know. The relocator
// never resolves against the loaded library's own exports: self-references
// are represented by RELATIVE relocations, not symbol-indexed ones.
type Resolver func(name string) uintptr

// Apply walks every SHT_REL/SHT_RELA section and patches img in place.
// Relocations within a section are applied in file order; the final image
// state does not depend on order because each relocation writes a distinct
// target word.
func Apply(img *segload.Image, f *elfimage.File, arch Arch, resolve Resolver) error {
	dynsyms, err := f.ELF.DynamicSymbols()
	if err != nil {
		return fmt.Errorf("reloc: read dynamic symbols: %w", err)
	}

	for _, sec := range f.ELF.Sections {
		switch sec.Type {
		case elf.SHT_RELA:
			data, err := sec.Data()
			if err != nil {
				return fmt.Errorf("reloc: read %s: %w", sec.Name, err)
			}
			if err := applyRELA(img, arch, dynsyms, resolve, data, sec.Name); err != nil {
				return err
			}
		case elf.SHT_REL:
			data, err := sec.Data()
			if err != nil {
				return fmt.Errorf("reloc: read %s: %w", sec.Name, err)
			}
			if err := applyREL(img, arch, dynsyms, resolve, data, sec.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func symbolName(dynsyms []elf.Symbol, symIndex uint32) string {
	// debug/elf.DynamicSymbols omits the null symbol at index 0.
	if symIndex == 0 {
		return ""
	}
	idx := int(symIndex) - 1
	if idx < 0 || idx >= len(dynsyms) {
		return ""
	}
	return dynsyms[idx].Name
}

func applyRELA(img *segload.Image, arch Arch, dynsyms []elf.Symbol, resolve Resolver, data []byte, name string) error {
	if arch.is64() {
		const ent = 24 // r_offset, r_info, r_addend: 3x uint64
		for i := 0; i+ent <= len(data); i += ent {
			off := binary.LittleEndian.Uint64(data[i:])
			info := binary.LittleEndian.Uint64(data[i+8:])
			addend := int64(binary.LittleEndian.Uint64(data[i+16:]))
			symIndex := uint32(elf.R_SYM64(info))
			relType := uint32(elf.R_TYPE64(info))
			if err := applyOne(img, arch, dynsyms, resolve, off, symIndex, relType, addend, true); err != nil {
				return fmt.Errorf("%s[%d]: %w", name, i/ent, err)
			}
		}
		return nil
	}
	const ent = 12 // r_offset, r_info, r_addend: 3x uint32
	for i := 0; i+ent <= len(data); i += ent {
		off := uint64(binary.LittleEndian.Uint32(data[i:]))
		info := binary.LittleEndian.Uint32(data[i+4:])
		addend := int64(int32(binary.LittleEndian.Uint32(data[i+8:])))
		symIndex := elf.R_SYM32(info)
		relType := elf.R_TYPE32(info)
		if err := applyOne(img, arch, dynsyms, resolve, off, symIndex, relType, addend, true); err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i/ent, err)
		}
	}
	return nil
}

func applyREL(img *segload.Image, arch Arch, dynsyms []elf.Symbol, resolve Resolver, data []byte, name string) error {
	if arch.is64() {
		const ent = 16 // r_offset, r_info: 2x uint64
		for i := 0; i+ent <= len(data); i += ent {
			off := binary.LittleEndian.Uint64(data[i:])
			info := binary.LittleEndian.Uint64(data[i+8:])
			symIndex := uint32(elf.R_SYM64(info))
			relType := uint32(elf.R_TYPE64(info))
			if err := applyOne(img, arch, dynsyms, resolve, off, symIndex, relType, 0, false); err != nil {
				return fmt.Errorf("%s[%d]: %w", name, i/ent, err)
			}
		}
		return nil
	}
	const ent = 8 // r_offset, r_info: 2x uint32
	for i := 0; i+ent <= len(data); i += ent {
		off := uint64(binary.LittleEndian.Uint32(data[i:]))
		info := binary.LittleEndian.Uint32(data[i+4:])
		symIndex := elf.R_SYM32(info)
		relType := elf.R_TYPE32(info)
		if err := applyOne(img, arch, dynsyms, resolve, off, symIndex, relType, 0, false); err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i/ent, err)
		}
	}
	return nil
}

// applyOne computes S and the addend A and writes the image word at
// r_offset: B+A for RELATIVE, S+A for GLOB_DAT, JUMP_SLOT and native-ABS.
func applyOne(img *segload.Image, arch Arch, dynsyms []elf.Symbol, resolve Resolver, roffset uint64, symIndex, relType uint32, explicitAddend int64, hasAddend bool) error {
	if symIndex == 0 && relType == 0 {
		return nil // symbol index 0 / R_*_NONE is a no-op
	}

	base := img.Base
	wordSize := uint64(8)
	if !arch.is64() {
		wordSize = 4
	}
	word := img.Slice(roffset, wordSize)

	addend := explicitAddend
	switch {
	case hasAddend:
		// RELA: addend is explicit, already set above.
	case relType == arch.Relative:
		// REL RELATIVE: the addend is the in-place word.
		if wordSize == 8 {
			addend = int64(binary.LittleEndian.Uint64(word))
		} else {
			addend = int64(int32(binary.LittleEndian.Uint32(word)))
		}
	default:
		// REL native-ABS (and GLOB_DAT/JUMP_SLOT, which carry none): the
		// addend is forced to zero rather than read from the image, to
		// avoid interpreting an as-yet-unrelocated host pointer as an
		// addend. Asymmetric with the RELATIVE case above, which does read
		// the in-place word; kept deliberately rather than unified.
		addend = 0
	}

	var target int64
	var name string
	switch relType {
	case arch.Relative:
		target = int64(base) + addend
	case arch.GlobDat, arch.JumpSlot, arch.NativeABS:
		name = symbolName(dynsyms, symIndex)
		s := resolve(name)
		target = int64(s) + addend
	case 0:
		return nil
	default:
		return &ErrUnsupportedType{Type: relType}
	}

	if wordSize == 8 {
		binary.LittleEndian.PutUint64(word, uint64(target))
	} else {
		binary.LittleEndian.PutUint32(word, uint32(target))
	}

	log := logging.L
	if log == nil {
		log = logging.NewNop()
	}
	log.WithCategory("reloc").Relocation(kindName(arch, relType), roffset, name)
	return nil
}

// kindName renders a relocation type as the generic kind name it
// implements for this architecture (RELATIVE, GLOB_DAT, JUMP_SLOT,
// NATIVE_ABS), for logging.
func kindName(arch Arch, relType uint32) string {
	switch relType {
	case arch.Relative:
		return "RELATIVE"
	case arch.GlobDat:
		return "GLOB_DAT"
	case arch.JumpSlot:
		return "JUMP_SLOT"
	case arch.NativeABS:
		return "NATIVE_ABS"
	default:
		return "UNKNOWN"
	}
}
