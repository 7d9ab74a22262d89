// Package testelf builds minimal, real ET_DYN ELF64 images in memory for
// tests. No Android `.so` fixtures are available in this environment, so
// every package's tests construct their own byte-exact input here instead,
// mirroring the hand-built minimal-ELF fixtures used elsewhere for
// relocation and symbol-table testing.
package testelf

import (
	"bytes"
	"encoding/binary"
)

// Symbol is one exported dynamic symbol.
type Symbol struct {
	Name  string
	Value uint64
}

// Reloc is one RELA relocation entry.
type Reloc struct {
	Offset uint64
	Sym    uint32 // 1-based index into Symbols, or 0 for none (e.g. RELATIVE)
	Type   uint32
	Addend int64
}

// Options configures a synthetic library image.
type Options struct {
	Machine uint16 // elf.EM_* value
	// DataSize is the size of the single PT_LOAD segment every Reloc.Offset
	// is relative to. Segment content starts zero-filled.
	DataSize uint64
	Symbols  []Symbol
	Relocs   []Reloc
}

const (
	ehSize   = 64
	phSize   = 56
	shSize   = 64
	symSize  = 24 // Elf64_Sym
	relaSize = 24 // Elf64_Rela
)

// Build assembles a little-endian ELF64 ET_DYN image implementing opts: one
// PT_LOAD segment, a .dynsym/.dynstr pair, a single-bucket .gnu.hash table
// covering every symbol, and a .rela.dyn section.
func Build(opts Options) []byte {
	bo := binary.LittleEndian

	phOff := uint64(ehSize)
	dataOff := phOff + phSize // one PT_LOAD program header
	dataEnd := dataOff + opts.DataSize

	// .dynstr: leading NUL, then one NUL-terminated name per symbol.
	var dynstr bytes.Buffer
	dynstr.WriteByte(0)
	nameOffsets := make([]uint32, len(opts.Symbols))
	for i, s := range opts.Symbols {
		nameOffsets[i] = uint32(dynstr.Len())
		dynstr.WriteString(s.Name)
		dynstr.WriteByte(0)
	}

	// .dynsym: null entry, then one STT_FUNC/STB_GLOBAL entry per symbol.
	var dynsym bytes.Buffer
	dynsym.Write(make([]byte, symSize))
	for i, s := range opts.Symbols {
		var ent [symSize]byte
		bo.PutUint32(ent[0:4], nameOffsets[i])
		ent[4] = 0x12 // STB_GLOBAL<<4 | STT_FUNC
		ent[5] = 0
		bo.PutUint16(ent[6:8], 1) // st_shndx: arbitrary non-SHN_UNDEF section
		bo.PutUint64(ent[8:16], s.Value)
		bo.PutUint64(ent[16:24], 0)
		dynsym.Write(ent[:])
	}

	// .gnu.hash: one bucket holding every symbol, bloom filter disabled
	// (bloom_size=0, which gnuhash's Table.Lookup treats as "skip the fast
	// path").
	const symoffset = 1
	nsyms := uint32(len(opts.Symbols))
	var hash bytes.Buffer
	var hdr [16]byte
	bo.PutUint32(hdr[0:4], 1)          // nbuckets
	bo.PutUint32(hdr[4:8], symoffset)  // symoffset
	bo.PutUint32(hdr[8:12], 0)         // bloom_size
	bo.PutUint32(hdr[12:16], 6)        // bloom_shift
	hash.Write(hdr[:])
	var bucket [4]byte
	if nsyms > 0 {
		bo.PutUint32(bucket[:], symoffset)
	}
	hash.Write(bucket[:])
	for i, s := range opts.Symbols {
		h := GNUHash(s.Name) &^ 1
		if i == len(opts.Symbols)-1 {
			h |= 1 // chain-end marker for the one bucket
		}
		var w [4]byte
		bo.PutUint32(w[:], h)
		hash.Write(w[:])
	}

	// .rela.dyn
	var rela bytes.Buffer
	for _, r := range opts.Relocs {
		var ent [relaSize]byte
		bo.PutUint64(ent[0:8], r.Offset)
		info := (uint64(r.Sym) << 32) | uint64(r.Type)
		bo.PutUint64(ent[8:16], info)
		bo.PutUint64(ent[16:24], uint64(r.Addend))
		rela.Write(ent[:])
	}

	// .shstrtab
	shstrtab, shstrOff := buildShstrtab()

	dynsymOff := dataEnd
	dynstrOff := dynsymOff + uint64(dynsym.Len())
	hashOff := dynstrOff + uint64(dynstr.Len())
	relaOff := hashOff + uint64(hash.Len())
	shstrtabOff := relaOff + uint64(rela.Len())
	shOff := shstrtabOff + uint64(len(shstrtab))

	var buf bytes.Buffer
	buf.Write(buildEhdr(bo, opts.Machine, phOff, shOff, 6))
	buf.Write(buildPhdr(bo, dataOff, opts.DataSize))
	buf.Write(make([]byte, opts.DataSize))
	buf.Write(dynsym.Bytes())
	buf.Write(dynstr.Bytes())
	buf.Write(hash.Bytes())
	buf.Write(rela.Bytes())
	buf.Write(shstrtab)

	// Section header table: null, .dynsym, .dynstr, .gnu.hash, .rela.dyn, .shstrtab.
	buf.Write(make([]byte, shSize)) // SHN_UNDEF
	buf.Write(buildShdr(bo, shStrOffFor(shstrOff, ".dynsym"), 11 /*SHT_DYNSYM*/, dynsymOff, uint64(dynsym.Len()), 2, 1, symSize))
	buf.Write(buildShdr(bo, shStrOffFor(shstrOff, ".dynstr"), 3 /*SHT_STRTAB*/, dynstrOff, uint64(dynstr.Len()), 0, 0, 0))
	buf.Write(buildShdr(bo, shStrOffFor(shstrOff, ".gnu.hash"), 0x6ffffff6 /*SHT_GNU_HASH*/, hashOff, uint64(hash.Len()), 1, 0, 0))
	buf.Write(buildShdr(bo, shStrOffFor(shstrOff, ".rela.dyn"), 4 /*SHT_RELA*/, relaOff, uint64(rela.Len()), 1, 0, relaSize))
	buf.Write(buildShdr(bo, shStrOffFor(shstrOff, ".shstrtab"), 3 /*SHT_STRTAB*/, shstrtabOff, uint64(len(shstrtab)), 0, 0, 0))

	return buf.Bytes()
}

func buildEhdr(bo binary.ByteOrder, machine uint16, phOff, shOff uint64, shnum uint16) []byte {
	var e [ehSize]byte
	copy(e[0:4], []byte{0x7f, 'E', 'L', 'F'})
	e[4] = 2 // ELFCLASS64
	e[5] = 1 // ELFDATA2LSB
	e[6] = 1 // EV_CURRENT
	bo.PutUint16(e[16:18], 3) // e_type = ET_DYN
	bo.PutUint16(e[18:20], machine)
	bo.PutUint32(e[20:24], 1) // e_version
	bo.PutUint64(e[32:40], phOff)
	bo.PutUint64(e[40:48], shOff)
	bo.PutUint16(e[52:54], ehSize)
	bo.PutUint16(e[54:56], phSize)
	bo.PutUint16(e[56:58], 1) // e_phnum
	bo.PutUint16(e[58:60], shSize)
	bo.PutUint16(e[60:62], shnum)
	bo.PutUint16(e[62:64], shnum-1) // e_shstrndx: last section is .shstrtab
	return e[:]
}

func buildPhdr(bo binary.ByteOrder, off, size uint64) []byte {
	var p [phSize]byte
	bo.PutUint32(p[0:4], 1)          // PT_LOAD
	bo.PutUint32(p[4:8], 7)          // PF_R|PF_W|PF_X
	bo.PutUint64(p[8:16], off)       // p_offset
	bo.PutUint64(p[16:24], 0)        // p_vaddr
	bo.PutUint64(p[24:32], 0)        // p_paddr
	bo.PutUint64(p[32:40], size)     // p_filesz
	bo.PutUint64(p[40:48], size)     // p_memsz
	bo.PutUint64(p[48:56], 0x1000)   // p_align
	return p[:]
}

func buildShdr(bo binary.ByteOrder, name uint32, typ uint32, off, size uint64, link, info uint32, entsize uint64) []byte {
	var s [shSize]byte
	bo.PutUint32(s[0:4], name)
	bo.PutUint32(s[4:8], typ)
	bo.PutUint64(s[16:24], off)
	bo.PutUint64(s[24:32], size)
	bo.PutUint32(s[40:44], link)
	bo.PutUint32(s[44:48], info)
	bo.PutUint64(s[56:64], entsize)
	return s[:]
}

func buildShstrtab() ([]byte, map[string]uint32) {
	names := []string{"", ".dynsym", ".dynstr", ".gnu.hash", ".rela.dyn", ".shstrtab"}
	var buf bytes.Buffer
	offs := make(map[string]uint32)
	for _, n := range names {
		offs[n] = uint32(buf.Len())
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	return buf.Bytes(), offs
}

func shStrOffFor(offs map[string]uint32, name string) uint32 {
	return offs[name]
}

// GNUHash computes the GNU symbol hash (the same algorithm as
// internal/gnuhash.Hash), duplicated here so testelf has no dependency on
// the package it's used to test.
func GNUHash(name string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}
