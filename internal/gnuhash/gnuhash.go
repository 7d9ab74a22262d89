// Package gnuhash parses the GNU hash table section (.gnu.hash) of an ELF
// dynamic symbol table and resolves exported symbol names to addresses,
// exactly as the Android/Bionic dynamic linker would.
package gnuhash

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/nsoload/andromap/internal/elfimage"
)

// ErrNotFound is returned by Table.Lookup when a name is absent.
var ErrNotFound = errors.New("gnuhash: symbol not found")

// ErrNoHashSection is returned when the file has no .gnu.hash section.
var ErrNoHashSection = errors.New("gnuhash: no .gnu.hash section")

// Table is a parsed GNU hash table. Parse copies the bloom, bucket and
// chain words out of the file mapping into slices the Table owns; they do
// not alias the mapping.
type Table struct {
	nbuckets   uint32
	symoffset  uint32
	bloomSize  uint32
	bloomShift uint32
	bloom      []uint64
	buckets    []uint32
	chain      []uint32

	dynsyms []elf.Symbol // indexed the same way the hash table's symoffset expects
}

// Parse reads the .gnu.hash section out of f and binds it to the file's
// dynamic symbol table.
func Parse(f *elfimage.File) (*Table, error) {
	sec := f.ELF.Section(".gnu.hash")
	if sec == nil {
		return nil, ErrNoHashSection
	}

	const headerSize = 16 // nbuckets, symoffset, bloom_size, bloom_shift: 4x uint32
	hdr, err := f.Bytes(sec.Offset, headerSize)
	if err != nil {
		return nil, fmt.Errorf("gnuhash: read header: %w", err)
	}
	bo := f.ByteOrder()
	nbuckets := bo.Uint32(hdr[0:4])
	symoffset := bo.Uint32(hdr[4:8])
	bloomSize := bo.Uint32(hdr[8:12])
	bloomShift := bo.Uint32(hdr[12:16])

	const wordSize = 8 // machine word; this loader targets 64-bit hosts only
	off := sec.Offset + headerSize

	bloomBytes, err := f.Bytes(off, uint64(bloomSize)*wordSize)
	if err != nil {
		return nil, fmt.Errorf("gnuhash: read bloom filter: %w", err)
	}
	bloom := make([]uint64, bloomSize)
	for i := range bloom {
		bloom[i] = bo.Uint64(bloomBytes[i*wordSize:])
	}
	off += uint64(bloomSize) * wordSize

	bucketBytes, err := f.Bytes(off, uint64(nbuckets)*4)
	if err != nil {
		return nil, fmt.Errorf("gnuhash: read buckets: %w", err)
	}
	buckets := make([]uint32, nbuckets)
	for i := range buckets {
		buckets[i] = bo.Uint32(bucketBytes[i*4:])
	}
	off += uint64(nbuckets) * 4

	dynsyms, err := f.ELF.DynamicSymbols()
	if err != nil {
		return nil, fmt.Errorf("gnuhash: read dynamic symbols: %w", err)
	}
	// debug/elf.DynamicSymbols skips the null symbol at index 0, but the
	// hash table's bucket values are real dynsym indices, with chain[i]
	// describing dynsym index i+symoffset. Re-prepend a placeholder so
	// padded[i] is dynsym index i, the way the GNU hash lookup expects.
	padded := make([]elf.Symbol, len(dynsyms)+1)
	copy(padded[1:], dynsyms)

	nchain := uint32(len(padded)) - symoffset
	chainBytes, err := f.Bytes(off, uint64(nchain)*4)
	if err != nil {
		return nil, fmt.Errorf("gnuhash: read chain: %w", err)
	}
	chain := make([]uint32, nchain)
	for i := range chain {
		chain[i] = bo.Uint32(chainBytes[i*4:])
	}

	return &Table{
		nbuckets:   nbuckets,
		symoffset:  symoffset,
		bloomSize:  bloomSize,
		bloomShift: bloomShift,
		bloom:      bloom,
		buckets:    buckets,
		chain:      chain,
		dynsyms:    padded,
	}, nil
}

// Hash computes the GNU hash of name: h=5381; h=h*33+c for each byte,
// wrapping at 32 bits.
func Hash(name string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

// Lookup resolves name to an image-relative offset (the symbol's st_value).
// Callers add the image base to obtain a runtime address. The bloom filter
// is consulted as a fast negative path; chain walking is always the
// authority. A trailing "@VERSION"/"@@VERSION" suffix is tried both as
// given and stripped, since the dynamic symbol table may carry either
// form.
func (t *Table) Lookup(name string) (uint64, error) {
	v, err := t.lookupExact(name)
	if err == nil {
		return v, nil
	}
	if trimmed := elfimage.TrimVersion(name); trimmed != name {
		return t.lookupExact(trimmed)
	}
	return 0, err
}

func (t *Table) lookupExact(name string) (uint64, error) {
	if t.nbuckets == 0 {
		return 0, ErrNotFound
	}
	h := Hash(name)

	if t.bloomSize > 0 {
		word := t.bloom[(h/64)%t.bloomSize]
		mask := (uint64(1) << (h % 64)) | (uint64(1) << ((h >> t.bloomShift) % 64))
		if word&mask != mask {
			return 0, ErrNotFound
		}
	}

	bucket := t.buckets[h%t.nbuckets]
	if bucket < t.symoffset {
		return 0, ErrNotFound
	}

	idx := bucket
	for chainIdx := bucket - t.symoffset; ; chainIdx++ {
		if int(chainIdx) >= len(t.chain) {
			return 0, ErrNotFound
		}
		word := t.chain[chainIdx]
		if word|1 == h|1 {
			if int(idx) < len(t.dynsyms) && t.dynsyms[idx].Name == name {
				return t.dynsyms[idx].Value, nil
			}
		}
		if word&1 != 0 {
			return 0, ErrNotFound
		}
		idx++
	}
}
