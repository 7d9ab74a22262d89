// Package andromap maps an Android/Linux ELF shared object into the
// current host process, resolves its dynamic relocations against a
// curated Bionic-substitute host symbol table, and resolves its exported
// symbols through the GNU hash table — the loader façade wiring together
// elfimage, segload, reloc, gnuhash, and hostabi.
package andromap

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nsoload/andromap/internal/config"
	"github.com/nsoload/andromap/internal/elfimage"
	"github.com/nsoload/andromap/internal/gnuhash"
	"github.com/nsoload/andromap/internal/hostabi"
	"github.com/nsoload/andromap/internal/logging"
	"github.com/nsoload/andromap/internal/reloc"
	"github.com/nsoload/andromap/internal/segload"
)

// ErrSymbolNotFound is returned by LoadSymbol when the exported-symbol
// resolver has no entry for the requested name.
var ErrSymbolNotFound = errors.New("andromap: symbol not found")

// ErrNotSharedObject is returned when the file is not an ET_DYN image;
// loading executables (ET_EXEC) is out of scope.
var ErrNotSharedObject = errors.New("andromap: not an ET_DYN shared object")

// activeConfig holds the deny list and other overrides loaded from an
// optional config file. The zero value (no config loaded) denies nothing.
var activeConfig config.Config

// SetConfig installs cfg as the active configuration for subsequent
// OpenLibrary calls, in particular its host-symbol deny list.
func SetConfig(cfg config.Config) {
	activeConfig = cfg
}

// LoadedLibrary is one library mapped into the host process. Each instance
// owns an independent image; there is no shared dlopen scope between
// libraries opened separately.
type LoadedLibrary struct {
	ID   uuid.UUID
	Path string

	handle uintptr // dlopen/dlsym/dlclose registry key; see registry.go

	file  *elfimage.File
	image *segload.Image
	arch  reloc.Arch
	hash  *gnuhash.Table
}

// OpenLibrary maps path into the process: it parses the ELF container,
// builds the segment image, resolves every dynamic relocation against the
// host symbol table, and locks down final page protections. Any failure
// unwinds everything already mapped before returning.
func OpenLibrary(path string) (*LoadedLibrary, error) {
	log := logging.L
	if log == nil {
		log = logging.NewNop()
	}

	f, err := elfimage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("andromap: open %s: %w", path, err)
	}

	if f.ELF.Type != elf.ET_DYN {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotSharedObject, path, f.ELF.Type)
	}

	arch, err := reloc.HostArch()
	if err != nil {
		f.Close()
		return nil, err
	}
	if f.ELF.Machine != arch.Machine {
		f.Close()
		return nil, fmt.Errorf("andromap: %s is built for %s, host is %s", path, f.ELF.Machine, arch.Machine)
	}

	img, err := segload.Build(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	ht, err := gnuhash.Parse(f)
	if err != nil {
		img.Close()
		f.Close()
		return nil, err
	}

	lib := &LoadedLibrary{ID: uuid.New(), Path: path, file: f, image: img, arch: arch, hash: ht}

	resolve := func(name string) uintptr {
		trimmed := elfimage.TrimVersion(name)
		if activeConfig.Denies(trimmed) {
			log.SymbolMissing(trimmed)
			return hostabi.UndefinedSymbol()
		}
		if addr, ok := hostabi.Lookup(trimmed); ok {
			log.SymbolResolved(trimmed, uint64(addr))
			return addr
		}
		log.SymbolMissing(trimmed)
		return hostabi.UndefinedSymbol()
	}

	if err := reloc.Apply(img, f, arch, resolve); err != nil {
		img.Close()
		f.Close()
		return nil, err
	}

	if err := img.ApplyProtections(); err != nil {
		img.Close()
		f.Close()
		return nil, err
	}

	registerHandle(lib)
	return lib, nil
}

// LoadSymbol resolves name against the library's GNU hash table and returns
// its runtime address (the image base plus the symbol's offset).
func (l *LoadedLibrary) LoadSymbol(name string) (uintptr, error) {
	off, err := l.hash.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return l.image.Base + uintptr(off), nil
}

// Close unmaps the library's image and its backing file. The library must
// not be used afterward; any address previously returned by LoadSymbol
// becomes invalid.
func (l *LoadedLibrary) Close() error {
	unregisterHandle(l)
	imgErr := l.image.Close()
	fileErr := l.file.Close()
	if imgErr != nil {
		return imgErr
	}
	return fileErr
}
