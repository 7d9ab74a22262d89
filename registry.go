package andromap

import (
	"sync"

	"github.com/nsoload/andromap/internal/hostabi"
)

// handles backs the guest-visible dlopen/dlsym/dlclose host symbols: a
// fresh LoadedLibrary per dlopen call, keyed by an opaque counter rather
// than a raw pointer, since a library's image address can be reused by an
// unrelated library after Close.
var (
	handleMu   sync.Mutex
	handles    = map[uintptr]*LoadedLibrary{}
	nextHandle uintptr = 1
)

func init() {
	hostabi.SetDlHooks(dlOpen, dlSym, dlClose)
}

func registerHandle(l *LoadedLibrary) {
	handleMu.Lock()
	defer handleMu.Unlock()
	l.handle = nextHandle
	handles[nextHandle] = l
	nextHandle++
}

func unregisterHandle(l *LoadedLibrary) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(handles, l.handle)
}

func dlOpen(path string) (uintptr, bool) {
	lib, err := OpenLibrary(path)
	if err != nil {
		return 0, false
	}
	return lib.handle, true
}

func dlSym(handle uintptr, name string) (uintptr, bool) {
	handleMu.Lock()
	lib, ok := handles[handle]
	handleMu.Unlock()
	if !ok {
		return 0, false
	}
	addr, err := lib.LoadSymbol(name)
	if err != nil {
		return 0, false
	}
	return addr, true
}

func dlClose(handle uintptr) bool {
	handleMu.Lock()
	lib, ok := handles[handle]
	handleMu.Unlock()
	if !ok {
		return false
	}
	return lib.Close() == nil
}
