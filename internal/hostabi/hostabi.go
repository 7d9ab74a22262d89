// Package hostabi is a fixed table of Bionic symbol names mapped to real,
// host-ABI-callable function pointers, dispatched through a perfect hash
// so lookups never allocate or scan.
//
// Every installed address is obtained through cgo: the guest runs natively
// (no instruction emulation) on a host of the same instruction-set family,
// so the relocator needs a genuine CPU-executable address, not a Go
// closure.
package hostabi

import "github.com/nsoload/andromap/internal/elfimage"

var globalTable *table

// OpenFunc, SymFunc, and CloseFunc back the dlopen/dlsym/dlclose host
// symbols. They are supplied by the loader façade (which owns the
// re-entrant handle registry) via SetDlHooks, avoiding an import cycle
// between hostabi and the root package.
type (
	OpenFunc  func(path string) (handle uintptr, ok bool)
	SymFunc   func(handle uintptr, name string) (addr uintptr, ok bool)
	CloseFunc func(handle uintptr) bool
)

var (
	dlOpenHook  OpenFunc
	dlSymHook   SymFunc
	dlCloseHook CloseFunc
)

// SetDlHooks wires the dlopen/dlsym/dlclose host symbols to a handle
// registry. Call once, before opening any library that might invoke them.
func SetDlHooks(open OpenFunc, sym SymFunc, close CloseFunc) {
	dlOpenHook, dlSymHook, dlCloseHook = open, sym, close
}

// Lookup resolves a Bionic symbol name to its installed host function
// pointer. A version suffix ("@VERSION"/"@@VERSION") is stripped before
// hashing, since the host symbol table is itself unversioned.
func Lookup(name string) (uintptr, bool) {
	return globalTable.lookup(elfimage.TrimVersion(name))
}

// UndefinedSymbol returns the address every unresolved host reference
// binds to: a single shared trampoline that aborts on invocation.
func UndefinedSymbol() uintptr {
	return undefinedSymbolAddr
}
