package hostabi

/*
#include <fcntl.h>
#include <unistd.h>
#include <sys/stat.h>
#include <sys/time.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <stdio.h>
#include <time.h>

// Passthrough host symbols: Bionic and glibc agree on these signatures, and
// host and guest share the same C ABI (same instruction-set family), so the
// guest calls straight into the host libc implementation with no shim.
static uintptr_t andromap_addr_open(void)         { return (uintptr_t)&open; }
static uintptr_t andromap_addr_close(void)        { return (uintptr_t)&close; }
static uintptr_t andromap_addr_read(void)         { return (uintptr_t)&read; }
static uintptr_t andromap_addr_write(void)        { return (uintptr_t)&write; }
static uintptr_t andromap_addr_mkdir(void)        { return (uintptr_t)&mkdir; }
static uintptr_t andromap_addr_chmod(void)        { return (uintptr_t)&chmod; }
static uintptr_t andromap_addr_umask(void)        { return (uintptr_t)&umask; }
static uintptr_t andromap_addr_ftruncate(void)    { return (uintptr_t)&ftruncate; }
static uintptr_t andromap_addr_malloc(void)       { return (uintptr_t)&malloc; }
static uintptr_t andromap_addr_free(void)         { return (uintptr_t)&free; }
static uintptr_t andromap_addr_strncpy(void)      { return (uintptr_t)&strncpy; }
static uintptr_t andromap_addr_gettimeofday(void) { return (uintptr_t)&gettimeofday; }
static uintptr_t andromap_addr_errno(void)        { return (uintptr_t)&__errno_location; }

// arc4random: not every glibc in the wild carries it (it only landed in
// 2.36), so this package supplies its own rather than depending on host
// libc version, seeded from the kernel via getentropy(2).
static uint32_t andromap_arc4random(void) {
	uint32_t v = 0;
	if (getentropy(&v, sizeof(v)) != 0) {
		v = (uint32_t)time(NULL);
	}
	return v;
}
static uintptr_t andromap_addr_arc4random(void) { return (uintptr_t)&andromap_arc4random; }

// __system_property_get: the Bionic property store has no host equivalent.
// Every query returns the same placeholder Android itself returns for an
// absent property, regardless of which property name was asked for.
static int andromap_system_property_get(const char *name, char *value) {
	static const char *placeholder = "no s/n number";
	size_t n = strlen(placeholder);
	memcpy(value, placeholder, n + 1);
	return (int)n;
}
static uintptr_t andromap_addr_system_property_get(void) {
	return (uintptr_t)&andromap_system_property_get;
}

// pthread_* stubs are inert: guest code is assumed single-threaded (no
// real thread-safety runtime), so these report success without running any
// start routine or taking any lock.
static int andromap_pthread_create(void *a, void *b, void *c, void *d) { return 0; }
static int andromap_pthread_once(void *a, void *b)                     { return 0; }
static int andromap_pthread_mutex_lock(void *a)                        { return 0; }
static int andromap_pthread_mutex_unlock(void *a)                      { return 0; }
static int andromap_pthread_rwlock_init(void *a, void *b)              { return 0; }
static int andromap_pthread_rwlock_destroy(void *a)                    { return 0; }
static int andromap_pthread_rwlock_rdlock(void *a)                     { return 0; }
static int andromap_pthread_rwlock_wrlock(void *a)                     { return 0; }
static int andromap_pthread_rwlock_unlock(void *a)                     { return 0; }

static uintptr_t andromap_addr_pthread_create(void)          { return (uintptr_t)&andromap_pthread_create; }
static uintptr_t andromap_addr_pthread_once(void)            { return (uintptr_t)&andromap_pthread_once; }
static uintptr_t andromap_addr_pthread_mutex_lock(void)      { return (uintptr_t)&andromap_pthread_mutex_lock; }
static uintptr_t andromap_addr_pthread_mutex_unlock(void)    { return (uintptr_t)&andromap_pthread_mutex_unlock; }
static uintptr_t andromap_addr_pthread_rwlock_init(void)     { return (uintptr_t)&andromap_pthread_rwlock_init; }
static uintptr_t andromap_addr_pthread_rwlock_destroy(void)  { return (uintptr_t)&andromap_pthread_rwlock_destroy; }
static uintptr_t andromap_addr_pthread_rwlock_rdlock(void)   { return (uintptr_t)&andromap_pthread_rwlock_rdlock; }
static uintptr_t andromap_addr_pthread_rwlock_wrlock(void)   { return (uintptr_t)&andromap_pthread_rwlock_wrlock; }
static uintptr_t andromap_addr_pthread_rwlock_unlock(void)   { return (uintptr_t)&andromap_pthread_rwlock_unlock; }

// undefined_symbol is the single shared trampoline every unresolved host
// reference binds to. It carries no information about which symbol was
// actually called; that binding is lost once installed.
static void andromap_undefined_symbol(void) {
	fprintf(stderr, "andromap: call to unresolved host symbol\n");
	abort();
}
static uintptr_t andromap_addr_undefined_symbol(void) { return (uintptr_t)&andromap_undefined_symbol; }

// lstat/fstat (Bionic's struct stat layout differs from glibc's) and
// dlopen/dlsym/dlclose (need the loader façade's re-entrant handle registry)
// require real Go logic, so their trampolines forward into the exported Go
// dispatcher instead of a bare libc function pointer.
extern int goLstat(const char *path, void *buf);
extern int goFstat(int fd, void *buf);
extern void *goDlopen(const char *path, int flags);
extern void *goDlsym(void *handle, const char *name);
extern int goDlclose(void *handle);

static int andromap_lstat(const char *path, void *buf)      { return goLstat(path, buf); }
static int andromap_fstat(int fd, void *buf)                { return goFstat(fd, buf); }
static void *andromap_dlopen(const char *path, int flags)   { return goDlopen(path, flags); }
static void *andromap_dlsym(void *handle, const char *name) { return goDlsym(handle, name); }
static int andromap_dlclose(void *handle)                   { return goDlclose(handle); }

static uintptr_t andromap_addr_lstat(void)   { return (uintptr_t)&andromap_lstat; }
static uintptr_t andromap_addr_fstat(void)   { return (uintptr_t)&andromap_fstat; }
static uintptr_t andromap_addr_dlopen(void)  { return (uintptr_t)&andromap_dlopen; }
static uintptr_t andromap_addr_dlsym(void)   { return (uintptr_t)&andromap_dlsym; }
static uintptr_t andromap_addr_dlclose(void) { return (uintptr_t)&andromap_dlclose; }
*/
import "C"

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

var undefinedSymbolAddr uintptr

func init() {
	globalTable = newTable()
	install := func(name string, addr C.uintptr_t) {
		globalTable.insert(name, uintptr(addr))
	}

	install("open", C.andromap_addr_open())
	install("close", C.andromap_addr_close())
	install("read", C.andromap_addr_read())
	install("write", C.andromap_addr_write())
	install("mkdir", C.andromap_addr_mkdir())
	install("chmod", C.andromap_addr_chmod())
	install("umask", C.andromap_addr_umask())
	install("ftruncate", C.andromap_addr_ftruncate())
	install("malloc", C.andromap_addr_malloc())
	install("free", C.andromap_addr_free())
	install("strncpy", C.andromap_addr_strncpy())
	install("gettimeofday", C.andromap_addr_gettimeofday())
	install("__errno", C.andromap_addr_errno())
	install("arc4random", C.andromap_addr_arc4random())
	install("__system_property_get", C.andromap_addr_system_property_get())
	install("pthread_create", C.andromap_addr_pthread_create())
	install("pthread_once", C.andromap_addr_pthread_once())
	install("pthread_mutex_lock", C.andromap_addr_pthread_mutex_lock())
	install("pthread_mutex_unlock", C.andromap_addr_pthread_mutex_unlock())
	install("pthread_rwlock_init", C.andromap_addr_pthread_rwlock_init())
	install("pthread_rwlock_destroy", C.andromap_addr_pthread_rwlock_destroy())
	install("pthread_rwlock_rdlock", C.andromap_addr_pthread_rwlock_rdlock())
	install("pthread_rwlock_wrlock", C.andromap_addr_pthread_rwlock_wrlock())
	install("pthread_rwlock_unlock", C.andromap_addr_pthread_rwlock_unlock())
	install("lstat", C.andromap_addr_lstat())
	install("fstat", C.andromap_addr_fstat())
	install("dlopen", C.andromap_addr_dlopen())
	install("dlsym", C.andromap_addr_dlsym())
	install("dlclose", C.andromap_addr_dlclose())

	undefinedSymbolAddr = uintptr(C.andromap_addr_undefined_symbol())
}

// Bionic LP64 struct stat field offsets this package populates. Fields
// outside this set (padding, reserved words) are left zeroed: this is
// argument-compatible with Bionic's layout but not bit-exact.
const (
	statDev     = 0
	statIno     = 8
	statMode    = 16
	statNlink   = 20
	statUID     = 24
	statGID     = 28
	statRdev    = 32
	statSize    = 48
	statBlksize = 56
	statBlocks  = 64
	statAtimSec = 72
	statAtimNs  = 80
	statMtimSec = 88
	statMtimNs  = 96
	statCtimSec = 104
	statCtimNs  = 112
	statStructSize = 128
)

func writeBionicStat(buf unsafe.Pointer, st *unix.Stat_t) {
	b := unsafe.Slice((*byte)(buf), statStructSize)
	putU64 := func(off int, v uint64) { *(*uint64)(unsafe.Pointer(&b[off])) = v }
	putU32 := func(off int, v uint32) { *(*uint32)(unsafe.Pointer(&b[off])) = v }
	putI64 := func(off int, v int64) { *(*int64)(unsafe.Pointer(&b[off])) = v }

	putU64(statDev, st.Dev)
	putU64(statIno, st.Ino)
	putU32(statMode, st.Mode)
	putU32(statNlink, uint32(st.Nlink))
	putU32(statUID, st.Uid)
	putU32(statGID, st.Gid)
	putU64(statRdev, st.Rdev)
	putI64(statSize, st.Size)
	putI64(statBlksize, st.Blksize)
	putI64(statBlocks, st.Blocks)
	putI64(statAtimSec, st.Atim.Sec)
	putI64(statAtimNs, st.Atim.Nsec)
	putI64(statMtimSec, st.Mtim.Sec)
	putI64(statMtimNs, st.Mtim.Nsec)
	putI64(statCtimSec, st.Ctim.Sec)
	putI64(statCtimNs, st.Ctim.Nsec)
}

//export goLstat
func goLstat(cpath *C.char, buf unsafe.Pointer) C.int {
	path := C.GoString(cpath)
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return -1
	}
	writeBionicStat(buf, &st)
	return 0
}

//export goFstat
func goFstat(fd C.int, buf unsafe.Pointer) C.int {
	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		return -1
	}
	writeBionicStat(buf, &st)
	return 0
}

//export goDlopen
func goDlopen(cpath *C.char, flags C.int) unsafe.Pointer {
	if dlOpenHook == nil {
		return nil
	}
	handle, ok := dlOpenHook(C.GoString(cpath))
	if !ok {
		return nil
	}
	// handle is an opaque registry key minted by the loader façade, not a
	// real pointer; it is never dereferenced on the C side.
	return unsafe.Pointer(handle)
}

//export goDlsym
func goDlsym(handle unsafe.Pointer, cname *C.char) unsafe.Pointer {
	if dlSymHook == nil {
		return nil
	}
	addr, ok := dlSymHook(uintptr(handle), C.GoString(cname))
	if !ok {
		return nil
	}
	return unsafe.Pointer(addr)
}

//export goDlclose
func goDlclose(handle unsafe.Pointer) C.int {
	if dlCloseHook == nil || !dlCloseHook(uintptr(handle)) {
		return -1
	}
	return 0
}
