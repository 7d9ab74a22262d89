// Package callabi invokes a resolved guest export as a real native call.
// The loader runs the guest natively rather than under emulation, so
// calling one of its functions from Go means crossing into the host's own
// C calling convention, the same way calling any other C library would.
package callabi

/*
#include <stdint.h>

typedef int64_t (*andromap_fn6)(int64_t, int64_t, int64_t, int64_t, int64_t, int64_t);

static int64_t andromap_call6(uintptr_t fn, int64_t a0, int64_t a1, int64_t a2, int64_t a3, int64_t a4, int64_t a5) {
	andromap_fn6 f = (andromap_fn6)fn;
	return f(a0, a1, a2, a3, a4, a5);
}
*/
import "C"

// MaxArgs is the widest argument list Call supports.
const MaxArgs = 6

// Call invokes the function at addr with up to MaxArgs integer/pointer
// arguments and returns its integer/pointer result, under the host's own
// SysV/AAPCS64 calling convention. Unsupplied argument slots are passed as
// zero; a callee that expects fewer arguments than MaxArgs simply never
// reads the unused registers, so calling with a wider signature than the
// guest function actually has is harmless.
func Call(addr uintptr, args ...int64) int64 {
	if len(args) > MaxArgs {
		panic("callabi: too many arguments")
	}
	var a [MaxArgs]int64
	copy(a[:], args)
	return int64(C.andromap_call6(
		C.uintptr_t(addr),
		C.int64_t(a[0]), C.int64_t(a[1]), C.int64_t(a[2]),
		C.int64_t(a[3]), C.int64_t(a[4]), C.int64_t(a[5]),
	))
}
