package segload

import "unsafe"

// base returns the runtime address backing a mmap'd byte slice.
func base(mapping []byte) uintptr {
	if len(mapping) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mapping[0]))
}
