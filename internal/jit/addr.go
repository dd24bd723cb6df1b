package jit

import "unsafe"

// unsafeSliceAddr returns the address of a slice's backing array,
// isolated to one file since it is the only place this package needs
// to reach past the slice header.
func unsafeSliceAddr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
