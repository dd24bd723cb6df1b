package infix

import (
	"fmt"
	"runtime"
	"sync"
	"unicode/utf16"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/ctype"
	"github.com/xyproto/infix/internal/marshal"
	"github.com/xyproto/infix/internal/sig"
)

// The memory-hygiene helpers (memcpy, strdup, raw alloc/free, ...) are
// thin wrappers over libc, resolved once via purego.RegisterLibFunc,
// the same dynamic-symbol-binding idiom library.go uses for
// Dlopen/Dlsym.
var (
	libcOnce sync.Once
	libcErr  error

	cMalloc  func(uintptr) uintptr
	cFree    func(uintptr)
	cMemcpy  func(dst, src uintptr, n uintptr) uintptr
	cMemmove func(dst, src uintptr, n uintptr) uintptr
	cMemset  func(dst uintptr, val int32, n uintptr) uintptr
	cMemcmp  func(a, b uintptr, n uintptr) int32
	cMemchr  func(s uintptr, c int32, n uintptr) uintptr
	cStrdup  func(s uintptr) uintptr
)

func libcPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "/usr/lib/libSystem.B.dylib"
	case "windows":
		return "msvcrt.dll"
	default:
		return "libc.so.6"
	}
}

func ensureLibc() error {
	libcOnce.Do(func() {
		lib, err := LoadLibrary(libcPath())
		if err != nil {
			libcErr = err
			return
		}
		purego.RegisterLibFunc(&cMalloc, lib.handle, "malloc")
		purego.RegisterLibFunc(&cFree, lib.handle, "free")
		purego.RegisterLibFunc(&cMemcpy, lib.handle, "memcpy")
		purego.RegisterLibFunc(&cMemmove, lib.handle, "memmove")
		purego.RegisterLibFunc(&cMemset, lib.handle, "memset")
		purego.RegisterLibFunc(&cMemcmp, lib.handle, "memcmp")
		purego.RegisterLibFunc(&cMemchr, lib.handle, "memchr")
		purego.RegisterLibFunc(&cStrdup, lib.handle, "strdup")
	})
	return libcErr
}

// Alloc reserves count contiguous elements of t's size from the C
// heap, zeroed. The caller must Free the result.
func Alloc(t *ctype.Descriptor, count int) (uintptr, error) {
	if err := ensureLibc(); err != nil {
		return 0, err
	}
	if count < 1 {
		count = 1
	}
	n := uintptr(t.Size * count)
	p := cMalloc(n)
	if p == 0 {
		return 0, fmt.Errorf("infix: Alloc: out of memory requesting %d bytes", n)
	}
	cMemset(p, 0, n)
	return p, nil
}

// Free releases memory obtained from Alloc, Strdup, or a pin's owned
// address. Freeing 0 is a no-op.
func Free(ptr uintptr) error {
	if ptr == 0 {
		return nil
	}
	if err := ensureLibc(); err != nil {
		return err
	}
	cFree(ptr)
	return nil
}

func freeAll(ptrs []uintptr) {
	for _, p := range ptrs {
		_ = Free(p)
	}
}

// Memcpy, Memmove, Memset, Memcmp, and Memchr forward directly to the
// platform libc implementations.
func Memcpy(dst, src uintptr, n int) error {
	if err := ensureLibc(); err != nil {
		return err
	}
	cMemcpy(dst, src, uintptr(n))
	return nil
}

func Memmove(dst, src uintptr, n int) error {
	if err := ensureLibc(); err != nil {
		return err
	}
	cMemmove(dst, src, uintptr(n))
	return nil
}

func Memset(dst uintptr, val byte, n int) error {
	if err := ensureLibc(); err != nil {
		return err
	}
	cMemset(dst, int32(val), uintptr(n))
	return nil
}

func Memcmp(a, b uintptr, n int) (int, error) {
	if err := ensureLibc(); err != nil {
		return 0, err
	}
	return int(cMemcmp(a, b, uintptr(n))), nil
}

func Memchr(s uintptr, c byte, n int) (uintptr, error) {
	if err := ensureLibc(); err != nil {
		return 0, err
	}
	return cMemchr(s, int32(c), uintptr(n)), nil
}

// Strdup duplicates a Go string onto the C heap as a NUL-terminated
// UTF-8 buffer.
func Strdup(s string) (uintptr, error) {
	if err := ensureLibc(); err != nil {
		return 0, err
	}
	b := append([]byte(s), 0)
	return cStrdup(uintptr(unsafe.Pointer(&b[0]))), nil
}

// newCString marshals a Go string onto the C heap per t's kind:
// KindCString produces a NUL-terminated UTF-8 buffer; KindWString
// produces the platform wide-string form (UTF-16 on Windows, UTF-32
// elsewhere), mirroring libc's wchar_t. The caller is responsible for
// freeing the returned pointer.
func newCString(t *ctype.Descriptor, s string) (uintptr, error) {
	if err := ensureLibc(); err != nil {
		return 0, err
	}
	if t.Kind == ctype.KindCString {
		return Strdup(s)
	}
	// KindWString
	if runtime.GOOS == "windows" {
		units := utf16.Encode([]rune(s))
		units = append(units, 0)
		n := uintptr(len(units) * 2)
		p, err := Alloc(ctype.PrimitiveType(ctype.KindU8), int(n))
		if err != nil {
			return 0, err
		}
		dst := unsafe.Slice((*uint16)(unsafe.Pointer(p)), len(units))
		copy(dst, units)
		return p, nil
	}
	runes := []rune(s)
	runes = append(runes, 0)
	n := uintptr(len(runes) * 4)
	p, err := Alloc(ctype.PrimitiveType(ctype.KindU8), int(n))
	if err != nil {
		return 0, err
	}
	dst := unsafe.Slice((*int32)(unsafe.Pointer(p)), len(runes))
	for i, r := range runes {
		dst[i] = r
	}
	return p, nil
}

// newArrayBuffer allocates a fresh C buffer sized for len(elems)
// elements of t.Pointee and marshals elems into it in order, mirroring
// newCString's "host value in, owned C pointer out" shape. t must be a
// pointer to a concrete element type; an opaque pointer has nothing to
// size the allocation against. The caller is responsible for freeing
// the returned pointer.
func newArrayBuffer(t *ctype.Descriptor, elems []any) (uintptr, error) {
	if t.Pointee == nil {
		return 0, fmt.Errorf("infix: cannot marshal an array literal into an opaque pointer argument")
	}
	a := newArena()
	defer a.Destroy()
	arr, err := ctype.ArrayType(a, t.Pointee, len(elems))
	if err != nil {
		return 0, err
	}
	ptr, err := Alloc(t.Pointee, len(elems))
	if err != nil {
		return 0, err
	}
	if err := marshal.Write(unsafe.Pointer(ptr), arr, elems); err != nil {
		Free(ptr)
		return 0, err
	}
	return ptr, nil
}

// Cast reinterprets a raw pointer under a new signature without
// copying, returning the descriptor Get/Set should use for indexing.
func Cast(ptr uintptr, newSignature string) (uintptr, *ctype.Descriptor, error) {
	// Each cast owns a tiny private arena for its one descriptor node;
	// this is intentionally never destroyed, since a descriptor must
	// not outlive its arena and a cast result is meant to be held and
	// reused by the caller, not scoped to one call.
	a := newArena()
	t, err := sig.ParseType(newSignature, a)
	if err != nil {
		a.Destroy()
		return 0, nil, err
	}
	return ptr, t, nil
}

// Get reads the index'th element of t's size starting at ptr.
func Get(ptr uintptr, t *ctype.Descriptor, index int) (any, error) {
	elemPtr := unsafe.Add(unsafe.Pointer(ptr), index*t.Size)
	return marshal.Read(elemPtr, t)
}

// Set writes value into the index'th element of t's size starting at
// ptr.
func Set(ptr uintptr, t *ctype.Descriptor, index int, value any) error {
	elemPtr := unsafe.Add(unsafe.Pointer(ptr), index*t.Size)
	return marshal.Write(elemPtr, t, value)
}
