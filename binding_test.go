package infix

import (
	"errors"
	"testing"
	"unsafe"
)

// TestBindAbs binds libc's abs with signature "i;i" and checks that
// calling it with -7 returns 7.
func TestBindAbs(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	abs, err := Bind(lib, "abs", "i;i")
	if err != nil {
		t.Fatal(err)
	}
	defer abs.Release()

	got, err := abs.Call(int32(-7))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(7) {
		t.Errorf("abs(-7) = %v, want 7", got)
	}
}

// TestBindHypot exercises a two-float-argument, float-return call.
func TestBindHypot(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	hypot, err := Bind(lib, "hypot", "d,d;d")
	if err != nil {
		t.Fatal(err)
	}
	defer hypot.Release()

	got, err := hypot.Call(3.0, 4.0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5.0 {
		t.Errorf("hypot(3,4) = %v, want 5", got)
	}
}

func TestBindUnknownSymbol(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	_, err = Bind(lib, "not_a_real_symbol_abcxyz", "i;i")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("err = %v, want ErrSymbolNotFound", err)
	}
}

func TestBindBadSignature(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	_, err = Bind(lib, "abs", "not a signature")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if _, ok := IsParseError(err); !ok {
		t.Errorf("err = %v, want a ParseError", err)
	}
}

func TestReleaseTwiceFails(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	abs, err := Bind(lib, "abs", "i;i")
	if err != nil {
		t.Fatal(err)
	}
	if err := abs.Release(); err != nil {
		t.Fatal(err)
	}
	if err := abs.Release(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Release err = %v, want ErrInvalidState", err)
	}
}

func TestCallAfterReleaseFails(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	abs, err := Bind(lib, "abs", "i;i")
	if err != nil {
		t.Fatal(err)
	}
	if err := abs.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := abs.Call(int32(1)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Call after Release err = %v, want ErrInvalidState", err)
	}
}

func TestCallArgumentCountMismatch(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	abs, err := Bind(lib, "abs", "i;i")
	if err != nil {
		t.Fatal(err)
	}
	defer abs.Release()

	if _, err := abs.Call(int32(1), int32(2)); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}

// TestBindMemset exercises a pointer-argument, pointer-return forward
// call against a real C buffer: memset(void*, int, size_t) returns the
// same pointer it was given, and the bytes it touches must all read
// back as the fill value.
func TestBindMemset(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	memset, err := Bind(lib, "memset", "p,i,L;p")
	if err != nil {
		t.Fatal(err)
	}
	defer memset.Release()

	u8, _, err := Cast(0, "C")
	if err != nil {
		t.Fatal(err)
	}
	buf, err := Alloc(u8, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(buf)

	got, err := memset.Call(buf, int32(0x41), int64(16))
	if err != nil {
		t.Fatal(err)
	}
	if gotPtr, ok := got.(unsafe.Pointer); !ok || uintptr(gotPtr) != buf {
		t.Fatalf("memset return = %v, want %#x", got, buf)
	}

	for i := 0; i < 16; i++ {
		v, err := Get(buf, u8, i)
		if err != nil {
			t.Fatal(err)
		}
		if v.(uint8) != 0x41 {
			t.Fatalf("byte %d = %#x, want 0x41", i, v)
		}
	}
}

// TestBindSnprintfVariadic exercises a variadic forward call: snprintf's
// trailing "%d" consumer arrives past the fixed (buf, size, fmt) group
// and must still reach the callee correctly classified per-ABI.
func TestBindSnprintfVariadic(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	snprintf, err := Bind(lib, "snprintf", "p,L,z;i;i")
	if err != nil {
		t.Fatal(err)
	}
	defer snprintf.Release()

	u8, _, err := Cast(0, "C")
	if err != nil {
		t.Fatal(err)
	}
	buf, err := Alloc(u8, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(buf)

	got, err := snprintf.Call(buf, int64(32), "value=%d", int32(42))
	if err != nil {
		t.Fatal(err)
	}
	if got.(int32) != int32(len("value=42")) {
		t.Errorf("snprintf return = %v, want %d", got, len("value=42"))
	}

	out := make([]byte, 0, len("value=42"))
	for i := 0; i < len("value=42"); i++ {
		v, err := Get(buf, u8, i)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, v.(uint8))
	}
	if string(out) != "value=42" {
		t.Errorf("formatted buffer = %q, want %q", out, "value=42")
	}
}

func TestWrap(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	abs, err := Wrap(lib, "abs", "i;i")
	if err != nil {
		t.Fatal(err)
	}
	got, err := abs(int32(-3))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(3) {
		t.Errorf("wrapped abs(-3) = %v, want 3", got)
	}
}
