package infix

import (
	"testing"
	"unsafe"

	"github.com/xyproto/infix/internal/ctype"
)

func TestAllocFreeZeroed(t *testing.T) {
	t32 := ctype.PrimitiveType(ctype.KindS32)
	p, err := Alloc(t32, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(p)

	for i := 0; i < 4; i++ {
		v, err := Get(p, t32, i)
		if err != nil {
			t.Fatal(err)
		}
		if v != int32(0) {
			t.Errorf("element %d = %v, want 0", i, v)
		}
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	t32 := ctype.PrimitiveType(ctype.KindS32)
	p, err := Alloc(t32, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(p)

	if err := Set(p, t32, 1, int32(99)); err != nil {
		t.Fatal(err)
	}
	v, err := Get(p, t32, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(99) {
		t.Errorf("Get = %v, want 99", v)
	}
}

func TestStrdupRoundTrip(t *testing.T) {
	p, err := Strdup("hello")
	if err != nil {
		t.Fatal(err)
	}
	defer Free(p)

	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), 5)
	if string(b) != "hello" {
		t.Errorf("strdup contents = %q, want hello", string(b))
	}
}

func TestMemsetMemcmp(t *testing.T) {
	a, err := Alloc(ctype.PrimitiveType(ctype.KindU8), 8)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(a)
	b, err := Alloc(ctype.PrimitiveType(ctype.KindU8), 8)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(b)

	if err := Memset(a, 0x7a, 8); err != nil {
		t.Fatal(err)
	}
	if err := Memset(b, 0x7a, 8); err != nil {
		t.Fatal(err)
	}
	cmp, err := Memcmp(a, b, 8)
	if err != nil {
		t.Fatal(err)
	}
	if cmp != 0 {
		t.Errorf("Memcmp = %d, want 0", cmp)
	}
}

func TestCast(t *testing.T) {
	t32 := ctype.PrimitiveType(ctype.KindS32)
	p, err := Alloc(t32, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer Free(p)

	ptr, casted, err := Cast(p, "d")
	if err != nil {
		t.Fatal(err)
	}
	if ptr != p {
		t.Errorf("Cast changed the address")
	}
	if casted.Kind != ctype.KindF64 {
		t.Errorf("Cast type kind = %v, want f64", casted.Kind)
	}
}
