package marshal

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/ctype"
)

func bufPtr(size int) unsafe.Pointer {
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0])
}

// TestRoundTripPrimitives checks a write-then-read round trip across
// every scalar kind.
func TestRoundTripPrimitives(t *testing.T) {
	cases := []struct {
		kind ctype.PrimitiveKind
		in   any
	}{
		{ctype.KindBool, true},
		{ctype.KindS8, int8(-12)},
		{ctype.KindU8, uint8(200)},
		{ctype.KindS16, int16(-1000)},
		{ctype.KindU16, uint16(50000)},
		{ctype.KindS32, int32(-70000)},
		{ctype.KindU32, uint32(4000000000)},
		{ctype.KindS64, int64(-123456789012)},
		{ctype.KindU64, uint64(18000000000000000000)},
		{ctype.KindF32, float32(3.5)},
		{ctype.KindF64, float64(2.71828)},
	}
	for _, c := range cases {
		typ := ctype.PrimitiveType(c.kind)
		ptr := bufPtr(8)
		if err := Write(ptr, typ, c.in); err != nil {
			t.Fatalf("%v: Write: %v", c.kind, err)
		}
		got, err := Read(ptr, typ)
		if err != nil {
			t.Fatalf("%v: Read: %v", c.kind, err)
		}
		if got != c.in {
			t.Errorf("%v: round-trip got %v (%T), want %v (%T)", c.kind, got, got, c.in, c.in)
		}
	}
}

func TestRoundTripPointer(t *testing.T) {
	a := arena.New()
	defer a.Destroy()
	typ, err := ctype.PointerType(a, ctype.PrimitiveType(ctype.KindS32))
	if err != nil {
		t.Fatal(err)
	}
	ptr := bufPtr(8)
	want := uintptr(0xdeadbeef)
	if err := Write(ptr, typ, want); err != nil {
		t.Fatal(err)
	}
	got, err := Read(ptr, typ)
	if err != nil {
		t.Fatal(err)
	}
	if uintptr(got.(unsafe.Pointer)) != want {
		t.Errorf("round-trip pointer = %#x, want %#x", got, want)
	}
}

func TestRoundTripStruct(t *testing.T) {
	a := arena.New()
	defer a.Destroy()
	b := ctype.StructBegin(a)
	must(t, b.AddMember("x", ctype.PrimitiveType(ctype.KindF64)))
	must(t, b.AddMember("y", ctype.PrimitiveType(ctype.KindF64)))
	st, err := b.StructEnd(false)
	if err != nil {
		t.Fatal(err)
	}

	ptr := bufPtr(st.Size)
	in := map[string]any{"x": 1.5, "y": -2.5}
	if err := Write(ptr, st, in); err != nil {
		t.Fatal(err)
	}
	got, err := Read(ptr, st)
	if err != nil {
		t.Fatal(err)
	}
	fields := got.(map[string]any)
	if fields["x"] != 1.5 || fields["y"] != -2.5 {
		t.Errorf("round-trip struct = %+v, want %+v", fields, in)
	}
}

func TestRoundTripArray(t *testing.T) {
	a := arena.New()
	defer a.Destroy()
	arr, err := ctype.ArrayType(a, ctype.PrimitiveType(ctype.KindS32), 4)
	if err != nil {
		t.Fatal(err)
	}
	ptr := bufPtr(arr.Size)
	in := []any{int32(1), int32(2), int32(3), int32(4)}
	if err := Write(ptr, arr, in); err != nil {
		t.Fatal(err)
	}
	got, err := Read(ptr, arr)
	if err != nil {
		t.Fatal(err)
	}
	outs := got.([]any)
	for i, v := range outs {
		if v != in[i] {
			t.Errorf("element %d = %v, want %v", i, v, in[i])
		}
	}
}

func TestArrayLengthMismatch(t *testing.T) {
	a := arena.New()
	defer a.Destroy()
	arr, err := ctype.ArrayType(a, ctype.PrimitiveType(ctype.KindS32), 4)
	if err != nil {
		t.Fatal(err)
	}
	ptr := bufPtr(arr.Size)
	err = Write(ptr, arr, []any{int32(1), int32(2)})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestPrimitiveTypeMismatch(t *testing.T) {
	ptr := bufPtr(8)
	err := Write(ptr, ctype.PrimitiveType(ctype.KindS32), "not a number")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestNestedStructRoundTrip(t *testing.T) {
	a := arena.New()
	defer a.Destroy()
	inner := ctype.StructBegin(a)
	must(t, inner.AddMember("a", ctype.PrimitiveType(ctype.KindS8)))
	must(t, inner.AddMember("b", ctype.PrimitiveType(ctype.KindS32)))
	innerT, err := inner.StructEnd(false)
	if err != nil {
		t.Fatal(err)
	}

	outer := ctype.StructBegin(a)
	must(t, outer.AddMember("n", innerT))
	must(t, outer.AddMember("c", ctype.PrimitiveType(ctype.KindS8)))
	outerT, err := outer.StructEnd(false)
	if err != nil {
		t.Fatal(err)
	}

	ptr := bufPtr(outerT.Size)
	in := map[string]any{
		"n": map[string]any{"a": int8(1), "b": int32(2)},
		"c": int8(9),
	}
	if err := Write(ptr, outerT, in); err != nil {
		t.Fatal(err)
	}
	got, err := Read(ptr, outerT)
	if err != nil {
		t.Fatal(err)
	}
	fields := got.(map[string]any)
	nested := fields["n"].(map[string]any)
	if nested["a"] != int8(1) || nested["b"] != int32(2) || fields["c"] != int8(9) {
		t.Errorf("nested round-trip = %+v", fields)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
