package ctype

import (
	"testing"

	"github.com/xyproto/infix/internal/arena"
)

// TestStructLayoutMixedSizeMembers checks that "{a:c,b:i,c:c}" on a
// typical 64-bit ABI yields offsets {a:0, b:4, c:8} and total size 12
// with alignment 4.
func TestStructLayoutMixedSizeMembers(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	b := StructBegin(a)
	must(t, b.AddMember("a", PrimitiveType(KindS8)))
	must(t, b.AddMember("b", PrimitiveType(KindS32)))
	must(t, b.AddMember("c", PrimitiveType(KindS8)))
	s, err := b.StructEnd(false)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]int{"a": 0, "b": 4, "c": 8}
	for _, m := range s.Members {
		if m.Offset != want[m.Name] {
			t.Errorf("member %s: offset = %d, want %d", m.Name, m.Offset, want[m.Name])
		}
	}
	if s.Size != 12 {
		t.Errorf("size = %d, want 12", s.Size)
	}
	if s.Alignment != 4 {
		t.Errorf("alignment = %d, want 4", s.Alignment)
	}
}

// TestLayoutInvariant checks that no member ever overlaps another and
// every offset respects its member's own alignment, across a handful
// of struct shapes.
func TestLayoutInvariant(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	shapes := [][]PrimitiveKind{
		{KindU8, KindU64, KindU8},
		{KindU16, KindU8, KindU32, KindU8},
		{KindF64, KindF32, KindS64},
	}

	for _, shape := range shapes {
		b := StructBegin(a)
		for i, k := range shape {
			must(t, b.AddMember(fieldName(i), PrimitiveType(k)))
		}
		s, err := b.StructEnd(false)
		if err != nil {
			t.Fatal(err)
		}

		prevEnd := 0
		for i, m := range s.Members {
			if m.Offset%m.Type.Alignment != 0 {
				t.Errorf("shape %v: member %d offset %d not aligned to %d", shape, i, m.Offset, m.Type.Alignment)
			}
			if m.Offset < prevEnd {
				t.Errorf("shape %v: member %d offset %d overlaps previous end %d", shape, i, m.Offset, prevEnd)
			}
			prevEnd = m.Offset + m.Type.Size
		}
		if s.Size%s.Alignment != 0 {
			t.Errorf("shape %v: total size %d not a multiple of alignment %d", shape, s.Size, s.Alignment)
		}
	}
}

func TestPackedStructHasNoPadding(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	b := StructBegin(a)
	must(t, b.AddMember("a", PrimitiveType(KindS8)))
	must(t, b.AddMember("b", PrimitiveType(KindS32)))
	s, err := b.StructEnd(true)
	if err != nil {
		t.Fatal(err)
	}
	if s.Members[1].Offset != 1 {
		t.Errorf("packed offset = %d, want 1", s.Members[1].Offset)
	}
	if s.Size != 5 {
		t.Errorf("packed size = %d, want 5", s.Size)
	}
	if s.Alignment != 1 {
		t.Errorf("packed alignment = %d, want 1", s.Alignment)
	}
}

func TestUnionLayout(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	b := UnionBegin(a)
	must(t, b.AddMember("i", PrimitiveType(KindS32)))
	must(t, b.AddMember("d", PrimitiveType(KindF64)))
	u, err := b.UnionEnd()
	if err != nil {
		t.Fatal(err)
	}
	if u.Size != 8 {
		t.Errorf("union size = %d, want 8", u.Size)
	}
	if u.Alignment != 8 {
		t.Errorf("union alignment = %d, want 8", u.Alignment)
	}
	for _, m := range u.Members {
		if m.Offset != 0 {
			t.Errorf("union member %s offset = %d, want 0", m.Name, m.Offset)
		}
	}
}

func TestZeroSizeMemberRejected(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	b := StructBegin(a)
	must(t, b.AddMember("v", VoidType()))
	if _, err := b.StructEnd(false); err == nil {
		t.Fatal("expected INVALID_LAYOUT for a zero-size member")
	}
}

func TestFlexibleArrayMemberMustBeLast(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	flex, err := ArrayType(a, PrimitiveType(KindS32), 0)
	if err != nil {
		t.Fatal(err)
	}

	b := StructBegin(a)
	must(t, b.AddMember("items", flex))
	must(t, b.AddMember("trailing", PrimitiveType(KindS32)))
	if _, err := b.StructEnd(false); err == nil {
		t.Fatal("expected INVALID_LAYOUT when the flexible array member isn't last")
	}
}

func TestDuplicateFieldRejected(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	b := StructBegin(a)
	must(t, b.AddMember("x", PrimitiveType(KindS32)))
	if err := b.AddMember("x", PrimitiveType(KindS32)); err == nil {
		t.Fatal("expected DUPLICATE_FIELD error")
	}
}

func fieldName(i int) string {
	return string(rune('a' + i))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
