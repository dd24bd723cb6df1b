package sig

import (
	"errors"
	"testing"

	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/ctype"
)

// TestParseTwoIntArgsIntReturn covers two fixed int arguments, int
// return.
func TestParseTwoIntArgsIntReturn(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	fn, err := Parse("i,i;i", a)
	if err != nil {
		t.Fatal(err)
	}
	if fn.Category != ctype.Function {
		t.Fatalf("category = %v, want Function", fn.Category)
	}
	if len(fn.Args) != 2 || fn.FixedArgCount != 2 {
		t.Fatalf("args = %v fixed=%d, want 2 fixed", fn.Args, fn.FixedArgCount)
	}
	if fn.Args[0].Kind != ctype.KindS32 || fn.Args[1].Kind != ctype.KindS32 {
		t.Fatalf("arg kinds = %v, %v, want s32, s32", fn.Args[0].Kind, fn.Args[1].Kind)
	}
	if fn.Ret.Kind != ctype.KindS32 {
		t.Fatalf("ret kind = %v, want s32", fn.Ret.Kind)
	}
}

// TestParseStructByValueArgDoubleReturn covers a struct-by-value
// argument with a double return.
func TestParseStructByValueArgDoubleReturn(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	fn, err := Parse("{x:d,y:d};d", a)
	if err != nil {
		t.Fatal(err)
	}
	if len(fn.Args) != 1 {
		t.Fatalf("args = %d, want 1", len(fn.Args))
	}
	st := fn.Args[0]
	if st.Category != ctype.Struct {
		t.Fatalf("arg category = %v, want Struct", st.Category)
	}
	if len(st.Members) != 2 || st.Members[0].Name != "x" || st.Members[1].Name != "y" {
		t.Fatalf("members = %+v", st.Members)
	}
	if fn.Ret.Kind != ctype.KindF64 {
		t.Fatalf("ret kind = %v, want f64", fn.Ret.Kind)
	}
}

// TestParseFixedArrayArgVoidReturn covers a fixed-size array argument
// with a void return.
func TestParseFixedArrayArgVoidReturn(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	fn, err := Parse("[i;4];v", a)
	if err != nil {
		t.Fatal(err)
	}
	if len(fn.Args) != 1 {
		t.Fatalf("args = %d, want 1", len(fn.Args))
	}
	arr := fn.Args[0]
	if arr.Category != ctype.Array || arr.Count != 4 {
		t.Fatalf("arg = %+v, want array of 4", arr)
	}
	if fn.Ret.Category != ctype.Void {
		t.Fatalf("ret = %v, want void", fn.Ret.Category)
	}
}

// TestParseVariadic covers the fixed;variadic;ret form for something
// like sprintf(char*, ...) -> int.
func TestParseVariadic(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	fn, err := Parse("z;i,d;i", a)
	if err != nil {
		t.Fatal(err)
	}
	if fn.FixedArgCount != 1 {
		t.Fatalf("fixed = %d, want 1", fn.FixedArgCount)
	}
	if len(fn.Args) != 3 {
		t.Fatalf("args = %d, want 3", len(fn.Args))
	}
	if !fn.Variadic() {
		t.Fatal("expected Variadic() == true")
	}
}

// TestParseBareReturn covers a signature with no arguments at all.
func TestParseBareReturn(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	fn, err := Parse("i", a)
	if err != nil {
		t.Fatal(err)
	}
	if len(fn.Args) != 0 {
		t.Fatalf("args = %d, want 0", len(fn.Args))
	}
	if fn.Ret.Kind != ctype.KindS32 {
		t.Fatalf("ret = %v, want s32", fn.Ret.Kind)
	}
}

func TestParseFunctionPointerArgument(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	// qsort-shaped: a pointer, a count, a size, and a comparator
	// function pointer taking two opaque pointers and returning int.
	fn, err := Parse("p,L,L,(p,p;i);v", a)
	if err != nil {
		t.Fatal(err)
	}
	cmp := fn.Args[3]
	if cmp.Category != ctype.Pointer || cmp.Pointee == nil || cmp.Pointee.Category != ctype.Function {
		t.Fatalf("comparator arg = %+v, want pointer-to-function", cmp)
	}
	if len(cmp.Pointee.Args) != 2 || cmp.Pointee.Ret.Kind != ctype.KindS32 {
		t.Fatalf("comparator signature = %+v", cmp.Pointee)
	}
}

func TestParseUnion(t *testing.T) {
	a := arena.New()
	defer a.Destroy()

	fn, err := Parse("<i:i,d:d>;v", a)
	if err != nil {
		t.Fatal(err)
	}
	u := fn.Args[0]
	if u.Category != ctype.Union {
		t.Fatalf("category = %v, want Union", u.Category)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		sig  string
		want error
	}{
		{"unterminated struct", "{x:i", ErrUnexpectedEOF},
		{"unknown ident", "Foo;v", ErrUnexpectedChar},
		{"duplicate field", "{x:i,x:i};v", ErrDuplicateField},
		{"trailing garbage", "i;i$", ErrUnexpectedChar},
		{"empty", "", ErrUnexpectedEOF},
		{"missing array count", "[i;];v", ErrUnexpectedChar},
		{"too many semicolons", "i;i;i;i", ErrUnbalanced},
		{"unbalanced closing paren", "i)", ErrUnbalanced},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := arena.New()
			defer a.Destroy()
			_, err := Parse(c.sig, a)
			if err == nil {
				t.Fatalf("Parse(%q): expected error", c.sig)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q): error %v is not a *ParseError", c.sig, err)
			}
			if !errors.Is(err, c.want) {
				t.Fatalf("Parse(%q): error = %v, want reason %v", c.sig, err, c.want)
			}
		})
	}
}

// TestParserTotalityRoundTrip checks that every signature that parses
// without error re-emits to a string that parses back to an
// equivalent descriptor (same textual shape, since Emit is a pure
// function of the descriptor tree).
func TestParserTotalityRoundTrip(t *testing.T) {
	sigs := []string{
		"i,i;i",
		"{x:d,y:d};d",
		"[i;4];v",
		"z;i,d;i",
		"i",
		"p,L,L,(p,p;i);v",
		"<i:i,d:d>;v",
		"*i;*i",
		"{a:c,b:i,c:c};v",
	}
	for _, want := range sigs {
		a := arena.New()
		fn, err := Parse(want, a)
		if err != nil {
			t.Fatalf("Parse(%q): %v", want, err)
		}
		emitted := Emit(fn)

		a2 := arena.New()
		fn2, err := Parse(emitted, a2)
		if err != nil {
			t.Fatalf("Parse(%q) emitted from %q: %v", emitted, want, err)
		}
		if Emit(fn2) != emitted {
			t.Fatalf("round-trip unstable: %q -> %q -> %q", want, emitted, Emit(fn2))
		}
		a.Destroy()
		a2.Destroy()
	}
}
