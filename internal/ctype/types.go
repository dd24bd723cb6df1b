// Package ctype implements the self-describing, arena-owned C type
// descriptor graph: primitives, pointers, arrays, structs, unions and
// function signatures, with sizes, alignments and field offsets
// computed at construction time. ABI classification is not stored on
// descriptors; package abi computes it separately.
//
// Descriptors are tagged variants (a single struct with a Category
// discriminant), not an interface hierarchy — this keeps the hot
// marshalling path a single switch over Category rather than a vtable
// dispatch, per the flat "match on the descriptor's category tag"
// design this repo follows throughout.
package ctype

import (
	"fmt"

	"github.com/xyproto/infix/internal/arena"
)

// Category discriminates the descriptor variants this package models.
type Category uint8

const (
	Void Category = iota
	Primitive
	Pointer
	Array
	Struct
	Union
	Function
)

func (c Category) String() string {
	switch c {
	case Void:
		return "void"
	case Primitive:
		return "primitive"
	case Pointer:
		return "pointer"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Union:
		return "union"
	case Function:
		return "function"
	default:
		return "unknown"
	}
}

// PrimitiveKind enumerates the scalar kinds a Primitive descriptor can
// hold, matching the signature grammar's prim tokens one-to-one.
type PrimitiveKind uint8

const (
	KindBool PrimitiveKind = iota
	KindS8
	KindU8
	KindS16
	KindU16
	KindS32
	KindU32
	KindS64
	KindU64
	KindF32
	KindF64
	KindF80 // "long double" — size/align fixed, rejected by the ABI classifier as an argument or return type
	KindCString
	KindWString
	KindOpaquePointer
)

func (k PrimitiveKind) String() string {
	names := [...]string{
		"bool", "s8", "u8", "s16", "u16", "s32", "u32", "s64", "u64",
		"f32", "f64", "f80", "cstring", "wstring", "pointer",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// IsFloat reports whether the kind is classified as a floating-point
// register value by the ABI classifier.
func (k PrimitiveKind) IsFloat() bool {
	return k == KindF32 || k == KindF64 || k == KindF80
}

// IsInteger reports whether the kind occupies an integer/pointer slot.
func (k PrimitiveKind) IsInteger() bool {
	return !k.IsFloat()
}

// kindLayout is the (size, alignment) pair for a primitive kind on our
// supported 64-bit targets. "long"/"unsigned long" are folded into
// KindS64/KindU64 by the parser since every target this engine builds
// trampolines for is LP64.
func kindLayout(k PrimitiveKind, wordSize int) (size, align int) {
	switch k {
	case KindBool, KindS8, KindU8:
		return 1, 1
	case KindS16, KindU16:
		return 2, 2
	case KindS32, KindU32, KindF32:
		return 4, 4
	case KindS64, KindU64, KindF64:
		return 8, 8
	case KindF80:
		return 16, 16
	case KindCString, KindWString, KindOpaquePointer:
		return wordSize, wordSize
	default:
		return 0, 1
	}
}

// Member is one field of a Struct or Union descriptor.
type Member struct {
	Name   string // interned in the owning arena
	Offset int    // byte offset within the aggregate
	Type   *Descriptor
}

// Descriptor is a node in the type graph. Every variant shares
// Category/Size/Alignment; the rest of the fields are populated
// according to Category and are zero otherwise.
type Descriptor struct {
	Category  Category
	Size      int // bytes
	Alignment int // bytes, power of two

	Kind PrimitiveKind // valid iff Category == Primitive

	Pointee *Descriptor // valid iff Category == Pointer; nil means opaque

	Elem  *Descriptor // valid iff Category == Array
	Count int         // valid iff Category == Array; 0 means flexible

	Members []Member // valid iff Category == Struct || Category == Union
	Packed  bool      // valid iff Category == Struct

	Ret           *Descriptor   // valid iff Category == Function
	Args          []*Descriptor // valid iff Category == Function
	FixedArgCount int           // valid iff Category == Function; < len(Args) means variadic
}

// Variadic reports whether a function descriptor takes variable
// arguments past FixedArgCount.
func (d *Descriptor) Variadic() bool {
	return d.Category == Function && d.FixedArgCount < len(d.Args)
}

func (d *Descriptor) String() string {
	if d == nil {
		return "<nil>"
	}
	switch d.Category {
	case Void:
		return "void"
	case Primitive:
		return d.Kind.String()
	case Pointer:
		if d.Pointee == nil {
			return "*void"
		}
		return "*" + d.Pointee.String()
	case Array:
		return fmt.Sprintf("[%s;%d]", d.Elem, d.Count)
	case Struct, Union:
		kw := "struct"
		if d.Category == Union {
			kw = "union"
		}
		s := kw + "{"
		for i, m := range d.Members {
			if i > 0 {
				s += ","
			}
			s += m.Name + ":" + m.Type.String()
		}
		return s + "}"
	case Function:
		s := "("
		for i, a := range d.Args {
			if i > 0 {
				s += ","
			}
			s += a.String()
		}
		return s + ")" + d.Ret.String()
	default:
		return "?"
	}
}

// WordSize is the pointer/word size this build targets: 8 bytes on all
// supported 64-bit hosts (amd64, arm64).
const WordSize = 8

// sharedVoid and sharedPrimitives are process-lifetime statics:
// primitive(kind) returns a shared, immutable static for each kind —
// no arena needed.
var sharedVoid = &Descriptor{Category: Void, Size: 0, Alignment: 1}

var sharedPrimitives = func() [16]*Descriptor {
	var arr [16]*Descriptor
	for k := KindBool; k <= KindOpaquePointer; k++ {
		size, align := kindLayout(k, WordSize)
		arr[k] = &Descriptor{Category: Primitive, Kind: k, Size: size, Alignment: align}
	}
	return arr
}()

// VoidType returns the shared void descriptor.
func VoidType() *Descriptor { return sharedVoid }

// PrimitiveType returns the shared static descriptor for kind k.
func PrimitiveType(k PrimitiveKind) *Descriptor {
	if int(k) >= len(sharedPrimitives) {
		panic(fmt.Sprintf("ctype: unknown primitive kind %d", k))
	}
	return sharedPrimitives[k]
}

// PointerType builds a pointer descriptor to pointee (nil for an
// opaque pointer) in arena a.
func PointerType(a *arena.Arena, pointee *Descriptor) (*Descriptor, error) {
	d, err := allocDescriptor(a)
	if err != nil {
		return nil, err
	}
	d.Category = Pointer
	d.Size = WordSize
	d.Alignment = WordSize
	d.Pointee = pointee
	return d, nil
}

// ArrayType builds an array descriptor of count elements of elem in
// arena a. count == 0 denotes a flexible array member (only valid as
// a struct's final member; enforced by StructEnd).
func ArrayType(a *arena.Arena, elem *Descriptor, count int) (*Descriptor, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: array count %d", ErrInvalidLayout, count)
	}
	d, err := allocDescriptor(a)
	if err != nil {
		return nil, err
	}
	d.Category = Array
	d.Elem = elem
	d.Count = count
	d.Size = elem.Size * count
	d.Alignment = elem.Alignment
	if d.Alignment == 0 {
		d.Alignment = 1
	}
	return d, nil
}

// FunctionType builds a function descriptor: ret, args in order,
// fixedArgCount marking where variadic arguments begin (fixedArgCount
// == len(args) for a non-variadic signature).
func FunctionType(a *arena.Arena, ret *Descriptor, args []*Descriptor, fixedArgCount int) (*Descriptor, error) {
	if fixedArgCount < 0 || fixedArgCount > len(args) {
		return nil, fmt.Errorf("%w: fixed arg count %d out of range for %d args", ErrInvalidLayout, fixedArgCount, len(args))
	}
	d, err := allocDescriptor(a)
	if err != nil {
		return nil, err
	}
	d.Category = Function
	d.Ret = ret
	d.Args = args
	d.FixedArgCount = fixedArgCount
	return d, nil
}

// allocDescriptor carves a zeroed Descriptor out of the arena. We
// allocate the Go struct directly (not via arena bytes + unsafe cast)
// since descriptor graphs are small and this keeps the type system
// honest; the arena's job here is to own the *lifetime*, not the raw
// bytes, matching the "arena follows the descriptor" ownership rule.
func allocDescriptor(a *arena.Arena) (*Descriptor, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil arena", ErrInvalidLayout)
	}
	if a.Destroyed() {
		return nil, fmt.Errorf("%w: arena already destroyed", ErrInvalidLayout)
	}
	return &Descriptor{}, nil
}
