package sig

import "github.com/xyproto/infix/internal/ctype"

// primLetters maps a primitive kind back to its grammar letter, the
// inverse of primDescriptor, so Emit can round-trip a descriptor
// produced by Parse back into the same textual grammar:
// parse(emit(parse(s))) describes the same type.
var primLetters = map[ctype.PrimitiveKind]byte{
	ctype.KindBool:          'b',
	ctype.KindS8:            'c',
	ctype.KindU8:            'C',
	ctype.KindS16:           's',
	ctype.KindU16:           'S',
	ctype.KindS32:           'i',
	ctype.KindU32:           'I',
	ctype.KindS64:           'q',
	ctype.KindU64:           'Q',
	ctype.KindF32:           'f',
	ctype.KindF64:           'd',
	ctype.KindF80:           'e',
	ctype.KindCString:       'z',
	ctype.KindWString:       'Z',
	ctype.KindOpaquePointer: 'p',
}

// Emit re-serializes a descriptor tree into the signature grammar. fn
// must be a Function descriptor for the top-level form (with the
// fixed/variadic ";" split reproduced); EmitType handles any other
// descriptor, including one embedded via a "(" sig ")" function
// pointer.
func Emit(fn *ctype.Descriptor) string {
	if fn == nil || fn.Category != ctype.Function {
		return EmitType(fn)
	}
	fixed := fn.Args[:fn.FixedArgCount]
	variadic := fn.Args[fn.FixedArgCount:]

	out := ""
	if len(fixed) > 0 {
		out += emitTypeList(fixed)
	}
	if len(variadic) > 0 {
		out += ";" + emitTypeList(variadic)
	}
	if len(fn.Args) > 0 {
		out += ";"
	}
	out += EmitType(fn.Ret)
	return out
}

func emitTypeList(types []*ctype.Descriptor) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += EmitType(t)
	}
	return out
}

// EmitType re-serializes a single "type" production.
func EmitType(d *ctype.Descriptor) string {
	if d == nil {
		return "p"
	}
	switch d.Category {
	case ctype.Void:
		return "v"
	case ctype.Primitive:
		letter, ok := primLetters[d.Kind]
		if !ok {
			return "p"
		}
		return string(letter)
	case ctype.Pointer:
		if d.Pointee != nil && d.Pointee.Category == ctype.Function {
			return "(" + Emit(d.Pointee) + ")"
		}
		return "*" + EmitType(d.Pointee)
	case ctype.Array:
		return "[" + EmitType(d.Elem) + ";" + itoa(d.Count) + "]"
	case ctype.Struct:
		return "{" + emitFields(d.Members) + "}"
	case ctype.Union:
		return "<" + emitFields(d.Members) + ">"
	case ctype.Function:
		return "(" + Emit(d) + ")"
	default:
		return "v"
	}
}

func emitFields(members []ctype.Member) string {
	out := ""
	for i, m := range members {
		if i > 0 {
			out += ","
		}
		out += m.Name + ":" + EmitType(m.Type)
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
