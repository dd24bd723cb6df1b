package marshal

import (
	"fmt"
	"unsafe"

	"github.com/xyproto/infix/internal/ctype"
)

// Write encodes host value v into C memory at dst according to t.
// Struct/union values are keyed by field name (map[string]any); array
// values are ordered (`[]any`); scalar values use the nearest Go
// numeric/bool type, and pointer-like values (including z/Z strings)
// take an unsafe.Pointer, a uintptr or nil. A Go string is not
// accepted here.
func Write(dst unsafe.Pointer, t *ctype.Descriptor, v any) error {
	if t == nil {
		return fmt.Errorf("%w: nil type descriptor", ErrTypeMismatch)
	}
	switch t.Category {
	case ctype.Void:
		return nil
	case ctype.Primitive:
		return writePrimitive(dst, t, v)
	case ctype.Pointer, ctype.Function:
		return writePointer(dst, v)
	case ctype.Array:
		return writeArray(dst, t, v)
	case ctype.Struct, ctype.Union:
		return writeAggregate(dst, t, v)
	default:
		return fmt.Errorf("%w: unhandled category %v", ErrTypeMismatch, t.Category)
	}
}

// Read decodes C memory at src per t into a host Go value, the
// inverse of Write: structs/unions decode to map[string]any, arrays to
// []any, scalars to the nearest native Go type.
func Read(src unsafe.Pointer, t *ctype.Descriptor) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type descriptor", ErrTypeMismatch)
	}
	switch t.Category {
	case ctype.Void:
		return nil, nil
	case ctype.Primitive:
		return readPrimitive(src, t)
	case ctype.Pointer, ctype.Function:
		return readPointer(src), nil
	case ctype.Array:
		return readArray(src, t)
	case ctype.Struct, ctype.Union:
		return readAggregate(src, t)
	default:
		return nil, fmt.Errorf("%w: unhandled category %v", ErrTypeMismatch, t.Category)
	}
}

func writePrimitive(dst unsafe.Pointer, t *ctype.Descriptor, v any) error {
	switch t.Kind {
	case ctype.KindBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: want bool, got %T", ErrTypeMismatch, v)
		}
		var u byte
		if b {
			u = 1
		}
		*(*byte)(dst) = u
	case ctype.KindS8:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		*(*int8)(dst) = int8(n)
	case ctype.KindU8:
		n, err := asUint64(v)
		if err != nil {
			return err
		}
		*(*uint8)(dst) = uint8(n)
	case ctype.KindS16:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		*(*int16)(dst) = int16(n)
	case ctype.KindU16:
		n, err := asUint64(v)
		if err != nil {
			return err
		}
		*(*uint16)(dst) = uint16(n)
	case ctype.KindS32:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		*(*int32)(dst) = int32(n)
	case ctype.KindU32:
		n, err := asUint64(v)
		if err != nil {
			return err
		}
		*(*uint32)(dst) = uint32(n)
	case ctype.KindS64:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		*(*int64)(dst) = n
	case ctype.KindU64:
		n, err := asUint64(v)
		if err != nil {
			return err
		}
		*(*uint64)(dst) = n
	case ctype.KindF32:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		*(*float32)(dst) = float32(f)
	case ctype.KindF64:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		*(*float64)(dst) = f
	case ctype.KindF80:
		return fmt.Errorf("%w: f80 (long double) marshalling is not supported", ErrTypeMismatch)
	case ctype.KindCString, ctype.KindWString, ctype.KindOpaquePointer:
		return writePointer(dst, v)
	default:
		return fmt.Errorf("%w: unknown primitive kind %v", ErrTypeMismatch, t.Kind)
	}
	return nil
}

func readPrimitive(src unsafe.Pointer, t *ctype.Descriptor) (any, error) {
	switch t.Kind {
	case ctype.KindBool:
		return *(*byte)(src) != 0, nil
	case ctype.KindS8:
		return *(*int8)(src), nil
	case ctype.KindU8:
		return *(*uint8)(src), nil
	case ctype.KindS16:
		return *(*int16)(src), nil
	case ctype.KindU16:
		return *(*uint16)(src), nil
	case ctype.KindS32:
		return *(*int32)(src), nil
	case ctype.KindU32:
		return *(*uint32)(src), nil
	case ctype.KindS64:
		return *(*int64)(src), nil
	case ctype.KindU64:
		return *(*uint64)(src), nil
	case ctype.KindF32:
		return *(*float32)(src), nil
	case ctype.KindF64:
		return *(*float64)(src), nil
	case ctype.KindF80:
		return nil, fmt.Errorf("%w: f80 (long double) marshalling is not supported", ErrTypeMismatch)
	case ctype.KindCString, ctype.KindWString, ctype.KindOpaquePointer:
		return readPointer(src), nil
	default:
		return nil, fmt.Errorf("%w: unknown primitive kind %v", ErrTypeMismatch, t.Kind)
	}
}

func writePointer(dst unsafe.Pointer, v any) error {
	switch p := v.(type) {
	case unsafe.Pointer:
		*(*uintptr)(dst) = uintptr(p)
	case uintptr:
		*(*uintptr)(dst) = p
	case nil:
		*(*uintptr)(dst) = 0
	default:
		return fmt.Errorf("%w: want a pointer-like value, got %T", ErrTypeMismatch, v)
	}
	return nil
}

func readPointer(src unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(*(*uintptr)(src))
}

func writeArray(dst unsafe.Pointer, t *ctype.Descriptor, v any) error {
	elems, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%w: array wants []any, got %T", ErrTypeMismatch, v)
	}
	if t.Count != 0 && len(elems) != t.Count {
		return fmt.Errorf("%w: array of %d wants %d elements, got %d", ErrLengthMismatch, t.Count, t.Count, len(elems))
	}
	for i, e := range elems {
		elemPtr := unsafe.Add(dst, i*t.Elem.Size)
		if err := Write(elemPtr, t.Elem, e); err != nil {
			return err
		}
	}
	return nil
}

func readArray(src unsafe.Pointer, t *ctype.Descriptor) (any, error) {
	out := make([]any, t.Count)
	for i := range out {
		elemPtr := unsafe.Add(src, i*t.Elem.Size)
		v, err := Read(elemPtr, t.Elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeAggregate(dst unsafe.Pointer, t *ctype.Descriptor, v any) error {
	fields, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: struct/union wants map[string]any, got %T", ErrTypeMismatch, v)
	}
	for _, m := range t.Members {
		fv, present := fields[m.Name]
		if !present {
			continue
		}
		memberPtr := unsafe.Add(dst, m.Offset)
		if err := Write(memberPtr, m.Type, fv); err != nil {
			return fmt.Errorf("field %q: %w", m.Name, err)
		}
	}
	return nil
}

func readAggregate(src unsafe.Pointer, t *ctype.Descriptor) (any, error) {
	out := make(map[string]any, len(t.Members))
	for _, m := range t.Members {
		memberPtr := unsafe.Add(src, m.Offset)
		v, err := Read(memberPtr, m.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", m.Name, err)
		}
		out[m.Name] = v
	}
	return out, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: want an integer, got %T", ErrTypeMismatch, v)
	}
}

func asUint64(v any) (uint64, error) {
	n, err := asInt64(v)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		in, err := asInt64(v)
		if err != nil {
			return 0, fmt.Errorf("%w: want a float, got %T", ErrTypeMismatch, v)
		}
		return float64(in), nil
	}
}
