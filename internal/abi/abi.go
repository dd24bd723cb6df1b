// Package abi classifies a function descriptor's arguments and return
// value into a concrete call plan for one of three supported platform
// calling conventions: System V AMD64 (Linux/macOS/BSD on amd64),
// Microsoft x64 (Windows on amd64) and AAPCS64 (arm64). The classifier
// is pure and ABI-agnostic of register *names* — it only decides
// which register file (integer, SSE) or stack/memory slot each
// argument eightbyte lands in, structured slot classification rather
// than register-name strings for code generation.
package abi

import (
	"errors"
	"fmt"

	"github.com/xyproto/infix/internal/ctype"
)

// ABI names one of the three supported platform conventions.
type ABI uint8

const (
	SysVAMD64 ABI = iota
	MicrosoftX64
	AAPCS64
)

func (a ABI) String() string {
	switch a {
	case SysVAMD64:
		return "sysv-amd64"
	case MicrosoftX64:
		return "microsoft-x64"
	case AAPCS64:
		return "aapcs64"
	default:
		return "unknown-abi"
	}
}

// ErrUnsupportedABI is returned for an ABI value this package does not
// recognize, and for a long double (f80) argument or return type.
var ErrUnsupportedABI = errors.New("UNSUPPORTED_ABI")

// Class names which resource kind a value slot consumes.
type Class uint8

const (
	ClassInteger Class = iota // a general-purpose register, or a stack/shadow slot holding an integer-like value
	ClassSSE                  // a vector/float register, or a stack slot holding a float-like value
	ClassMemory               // the value itself lives in caller-allocated memory; a hidden pointer is passed instead
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassSSE:
		return "sse"
	case ClassMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// Slot describes where one eightbyte (or, for ClassMemory, the whole
// value) is passed.
type Slot struct {
	Class      Class
	RegIndex   int  // index into the per-class register file this slot consumes, -1 if on the stack
	StackBytes int  // size of this slot's stack footprint when RegIndex == -1
	ByRef      bool // true if a hidden pointer stands in for the value (Win64/AAPCS64 large aggregates)
	DupInteger bool // true if a variadic float also loads into the matching GP register (Win64 rule)
}

// ArgPlan is the full classification of one argument: one or more
// Slots (an aggregate may span several eightbytes), the argument's
// total size, and whether it was demoted to ClassMemory/ByRef.
type ArgPlan struct {
	Type  *ctype.Descriptor
	Slots []Slot
}

// CallPlan is the complete classification of a function descriptor:
// where the return value goes, and where each argument goes, plus the
// register counts consumed so a trampoline emitter knows how many
// registers versus how much stack space a call needs.
type CallPlan struct {
	ABI            ABI
	Ret            ArgPlan
	RetByRef       bool // return value too large for registers; a hidden pointer argument is prepended
	Args           []ArgPlan
	IntRegsUsed    int
	SSERegsUsed    int
	StackBytesUsed int
	VariadicAt     int // index into Args where variadic arguments begin (len(Args) if none)
}

// register file sizes per ABI, used to decide register-vs-stack.
func regFileSizes(a ABI) (intRegs, sseRegs int) {
	switch a {
	case SysVAMD64:
		return 6, 8
	case MicrosoftX64:
		return 4, 4
	case AAPCS64:
		return 8, 8
	default:
		return 0, 0
	}
}

// Classify computes the call plan for fn under abi. fn must be a
// Function descriptor.
func Classify(fn *ctype.Descriptor, a ABI) (*CallPlan, error) {
	if fn == nil || fn.Category != ctype.Function {
		return nil, fmt.Errorf("abi: Classify requires a Function descriptor, got %v", fn)
	}
	if a != SysVAMD64 && a != MicrosoftX64 && a != AAPCS64 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedABI, a)
	}
	for _, t := range append([]*ctype.Descriptor{fn.Ret}, fn.Args...) {
		if t != nil && t.Category == ctype.Primitive && t.Kind == ctype.KindF80 {
			return nil, fmt.Errorf("%w: long double (f80) arguments and returns are not supported", ErrUnsupportedABI)
		}
	}

	plan := &CallPlan{ABI: a, VariadicAt: fn.FixedArgCount}
	intRegs, sseRegs := regFileSizes(a)

	// Classify the return value first: a large aggregate return is
	// passed via a hidden pointer in the first integer argument slot
	// (SysV: RDI; Win64/AAPCS64: X0/RCX), which the caller must account
	// for before classifying the real arguments.
	retPlan, retByRef := classifyReturn(fn.Ret, a)
	plan.Ret = ArgPlan{Type: fn.Ret, Slots: retPlan}
	plan.RetByRef = retByRef
	if retByRef {
		plan.IntRegsUsed = 1
	}

	for i, argType := range fn.Args {
		variadic := i >= plan.VariadicAt
		ap, err := classifyArg(argType, a, variadic, &plan.IntRegsUsed, &plan.SSERegsUsed, intRegs, sseRegs, &plan.StackBytesUsed)
		if err != nil {
			return nil, err
		}
		plan.Args = append(plan.Args, ap)
	}
	return plan, nil
}

// classifyReturn decides whether fn's return type fits in register(s)
// or must be returned via a hidden out-pointer.
func classifyReturn(ret *ctype.Descriptor, a ABI) ([]Slot, bool) {
	if ret == nil || ret.Category == ctype.Void {
		return nil, false
	}
	switch ret.Category {
	case ctype.Primitive, ctype.Pointer:
		return []Slot{{Class: classOfScalar(ret), RegIndex: 0}}, false
	case ctype.Struct, ctype.Union, ctype.Array:
		switch a {
		case SysVAMD64:
			if ret.Size <= 16 {
				return eightbyteClasses(ret), false
			}
			return nil, true
		case MicrosoftX64:
			if isPow2UpTo8(ret.Size) {
				return []Slot{{Class: ClassInteger, RegIndex: 0}}, false
			}
			return nil, true
		case AAPCS64:
			if isHFA(ret) {
				return hfaSlots(ret), false
			}
			if ret.Size <= 16 {
				return eightbyteClasses(ret), false
			}
			return nil, true
		}
	}
	return nil, false
}

// classifyArg assigns one argument to registers or the stack,
// mutating the running intUsed/sseUsed/stackUsed counters. variadic
// marks an argument past the function's fixed arity, triggering the
// per-ABI variadic rule: AAPCS64 routes every variadic argument to the
// stack regardless of free registers, and Microsoft x64 duplicates a
// variadic float into the positionally-matching integer register
// alongside its SSE register.
func classifyArg(t *ctype.Descriptor, a ABI, variadic bool, intUsed, sseUsed *int, intMax, sseMax int, stackUsed *int) (ArgPlan, error) {
	if t == nil {
		return ArgPlan{}, fmt.Errorf("abi: nil argument type")
	}

	switch t.Category {
	case ctype.Primitive, ctype.Pointer, ctype.Void:
		class := classOfScalar(t)

		if a == AAPCS64 && variadic {
			sz := wordAlign(maxInt(t.Size, 8))
			*stackUsed += sz
			return ArgPlan{Type: t, Slots: []Slot{{Class: class, RegIndex: -1, StackBytes: sz}}}, nil
		}

		if class == ClassSSE && a == MicrosoftX64 && variadic {
			if *sseUsed < sseMax && *intUsed < intMax {
				slot := Slot{Class: ClassSSE, RegIndex: *sseUsed, DupInteger: true}
				*sseUsed++
				*intUsed++
				return ArgPlan{Type: t, Slots: []Slot{slot}}, nil
			}
		} else if class == ClassSSE {
			if *sseUsed < sseMax {
				slot := Slot{Class: ClassSSE, RegIndex: *sseUsed}
				*sseUsed++
				return ArgPlan{Type: t, Slots: []Slot{slot}}, nil
			}
		} else {
			if *intUsed < intMax {
				slot := Slot{Class: ClassInteger, RegIndex: *intUsed}
				*intUsed++
				return ArgPlan{Type: t, Slots: []Slot{slot}}, nil
			}
		}
		sz := wordAlign(maxInt(t.Size, 8))
		slot := Slot{Class: class, RegIndex: -1, StackBytes: sz}
		*stackUsed += sz
		return ArgPlan{Type: t, Slots: []Slot{slot}}, nil

	case ctype.Struct, ctype.Union, ctype.Array:
		return classifyAggregateArg(t, a, variadic, intUsed, sseUsed, intMax, sseMax, stackUsed)

	default:
		return ArgPlan{}, fmt.Errorf("abi: cannot classify category %v", t.Category)
	}
}

func classifyAggregateArg(t *ctype.Descriptor, a ABI, variadic bool, intUsed, sseUsed *int, intMax, sseMax int, stackUsed *int) (ArgPlan, error) {
	switch a {
	case SysVAMD64:
		if t.Size > 16 {
			sz := wordAlign(t.Size)
			*stackUsed += sz
			return ArgPlan{Type: t, Slots: []Slot{{Class: ClassMemory, RegIndex: -1, StackBytes: sz}}}, nil
		}
		classes := eightbyteClasses(t)
		// All-or-nothing: if the eightbytes don't all fit in the
		// currently-available registers of their class, the whole
		// aggregate is demoted to the stack (SysV §3.2.3 classification rule).
		needInt, needSSE := 0, 0
		for _, c := range classes {
			if c.Class == ClassSSE {
				needSSE++
			} else {
				needInt++
			}
		}
		if *intUsed+needInt <= intMax && *sseUsed+needSSE <= sseMax {
			slots := make([]Slot, len(classes))
			for i, c := range classes {
				if c.Class == ClassSSE {
					slots[i] = Slot{Class: ClassSSE, RegIndex: *sseUsed}
					*sseUsed++
				} else {
					slots[i] = Slot{Class: ClassInteger, RegIndex: *intUsed}
					*intUsed++
				}
			}
			return ArgPlan{Type: t, Slots: slots}, nil
		}
		sz := wordAlign(t.Size)
		*stackUsed += sz
		return ArgPlan{Type: t, Slots: []Slot{{Class: ClassMemory, RegIndex: -1, StackBytes: sz}}}, nil

	case MicrosoftX64:
		// Win64 never splits an aggregate across registers: sizes of
		// exactly 1/2/4/8 bytes pass in one integer register (or the
		// stack slot that mirrors it); anything else passes by
		// reference, with the pointer itself occupying one slot.
		if isPow2UpTo8(t.Size) {
			if *intUsed < intMax {
				slot := Slot{Class: ClassInteger, RegIndex: *intUsed}
				*intUsed++
				return ArgPlan{Type: t, Slots: []Slot{slot}}, nil
			}
			*stackUsed += 8
			return ArgPlan{Type: t, Slots: []Slot{{Class: ClassInteger, RegIndex: -1, StackBytes: 8}}}, nil
		}
		if *intUsed < intMax {
			slot := Slot{Class: ClassInteger, RegIndex: *intUsed, ByRef: true}
			*intUsed++
			return ArgPlan{Type: t, Slots: []Slot{slot}}, nil
		}
		*stackUsed += 8
		return ArgPlan{Type: t, Slots: []Slot{{Class: ClassInteger, RegIndex: -1, StackBytes: 8, ByRef: true}}}, nil

	case AAPCS64:
		if variadic {
			sz := wordAlign(t.Size)
			*stackUsed += sz
			return ArgPlan{Type: t, Slots: []Slot{{Class: ClassMemory, RegIndex: -1, StackBytes: sz}}}, nil
		}
		if isHFA(t) {
			slots := hfaSlots(t)
			if *sseUsed+len(slots) <= sseMax {
				for i := range slots {
					slots[i].RegIndex = *sseUsed
					*sseUsed++
				}
				return ArgPlan{Type: t, Slots: slots}, nil
			}
			sz := wordAlign(t.Size)
			*stackUsed += sz
			return ArgPlan{Type: t, Slots: []Slot{{Class: ClassMemory, RegIndex: -1, StackBytes: sz}}}, nil
		}
		if t.Size <= 16 {
			n := (t.Size + 7) / 8
			if n < 1 {
				n = 1
			}
			if *intUsed+n <= intMax {
				slots := make([]Slot, n)
				for i := range slots {
					slots[i] = Slot{Class: ClassInteger, RegIndex: *intUsed}
					*intUsed++
				}
				return ArgPlan{Type: t, Slots: slots}, nil
			}
			sz := wordAlign(t.Size)
			*stackUsed += sz
			return ArgPlan{Type: t, Slots: []Slot{{Class: ClassMemory, RegIndex: -1, StackBytes: sz}}}, nil
		}
		// Larger than 16 bytes: passed by reference (AAPCS64 §5.4.2 rule C.9/C.10).
		if *intUsed < intMax {
			slot := Slot{Class: ClassInteger, RegIndex: *intUsed, ByRef: true}
			*intUsed++
			return ArgPlan{Type: t, Slots: []Slot{slot}}, nil
		}
		*stackUsed += 8
		return ArgPlan{Type: t, Slots: []Slot{{Class: ClassInteger, RegIndex: -1, StackBytes: 8, ByRef: true}}}, nil
	}
	return ArgPlan{}, fmt.Errorf("%w: %v", ErrUnsupportedABI, a)
}

func classOfScalar(t *ctype.Descriptor) Class {
	if t.Category == ctype.Primitive && t.Kind.IsFloat() {
		return ClassSSE
	}
	return ClassInteger
}

// eightbyteClasses classifies a struct/union/array of at most 16 bytes
// into one or two eightbyte classes per the SysV AMD64 merge rule: an
// eightbyte touched by any integer-like field is INTEGER; one touched
// only by float fields is SSE.
func eightbyteClasses(t *ctype.Descriptor) []Slot {
	n := (t.Size + 7) / 8
	if n < 1 {
		n = 1
	}
	classes := make([]Class, n)
	for i := range classes {
		classes[i] = ClassSSE // start optimistic; any integer field downgrades it
	}
	walkFields(t, 0, func(offset int, leaf *ctype.Descriptor) {
		if leaf.Category == ctype.Primitive && !leaf.Kind.IsFloat() || leaf.Category == ctype.Pointer {
			lo, hi := offset/8, (offset+maxInt(leaf.Size, 1)-1)/8
			for i := lo; i <= hi && i < n; i++ {
				classes[i] = ClassInteger
			}
		}
	})
	slots := make([]Slot, n)
	for i, c := range classes {
		slots[i] = Slot{Class: c}
	}
	return slots
}

// walkFields recursively visits every primitive/pointer leaf of a
// struct/union/array descriptor with its absolute byte offset.
func walkFields(t *ctype.Descriptor, base int, visit func(offset int, leaf *ctype.Descriptor)) {
	switch t.Category {
	case ctype.Primitive, ctype.Pointer:
		visit(base, t)
	case ctype.Struct, ctype.Union:
		for _, m := range t.Members {
			walkFields(m.Type, base+m.Offset, visit)
		}
	case ctype.Array:
		for i := 0; i < t.Count; i++ {
			walkFields(t.Elem, base+i*t.Elem.Size, visit)
		}
	}
}

// isHFA reports whether t is a Homogeneous Floating-point Aggregate
// under AAPCS64: a struct of 1-4 members, all the same float kind (f32
// or f64), no mixed types, no arrays of non-float.
func isHFA(t *ctype.Descriptor) bool {
	if t.Category != ctype.Struct || len(t.Members) == 0 || len(t.Members) > 4 {
		return false
	}
	var kind ctype.PrimitiveKind
	for i, m := range t.Members {
		if m.Type.Category != ctype.Primitive || !m.Type.Kind.IsFloat() || m.Type.Kind == ctype.KindF80 {
			return false
		}
		if i == 0 {
			kind = m.Type.Kind
		} else if m.Type.Kind != kind {
			return false
		}
	}
	return true
}

func hfaSlots(t *ctype.Descriptor) []Slot {
	slots := make([]Slot, len(t.Members))
	for i := range slots {
		slots[i] = Slot{Class: ClassSSE}
	}
	return slots
}

func isPow2UpTo8(size int) bool {
	return size == 1 || size == 2 || size == 4 || size == 8
}

func wordAlign(n int) int {
	return (n + 7) &^ 7
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
