package infix

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/xyproto/infix/internal/abi"
	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/ctype"
	"github.com/xyproto/infix/internal/jit"
	"github.com/xyproto/infix/internal/marshal"
	"github.com/xyproto/infix/internal/sig"
)

// bindingState is a Binding's forward-only lifecycle:
// UNBOUND → PARSED → CLASSIFIED → EMITTED → ACTIVE → RELEASED.
type bindingState uint8

const (
	stateUnbound bindingState = iota
	statePARSED
	stateCLASSIFIED
	stateEMITTED
	stateACTIVE
	stateRELEASED
)

func (s bindingState) String() string {
	switch s {
	case stateUnbound:
		return "UNBOUND"
	case statePARSED:
		return "PARSED"
	case stateCLASSIFIED:
		return "CLASSIFIED"
	case stateEMITTED:
		return "EMITTED"
	case stateACTIVE:
		return "ACTIVE"
	case stateRELEASED:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// Binding is an installed callable wrapping one resolved C symbol: it
// owns a function descriptor in an arena, a resolved symbol pointer, a
// JIT-emitted forward trampoline, and a cached argument descriptor
// vector. Created by Bind; released by Release.
type Binding struct {
	mu     sync.Mutex
	state  bindingState
	name   string
	arena  *arena.Arena
	fn     *ctype.Descriptor
	plan   *abi.CallPlan
	symbol uintptr
	tramp  *jit.Trampoline
}

// Bind installs a callable for lib's exported symbol name, whose C
// signature is given by the textual grammar signature parses. The
// returned Binding owns the parsed descriptor's arena, the resolved
// symbol, and a cached forward trampoline — it is ready to Call
// immediately.
func Bind(lib *Library, name, signature string) (*Binding, error) {
	symbol, err := lib.FindSymbol(name)
	if err != nil {
		return nil, err
	}

	a := newArena()
	b := &Binding{name: name, arena: a, symbol: symbol, state: stateUnbound}

	fn, err := sig.Parse(signature, a)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	b.fn = fn
	b.state = statePARSED

	plan, err := abi.Classify(fn, currentABI())
	if err != nil {
		a.Destroy()
		return nil, err
	}
	b.plan = plan
	b.state = stateCLASSIFIED

	tramp, err := jit.Forward(plan)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	b.tramp = tramp
	b.state = stateEMITTED
	b.state = stateACTIVE

	Logf("bound %s%s -> %s", name, sig.Emit(fn), currentABI())
	return b, nil
}

// Wrap is Bind followed by a variadic-call closure: the returned
// function marshals its arguments through the binding and returns the
// unmarshalled result (or nil for a void return).
func Wrap(lib *Library, name, signature string) (func(args ...any) (any, error), error) {
	b, err := Bind(lib, name, signature)
	if err != nil {
		return nil, err
	}
	return b.Call, nil
}

// Call marshals args into the trampoline's argument-pointer vector per
// the binding's call plan, invokes the forward trampoline, and
// unmarshals the return buffer. Fails with ErrInvalidState if the
// binding has been released.
func (b *Binding) Call(args ...any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateACTIVE {
		return nil, fmt.Errorf("infix: Call: %w", stateErr("Call", b.state.String()))
	}
	if len(args) != len(b.fn.Args) {
		return nil, fmt.Errorf("%w: %s wants %d arguments, got %d", ErrLengthMismatch, b.name, len(b.fn.Args), len(args))
	}

	argBufs := make([][]byte, len(args))
	argPtrs := make([]unsafe.Pointer, len(args))
	var toFree []uintptr
	for i, t := range b.fn.Args {
		v := args[i]
		if s, ok := v.(string); ok && isStringKind(t) {
			ptr, err := newCString(t, s)
			if err != nil {
				freeAll(toFree)
				return nil, err
			}
			toFree = append(toFree, ptr)
			v = ptr
		} else if elems, ok := v.([]any); ok && t.Category == ctype.Pointer {
			ptr, err := newArrayBuffer(t, elems)
			if err != nil {
				freeAll(toFree)
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			toFree = append(toFree, ptr)
			v = ptr
		}
		buf := make([]byte, maxInt(t.Size, 8))
		if err := marshal.Write(unsafe.Pointer(&buf[0]), t, v); err != nil {
			freeAll(toFree)
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		argBufs[i] = buf
		argPtrs[i] = unsafe.Pointer(&buf[0])
	}

	var retBuf []byte
	if b.fn.Ret.Category != ctype.Void {
		retBuf = make([]byte, maxInt(b.fn.Ret.Size, 8))
	} else {
		retBuf = make([]byte, 8)
	}

	var argPtrsPtr unsafe.Pointer
	if len(argPtrs) > 0 {
		argPtrsPtr = unsafe.Pointer(&argPtrs[0])
	}
	b.tramp.Call(unsafe.Pointer(b.symbol), unsafe.Pointer(&retBuf[0]), argPtrsPtr)
	freeAll(toFree)

	if b.fn.Ret.Category == ctype.Void {
		return nil, nil
	}
	return marshal.Read(unsafe.Pointer(&retBuf[0]), b.fn.Ret)
}

// Signature re-emits the bound function's descriptor as a signature
// string, useful for logging/introspection.
func (b *Binding) Signature() string {
	return sig.Emit(b.fn)
}

// Release frees the trampoline's executable pages and destroys the
// descriptor arena. Calling Release more than once, or calling it on
// a binding that failed construction, fails with ErrInvalidState.
func (b *Binding) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateACTIVE {
		return stateErr("Release", b.state.String())
	}
	err := b.tramp.Release()
	b.arena.Destroy()
	b.state = stateRELEASED
	return err
}

func isStringKind(t *ctype.Descriptor) bool {
	return t.Category == ctype.Primitive && (t.Kind == ctype.KindCString || t.Kind == ctype.KindWString)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
