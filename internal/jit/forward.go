package jit

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/xyproto/infix/internal/abi"
)

// ForwardFunc is the Go-callable shape of a compiled forward
// trampoline: symbol is the C function's address, retBuf receives the
// return value's bytes, argPtrs points at an array of pointers, one
// per logical argument, each pointing at that argument's bytes.
type ForwardFunc func(symbol, retBuf, argPtrs unsafe.Pointer)

// Trampoline owns the executable memory backing one compiled forward
// call plan. Bindings built from the same shape share one cached
// Trampoline (see Forward below) until Release frees it and drops it
// from the cache.
type Trampoline struct {
	buf  *ExecBuffer
	call ForwardFunc
	key  shapeKey
}

// Call invokes the compiled trampoline.
func (t *Trampoline) Call(symbol, retBuf, argPtrs unsafe.Pointer) {
	t.call(symbol, retBuf, argPtrs)
}

// Release removes the trampoline from the shape cache, so a later
// Forward call for the same shape builds a fresh one, and frees the
// underlying executable memory. Only safe once no Binding sharing this
// cached shape is still live.
func (t *Trampoline) Release() error {
	trampolineCache.CompareAndDelete(t.key, t)
	return t.buf.Free()
}

// shapeKey identifies a call plan's machine-code shape: two plans
// with the same key produce byte-identical trampolines, so the cache
// in Forward lets every Binding with the same (ABI, register
// classification) signature share one JIT'd buffer.
type shapeKey struct {
	arch      string
	abi       abi.ABI
	retByRef  bool
	retShape  string
	argsShape string
}

func shapeOf(plan *abi.CallPlan, arch string) shapeKey {
	retShape := ""
	for _, s := range plan.Ret.Slots {
		retShape += slotShape(s)
	}
	argsShape := ""
	for _, ap := range plan.Args {
		for _, s := range ap.Slots {
			argsShape += slotShape(s)
		}
		argsShape += "|"
	}
	return shapeKey{arch: arch, abi: plan.ABI, retByRef: plan.RetByRef, retShape: retShape, argsShape: argsShape}
}

func slotShape(s abi.Slot) string {
	reg := "s" // stack
	if s.RegIndex >= 0 {
		reg = "r"
	}
	byref := ""
	if s.ByRef {
		byref = "&"
	}
	return fmt.Sprintf("%d%s%d%s,", s.Class, reg, s.StackBytes, byref)
}

var trampolineCache sync.Map // shapeKey -> *Trampoline

// Forward returns the compiled forward trampoline for plan, building
// and caching a new one the first time this exact shape is seen.
func Forward(plan *abi.CallPlan) (*Trampoline, error) {
	arch := runtime.GOARCH
	key := shapeOf(plan, arch)
	if v, ok := trampolineCache.Load(key); ok {
		return v.(*Trampoline), nil
	}

	if plan.ABI == abi.MicrosoftX64 {
		return nil, fmt.Errorf("%w: no %v forward trampoline emitter", abi.ErrUnsupportedABI, plan.ABI)
	}

	var code []byte
	switch arch {
	case "amd64":
		code = emitForwardTrampolineAMD64(plan)
	case "arm64":
		code = emitForwardTrampolineARM64(plan)
	default:
		return nil, fmt.Errorf("jit: unsupported GOARCH %q for forward trampoline emission", arch)
	}

	buf, err := Allocate(len(code))
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(code); err != nil {
		buf.Free()
		return nil, err
	}
	if err := buf.Seal(); err != nil {
		buf.Free()
		return nil, err
	}

	t := &Trampoline{buf: buf, call: makeForwardFunc(buf.Base()), key: key}
	actual, loaded := trampolineCache.LoadOrStore(key, t)
	if loaded {
		t.buf.Free()
		return actual.(*Trampoline), nil
	}
	return t, nil
}

// funcValue mirrors the layout the Go runtime uses for a func value:
// a pointer to a structure whose first word is the function's entry
// PC. Constructing one by hand is the standard way a Go program
// invokes a raw block of JIT-compiled machine code as if it were an
// ordinary Go function value, without cgo.
type funcValue struct {
	codePtr uintptr
}

// makeForwardFunc builds a ForwardFunc whose entry point is addr.
func makeForwardFunc(addr uintptr) ForwardFunc {
	fv := &funcValue{codePtr: addr}
	var f ForwardFunc
	*(*unsafe.Pointer)(unsafe.Pointer(&f)) = unsafe.Pointer(fv)
	return f
}
