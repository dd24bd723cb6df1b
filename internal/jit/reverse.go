package jit

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/xyproto/infix/internal/abi"
)

// ReverseHandler is the Go-side callback a reverse binding dispatches
// into: retBuf is where it must write the return value's bytes (if
// any), argPtrs holds one pointer per logical argument, each pointing
// at that argument's bytes, mirroring the reverse direction's
// "void handler(context*, void* ret_buf, void** arg_ptrs)" contract
// with the context already bound into the dispatch lookup rather than
// reread from an explicit parameter.
type ReverseHandler func(retBuf unsafe.Pointer, argPtrs []unsafe.Pointer)

// ReverseBinding is a live, callable-from-C function pointer backing
// one registered host callback. The executable memory is owned for
// the life of the process: a published C function pointer may be
// invoked by foreign code at any time, so there is no safe point at
// which to reclaim it short of process exit.
type ReverseBinding struct {
	buf   *ExecBuffer
	ctxID uintptr
}

// Addr is the C-callable function pointer to hand to the foreign
// library expecting a callback of this shape.
func (r *ReverseBinding) Addr() uintptr { return r.buf.Base() }

// reverseHandlers maps a reverse binding's ctxID to the Go handler the
// shared dispatch bridge below invokes. Entries are never removed:
// once a binding's machine code is handed to C it may be called for
// the remaining life of the process.
var (
	reverseHandlers sync.Map // uintptr(ctxID) -> ReverseHandler
	nextCtxID       uintptr
)

// dispatchOnce/dispatchAddr hold the single process-wide bridge from a
// raw C call back into the Go runtime. purego.NewCallback is the only
// viable way to do this safely — hand-written assembly cannot itself
// re-enter goroutine scheduling and GC bookkeeping — so it is
// registered exactly once, with a fixed signature, rather than once
// per callback signature. Every reverse trampoline this package emits
// calls through to this same address; the per-signature argument
// marshalling and register-shape handling happens in the emitted
// machine code itself (emitReverseTrampolineAMD64/ARM64), not here.
var (
	dispatchOnce sync.Once
	dispatchAddr uintptr
)

// reverseDispatchFunc is the bridge's fixed Go-side shape: ctxID
// identifies which registered handler to invoke, argPtrsAddr/argCount
// describe the boxed argument vector the trampoline built on its own
// stack frame, and retBufAddr is where the handler must write its
// result. The return value is unused (C ABI registers still expect
// something; zero is always returned).
func reverseDispatchFunc(ctxID, argPtrsAddr, argCount, retBufAddr uintptr) uintptr {
	v, ok := reverseHandlers.Load(ctxID)
	if !ok {
		return 0
	}
	handler := v.(ReverseHandler)

	var argPtrs []unsafe.Pointer
	if argCount > 0 {
		argPtrs = unsafe.Slice((*unsafe.Pointer)(unsafe.Pointer(argPtrsAddr)), int(argCount))
	}
	handler(unsafe.Pointer(retBufAddr), argPtrs)
	return 0
}

func ensureDispatch() uintptr {
	dispatchOnce.Do(func() {
		dispatchAddr = purego.NewCallback(reverseDispatchFunc)
	})
	return dispatchAddr
}

// Reverse builds a callable C function pointer for plan that invokes
// handler on every call, JIT-emitting the trampoline body the same
// way the forward direction does: a per-architecture Assembler
// (amd64) or ARM64Assembler builds a small machine-code body into an
// ExecBuffer, one per registered callback. The trampoline boxes each
// incoming register argument into a stack-local scratch area (so
// concurrent/reentrant calls through the same C function pointer never
// share mutable state), builds the []unsafe.Pointer vector the handler
// expects, and calls through to the single shared dispatch bridge.
//
// Every argument must occupy exactly one register slot and the return
// value at most one; by-reference returns, arguments or returns that
// span several registers, stack-passed arguments and Microsoft x64
// call plans are rejected with an error. The forward direction
// handles multi-register and stack-passed arguments; the reverse
// direction does not.
func Reverse(plan *abi.CallPlan, handler ReverseHandler) (*ReverseBinding, error) {
	if plan.ABI == abi.MicrosoftX64 {
		return nil, fmt.Errorf("%w: no %v reverse trampoline emitter", abi.ErrUnsupportedABI, plan.ABI)
	}
	if plan.RetByRef {
		return nil, fmt.Errorf("jit: reverse callbacks returning an aggregate by reference are not supported")
	}
	if len(plan.Ret.Slots) > 1 {
		return nil, fmt.Errorf("jit: reverse callbacks returning a multi-register aggregate are not supported")
	}
	for i, ap := range plan.Args {
		if len(ap.Slots) != 1 {
			return nil, fmt.Errorf("jit: reverse callback argument %d spans multiple registers (aggregate-by-value callbacks are unsupported)", i)
		}
		if ap.Slots[0].RegIndex < 0 {
			return nil, fmt.Errorf("jit: reverse callback argument %d is stack-passed, which reverse bindings do not support", i)
		}
	}

	bridgeAddr := ensureDispatch()
	ctxID := atomic.AddUintptr(&nextCtxID, 1)

	var code []byte
	switch runtime.GOARCH {
	case "amd64":
		code = emitReverseTrampolineAMD64(plan, ctxID, bridgeAddr)
	case "arm64":
		code = emitReverseTrampolineARM64(plan, ctxID, bridgeAddr)
	default:
		return nil, fmt.Errorf("jit: unsupported GOARCH %q for reverse trampoline emission", runtime.GOARCH)
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

	reverseHandlers.Store(ctxID, handler)
	return &ReverseBinding{buf: buf, ctxID: ctxID}, nil
}
