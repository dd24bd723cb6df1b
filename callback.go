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

// callbackState is a reverse binding's lifecycle:
// PREPARED → PUBLISHED → RETIRED.
type callbackState uint8

const (
	statePREPARED callbackState = iota
	statePUBLISHED
	stateRETIRED
)

func (s callbackState) String() string {
	switch s {
	case statePREPARED:
		return "PREPARED"
	case statePUBLISHED:
		return "PUBLISHED"
	case stateRETIRED:
		return "RETIRED"
	default:
		return "UNKNOWN"
	}
}

// HostCallable is a reverse-binding's Go-side handler: it receives the
// already-unmarshalled arguments (in the same []any/map[string]any/
// scalar shape Write/Read use) and returns a value to marshal back, or
// an error to signal the handler itself failed (marshalled as the
// Ret type's zero value to the C caller, since the C ABI has no
// channel for Go errors).
type HostCallable func(args []any) (any, error)

// Callback is a live, C-callable function pointer backing one
// registered host handler — a reverse binding: it owns a function
// descriptor in its own arena, the host callable, and the reverse
// trampoline's entry point.
type Callback struct {
	mu      sync.Mutex
	state   callbackState
	arena   *arena.Arena
	fn      *ctype.Descriptor
	plan    *abi.CallPlan
	handler HostCallable
	rev     *jit.ReverseBinding
}

// NewCallback builds a reverse binding for handler under signature,
// producing a raw C function pointer once Addr is called. The returned
// Callback is PREPARED; call Addr to publish the raw pointer to C.
func NewCallback(handler HostCallable, signature string) (*Callback, error) {
	a := newArena()
	fn, err := sig.Parse(signature, a)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	plan, err := abi.Classify(fn, currentABI())
	if err != nil {
		a.Destroy()
		return nil, err
	}

	c := &Callback{arena: a, fn: fn, plan: plan, handler: handler, state: statePREPARED}

	dispatch := func(retBuf unsafe.Pointer, argPtrs []unsafe.Pointer) {
		// The trampoline's return slot is one uninitialised eightbyte;
		// clear it so every early return below hands C a zero value.
		*(*uint64)(retBuf) = 0
		args := make([]any, len(fn.Args))
		for i, t := range fn.Args {
			v, err := marshal.Read(argPtrs[i], t)
			if err != nil {
				Logf("callback %s: argument %d unmarshal failed: %v", signature, i, err)
				return
			}
			args[i] = v
		}
		result, err := handler(args)
		if err != nil {
			Logf("callback %s: handler returned error: %v", signature, err)
			return
		}
		if fn.Ret.Category == ctype.Void {
			return
		}
		if err := marshal.Write(retBuf, fn.Ret, result); err != nil {
			Logf("callback %s: return marshal failed: %v", signature, err)
		}
	}

	rev, err := jit.Reverse(plan, dispatch)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	c.rev = rev

	Logf("prepared callback %s", sig.Emit(fn))
	return c, nil
}

// Addr publishes and returns the raw C function pointer. Once
// published, the C world may hold and invoke the pointer at any time
// on any thread; the Callback must outlive every possible call.
func (c *Callback) Addr() (uintptr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateRETIRED {
		return 0, stateErr("Addr", c.state.String())
	}
	c.state = statePUBLISHED
	return c.rev.Addr(), nil
}

// Signature re-emits the callback's descriptor as a signature string.
func (c *Callback) Signature() string {
	return sig.Emit(c.fn)
}

// Release retires the callback. This is the caller's obligation once
// PUBLISHED: using the raw pointer after Release is undefined. Release
// frees the descriptor arena; the
// underlying machine code page backing the registered trampoline is
// owned by the process' callback registry for its lifetime (the same
// boundary the reverse-trampoline bridge itself documents), so
// RETIRED only means "the subsystem considers this pointer dead", not
// that the page is reclaimed.
func (c *Callback) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateRETIRED {
		return fmt.Errorf("infix: Release: %w", stateErr("Release", c.state.String()))
	}
	c.arena.Destroy()
	c.state = stateRETIRED
	return nil
}
