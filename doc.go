// Package infix is a dynamic Foreign Function Interface engine: it
// lets a Go program call arbitrary exported C functions from shared
// libraries, and expose Go callables as native C function pointers,
// without any per-target compiled glue.
//
// The hard engineering lives in four subsystems, leaf to root:
//
//   - internal/ctype — a self-describing, arena-allocated C type
//     descriptor graph (primitives, pointers, arrays, structs, unions,
//     function signatures) with computed sizes, alignments, field
//     offsets.
//   - internal/sig — a recursive-descent parser compiling the
//     compact textual type grammar into that descriptor graph.
//   - internal/abi + internal/jit — a per-platform ABI classifier
//     and a trampoline JIT engine realising the call in both
//     directions: Bind (host calling C) and NewCallback (C calling
//     host).
//   - internal/marshal — bidirectional conversion between Go dynamic
//     values and typed C memory.
//
// A typical forward call:
//
//	lib, _ := infix.LoadLibrary("")
//	abs, _ := infix.Bind(lib, "abs", "i;i")
//	defer abs.Release()
//	result, _ := abs.Call(-7) // result == int32(7)
//
// A typical reverse call (a Go comparator driving C's qsort):
//
//	cmp, _ := infix.NewCallback(func(args []any) (any, error) {
//		a := *(*int32)(unsafe.Pointer(uintptr(args[0].(unsafe.Pointer))))
//		b := *(*int32)(unsafe.Pointer(uintptr(args[1].(unsafe.Pointer))))
//		return int32(a - b), nil
//	}, "p,p;i")
//	defer cmp.Release()
//	addr, _ := cmp.Addr()
package infix
