package jit

import "github.com/xyproto/infix/internal/abi"

// emitReverseTrampolineAMD64 emits a SysV AMD64 reverse trampoline: a
// C-callable function body that receives its arguments in the native
// integer/SSE registers plan.Args describes, boxes each one into a
// scratch area on its own stack frame, and calls through to the
// shared dispatch bridge at bridgeAddr with (ctxID, &argPtrs[0],
// argCount, &retBuf) in RDI/RSI/RDX/RCX — the bridge's own fixed
// calling convention. ctxID is embedded directly as a 64-bit
// immediate, the "context pointer baked into the emitted code" this
// package's reverse direction has always been documented to do.
func emitReverseTrampolineAMD64(plan *abi.CallPlan, ctxID uintptr, bridgeAddr uintptr) []byte {
	a := &Assembler{}
	n := len(plan.Args)

	// Scratch layout below RBP: n eightbytes of boxed argument bytes,
	// then n eightbytes of pointers into those bytes, then one
	// eightbyte for the return value.
	total := alignedStackSpace(8 + 16*n)
	argBytesOff := func(i int) int32 { return int32(-total + i*8) }
	argPtrsOff := func(i int) int32 { return int32(-total + n*8 + i*8) }
	retBufOff := int32(-8)

	a.Push(RBP)
	a.MovRegReg(RBP, RSP)
	a.SubRspImm32(int32(total))

	for i, ap := range plan.Args {
		slot := ap.Slots[0]
		if slot.Class == abi.ClassSSE {
			a.MovsdMemXmm(RBP, argBytesOff(i), argFloatRegs[slot.RegIndex])
		} else {
			a.MovMemReg(RBP, argBytesOff(i), argIntRegs[slot.RegIndex])
		}
		a.LeaRegMem(R11, RBP, argBytesOff(i))
		a.MovMemReg(RBP, argPtrsOff(i), R11)
	}

	a.MovRegImm64(RDI, uint64(ctxID))
	if n > 0 {
		a.LeaRegMem(RSI, RBP, argPtrsOff(0))
	} else {
		a.MovRegImm64(RSI, 0)
	}
	a.MovRegImm64(RDX, uint64(n))
	a.LeaRegMem(RCX, RBP, retBufOff)
	a.MovRegImm64(R11, uint64(bridgeAddr))
	a.CallReg(R11)

	if len(plan.Ret.Slots) == 1 {
		slot := plan.Ret.Slots[0]
		if slot.Class == abi.ClassSSE {
			a.MovsdXmmMem(XMM0, RBP, retBufOff)
		} else {
			a.MovRegMem(RAX, RBP, retBufOff)
		}
	}

	a.MovRegReg(RSP, RBP) // discard the scratch area in one move
	a.Pop(RBP)
	a.Ret()

	return a.Bytes()
}
