package jit

import "github.com/xyproto/infix/internal/abi"

// emitReverseTrampolineARM64 emits an AAPCS64 reverse trampoline, the
// same contract as emitReverseTrampolineAMD64: box each incoming
// register argument into a scratch area on this call's own stack
// frame, then call the shared dispatch bridge with (ctxID,
// &argPtrs[0], argCount, &retBuf) in X0/X1/X2/X3.
func emitReverseTrampolineARM64(plan *abi.CallPlan, ctxID uintptr, bridgeAddr uintptr) []byte {
	a := &ARM64Assembler{}
	n := len(plan.Args)

	// Scratch layout from SP: n eightbytes of boxed argument bytes,
	// then n eightbytes of pointers into those bytes, then one
	// eightbyte for the return value.
	total := alignedStackSpaceARM64(8 + 16*n)
	argBytesOff := func(i int) uint16 { return uint16(i * 8) }
	argPtrsOff := func(i int) uint16 { return uint16(n*8 + i*8) }
	retBufOff := uint16(16 * n)

	a.StpPre(X29, X30, -16)
	a.AddImm(X29, SP, 0)
	a.SubImm(SP, SP, uint16(total))

	for i, ap := range plan.Args {
		slot := ap.Slots[0]
		if slot.Class == abi.ClassSSE {
			a.StrDImm(argFloatRegsARM64[slot.RegIndex], SP, argBytesOff(i))
		} else {
			a.StrImm(argIntRegsARM64[slot.RegIndex], SP, argBytesOff(i))
		}
		a.AddImm(X10, SP, argBytesOff(i))
		a.StrImm(X10, SP, argPtrsOff(i))
	}

	a.MovImm64(X0, uint64(ctxID))
	if n > 0 {
		a.AddImm(X1, SP, argPtrsOff(0))
	} else {
		a.MovImm64(X1, 0)
	}
	a.MovImm64(X2, uint64(n))
	a.AddImm(X3, SP, retBufOff)
	a.MovImm64(X9, uint64(bridgeAddr))
	a.Blr(X9)

	if len(plan.Ret.Slots) == 1 {
		slot := plan.Ret.Slots[0]
		if slot.Class == abi.ClassSSE {
			a.LdrDImm(0, SP, retBufOff)
		} else {
			a.LdrImm(X0, SP, retBufOff)
		}
	}

	a.AddImm(SP, SP, uint16(total))
	a.LdpPost(X29, X30, 16)
	a.Ret()

	return a.Bytes()
}
