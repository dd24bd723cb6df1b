package jit

import "github.com/xyproto/infix/internal/abi"

// emitForwardTrampolineARM64 emits an AAPCS64 forward trampoline body
// for the same "void trampoline(void* symbol, void* ret_buf, void**
// arg_ptrs)" contract as the AMD64 emitter, with symbol/ret_buf/
// arg_ptrs arriving in X0/X1/X2.
func emitForwardTrampolineARM64(plan *abi.CallPlan) []byte {
	a := &ARM64Assembler{}

	a.StpPre(X29, X30, -16)
	a.AddImm(X29, SP, 0)
	a.StpPre(X19, X20, -16)
	a.StpPre(X21, X22, -16)

	a.MovReg(X19, X2) // arg_ptrs
	a.MovReg(X20, X0) // symbol
	a.MovReg(X21, X1) // ret_buf

	if plan.RetByRef {
		a.MovReg(X0, X21)
	}

	stackSpace := alignedStackSpaceARM64(plan.StackBytesUsed)
	if stackSpace > 0 {
		a.SubImm(SP, SP, uint16(stackSpace))
	}

	stackCursor := uint16(0)
	for i, ap := range plan.Args {
		a.LdrImm(X9, X19, uint16(i*8))
		for slotIdx, slot := range ap.Slots {
			srcOff := uint16(slotIdx * 8)
			switch {
			case slot.RegIndex >= 0 && slot.Class == abi.ClassSSE:
				a.LdrDImm(argFloatRegsARM64[slot.RegIndex], X9, srcOff)
			case slot.RegIndex >= 0:
				a.LdrImm(argIntRegsARM64[slot.RegIndex], X9, srcOff)
			default:
				// Stack-passed slot: copy StackBytes from the source
				// value in 8-byte units onto the outgoing stack frame,
				// mirroring the AMD64 emitter's stack-copy loop.
				for off := uint16(0); off < uint16(slot.StackBytes); off += 8 {
					a.LdrImm(X10, X9, srcOff+off)
					a.StrImm(X10, SP, stackCursor+off)
				}
				stackCursor += uint16(slot.StackBytes)
			}
		}
	}

	a.Blr(X20)

	if !plan.RetByRef {
		for slotIdx, slot := range plan.Ret.Slots {
			off := uint16(slotIdx * 8)
			if slot.Class == abi.ClassSSE {
				v := VReg(0)
				if slotIdx == 1 {
					v = 1
				}
				a.StrDImm(v, X21, off)
			} else {
				reg := X0
				if slotIdx == 1 {
					reg = X1
				}
				a.StrImm(reg, X21, off)
			}
		}
	}

	if stackSpace > 0 {
		a.AddImm(SP, SP, uint16(stackSpace))
	}

	a.LdpPost(X21, X22, 16)
	a.LdpPost(X19, X20, 16)
	a.LdpPost(X29, X30, 16)
	a.Ret()

	return a.Bytes()
}

// alignedStackSpaceARM64 rounds n up to a 16-byte boundary, AAPCS64's
// stack alignment requirement at a public interface (call) boundary.
func alignedStackSpaceARM64(n int) int {
	return (n + 15) &^ 15
}
