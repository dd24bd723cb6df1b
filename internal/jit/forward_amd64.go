package jit

import "github.com/xyproto/infix/internal/abi"

// emitForwardTrampolineAMD64 emits the body of a SysV AMD64 forward
// trampoline implementing "void trampoline(void* symbol, void*
// ret_buf, void** arg_ptrs)". The incoming registers are RDI=symbol,
// RSI=ret_buf, RDX=arg_ptrs (an array of pointers, one per logical
// argument, each pointing at that argument's bytes in host memory).
//
// The generated body: saves the three incoming values in
// callee-saved scratch registers, loads each call-plan slot from
// *arg_ptrs[i] into the register or stack position the plan assigns
// it, calls through to symbol, and copies the result out of
// RAX/XMM0(/RDX/XMM1 for two-eightbyte aggregate returns) into
// ret_buf — or, for a by-reference return, passes ret_buf itself as
// the hidden first argument.
func emitForwardTrampolineAMD64(plan *abi.CallPlan) []byte {
	a := &Assembler{}

	a.Push(RBP)
	a.MovRegReg(RBP, RSP)
	a.Push(R12) // arg_ptrs base
	a.Push(R13) // symbol
	a.Push(R14) // ret_buf

	a.MovRegReg(R13, RDI)
	a.MovRegReg(R14, RSI)
	a.MovRegReg(R12, RDX)

	stackSpace := alignedStackSpace(plan.StackBytesUsed)
	if stackSpace > 0 {
		a.SubRspImm32(int32(stackSpace))
	}

	if plan.RetByRef {
		a.MovRegReg(RDI, R14)
	}

	stackCursor := int32(0)
	for i, ap := range plan.Args {
		// elementPtr := arg_ptrs[i]; the value itself lives at *elementPtr.
		a.MovRegMem(RAX, R12, int32(i*8))
		for slotIdx, slot := range ap.Slots {
			srcOff := int32(slotIdx * 8)
			switch {
			case slot.RegIndex >= 0 && slot.Class == abi.ClassSSE:
				a.MovsdXmmMem(argFloatRegs[slot.RegIndex], RAX, srcOff)
			case slot.RegIndex >= 0:
				a.MovRegMem(argIntRegs[slot.RegIndex], RAX, srcOff)
			default:
				// Stack/memory slot: copy StackBytes from the source
				// value in 8-byte units onto the outgoing stack frame.
				for off := int32(0); off < int32(slot.StackBytes); off += 8 {
					a.MovRegMem(R11, RAX, srcOff+off)
					a.MovMemReg(RSP, stackCursor+off, R11)
				}
				stackCursor += int32(slot.StackBytes)
			}
		}
	}

	a.CallReg(R13)

	if !plan.RetByRef {
		for slotIdx, slot := range plan.Ret.Slots {
			off := int32(slotIdx * 8)
			if slot.Class == abi.ClassSSE {
				xmm := XMM0
				if slotIdx == 1 {
					xmm = XMM1
				}
				a.MovsdMemXmm(R14, off, xmm)
			} else {
				reg := RAX
				if slotIdx == 1 {
					reg = RDX
				}
				a.MovMemReg(R14, off, reg)
			}
		}
	}

	if stackSpace > 0 {
		a.AddRspImm32(int32(stackSpace))
	}
	a.Pop(R14)
	a.Pop(R13)
	a.Pop(R12)
	a.Pop(RBP)
	a.Ret()

	return a.Bytes()
}

// alignedStackSpace rounds n up to a 16-byte boundary, the SysV AMD64
// stack alignment requirement at a call instruction.
func alignedStackSpace(n int) int {
	return (n + 15) &^ 15
}
