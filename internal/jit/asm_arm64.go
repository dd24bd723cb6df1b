package jit

import "encoding/binary"

// AArch64 instruction-word encoder: fixed 32-bit little-endian
// instructions built by packing opcode and imm/reg fields with
// shift-and-or. Only the forms the AAPCS64 forward trampoline needs
// are implemented.

// ARM64Reg is a general-purpose register by its AAPCS64 encoding
// (x0-x30, with 31 standing for sp in load/store base position).
type ARM64Reg byte

const (
	X0 ARM64Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29 // fp
	X30 // lr
)

const SP ARM64Reg = 31

// VReg is a vector/float register (d0-d31 used as 64-bit scalar here).
type VReg byte

// ARM64Assembler accumulates 32-bit instruction words.
type ARM64Assembler struct {
	buf []byte
}

func (a *ARM64Assembler) Bytes() []byte { return a.buf }

func (a *ARM64Assembler) emit(instr uint32) {
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], instr)
	a.buf = append(a.buf, w[:]...)
}

// LdrImm emits "ldr Xt, [Xn, #imm]" (unsigned 12-bit scaled
// immediate, 64-bit variant): 1111 1001 01 | imm12 | Rn | Rt. imm is
// a byte offset, a multiple of 8; imm12 holds imm/8.
func (a *ARM64Assembler) LdrImm(t, n ARM64Reg, imm uint16) {
	instr := uint32(0xF9400000) | (uint32((imm/8)&0xFFF) << 10) | (uint32(n&31) << 5) | uint32(t&31)
	a.emit(instr)
}

// StrImm emits "str Xt, [Xn, #imm]" (64-bit variant):
// 1111 1001 00 | imm12 | Rn | Rt. imm is a byte offset, scaled as in
// LdrImm.
func (a *ARM64Assembler) StrImm(t, n ARM64Reg, imm uint16) {
	instr := uint32(0xF9000000) | (uint32((imm/8)&0xFFF) << 10) | (uint32(n&31) << 5) | uint32(t&31)
	a.emit(instr)
}

// LdrDImm emits "ldr Dt, [Xn, #imm]" (64-bit float load, scaled imm12;
// imm is a byte offset, scaled as in LdrImm).
func (a *ARM64Assembler) LdrDImm(t VReg, n ARM64Reg, imm uint16) {
	instr := uint32(0xFD400000) | (uint32((imm/8)&0xFFF) << 10) | (uint32(n&31) << 5) | uint32(t&31)
	a.emit(instr)
}

// StrDImm emits "str Dt, [Xn, #imm]" (imm is a byte offset, scaled as
// in LdrImm).
func (a *ARM64Assembler) StrDImm(t VReg, n ARM64Reg, imm uint16) {
	instr := uint32(0xFD000000) | (uint32((imm/8)&0xFFF) << 10) | (uint32(n&31) << 5) | uint32(t&31)
	a.emit(instr)
}

// MovReg emits "mov Xd, Xm" (encoded as "orr Xd, XZR, Xm").
func (a *ARM64Assembler) MovReg(d, m ARM64Reg) {
	instr := uint32(0xAA0003E0) | (uint32(m&31) << 16) | uint32(d&31)
	a.emit(instr)
}

// MovImm16 emits "movz Xd, #imm16" (no shift).
func (a *ARM64Assembler) MovImm16(d ARM64Reg, imm uint16) {
	instr := uint32(0xD2800000) | (uint32(imm) << 5) | uint32(d&31)
	a.emit(instr)
}

// Movk16 emits "movk Xd, #imm16, lsl #shift" (shift in {0,16,32,48}).
func (a *ARM64Assembler) Movk16(d ARM64Reg, imm uint16, shift uint8) {
	hw := uint32(shift/16) & 0x3
	instr := uint32(0xF2800000) | (hw << 21) | (uint32(imm) << 5) | uint32(d&31)
	a.emit(instr)
}

// MovImm64 loads a full 64-bit immediate via movz+movk*3.
func (a *ARM64Assembler) MovImm64(d ARM64Reg, imm uint64) {
	a.MovImm16(d, uint16(imm))
	a.Movk16(d, uint16(imm>>16), 16)
	a.Movk16(d, uint16(imm>>32), 32)
	a.Movk16(d, uint16(imm>>48), 48)
}

// AddImm emits "add Xd, Xn, #imm" (64-bit, unshifted imm12).
func (a *ARM64Assembler) AddImm(d, n ARM64Reg, imm uint16) {
	instr := uint32(0x91000000) | (uint32(imm&0xFFF) << 10) | (uint32(n&31) << 5) | uint32(d&31)
	a.emit(instr)
}

// SubImm emits "sub Xd, Xn, #imm" (64-bit, unshifted imm12).
func (a *ARM64Assembler) SubImm(d, n ARM64Reg, imm uint16) {
	instr := uint32(0xD1000000) | (uint32(imm&0xFFF) << 10) | (uint32(n&31) << 5) | uint32(d&31)
	a.emit(instr)
}

// Blr emits "blr Xn" (branch with link to register).
func (a *ARM64Assembler) Blr(n ARM64Reg) {
	instr := uint32(0xD63F0000) | (uint32(n&31) << 5)
	a.emit(instr)
}

// Ret emits "ret" (return to LR/X30).
func (a *ARM64Assembler) Ret() {
	a.emit(0xD65F0000 | (uint32(X30) << 5))
}

// StpPre emits "stp Xt1, Xt2, [sp, #imm]!" (pre-indexed pair push),
// imm a signed multiple of 8 in [-512,504].
func (a *ARM64Assembler) StpPre(t1, t2 ARM64Reg, imm int16) {
	scaled := uint32(imm/8) & 0x7F
	instr := uint32(0xA9800000) | (scaled << 15) | (uint32(t2&31) << 10) | (uint32(SP&31) << 5) | uint32(t1&31)
	a.emit(instr)
}

// LdpPost emits "ldp Xt1, Xt2, [sp], #imm" (post-indexed pair pop).
func (a *ARM64Assembler) LdpPost(t1, t2 ARM64Reg, imm int16) {
	scaled := uint32(imm/8) & 0x7F
	instr := uint32(0xA8C00000) | (scaled << 15) | (uint32(t2&31) << 10) | (uint32(SP&31) << 5) | uint32(t1&31)
	a.emit(instr)
}

// argIntRegsARM64/argFloatRegsARM64 are the AAPCS64 argument registers.
var argIntRegsARM64 = [...]ARM64Reg{X0, X1, X2, X3, X4, X5, X6, X7}
var argFloatRegsARM64 = [...]VReg{0, 1, 2, 3, 4, 5, 6, 7}
