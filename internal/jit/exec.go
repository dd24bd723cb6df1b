// Package jit JIT-compiles forward and reverse call trampolines into
// executable memory at runtime. Forward trampolines implement the
// contract "void trampoline(void* symbol, void* ret_buf, void**
// arg_ptrs)"; reverse trampolines implement "void handler(context*,
// void* ret_buf, void** arg_ptrs)" with the context pointer embedded
// as an immediate in the emitted code, per the per-architecture
// encoders in asm_amd64.go/asm_arm64.go.
package jit

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Sentinel errors for executable-memory allocation failures.
var (
	ErrAllocFailed   = errors.New("JIT_ALLOC_FAILED")
	ErrProtectFailed = errors.New("JIT_PROTECT_FAILED")
)

// state is ExecBuffer's lifecycle: writable (RW, code may still be
// patched) -> sealed (RX, callable) -> freed.
type state uint8

const (
	stateWritable state = iota
	stateSealed
	stateFreed
)

// ExecBuffer is a single mmap'd page range toggled between RW and RX
// with mprotect: allocate writable, write code, seal to executable,
// free. This build uses a single mapping whose protection is toggled
// in place rather than two separate RW/RX mappings of the same
// physical pages (dual-mapping, needed on
// hardened Apple Silicon/OpenBSD, is a documented non-goal here).
type ExecBuffer struct {
	mu    sync.Mutex
	mem   []byte
	used  int
	state state
}

// Allocate reserves size bytes of RW memory, rounded up to a page.
func Allocate(size int) (*ExecBuffer, error) {
	if size <= 0 {
		size = 1
	}
	pageSize := unix.Getpagesize()
	pages := (size + pageSize - 1) / pageSize
	mem, err := unix.Mmap(-1, 0, pages*pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrAllocFailed, pages*pageSize, err)
	}
	return &ExecBuffer{mem: mem}, nil
}

// Write appends code to the buffer. Valid only before Seal.
func (b *ExecBuffer) Write(code []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateWritable {
		return 0, fmt.Errorf("jit: Write on a %v ExecBuffer", b.state)
	}
	if b.used+len(code) > len(b.mem) {
		return 0, fmt.Errorf("%w: code %d bytes exceeds buffer capacity %d", ErrAllocFailed, len(code), len(b.mem))
	}
	off := b.used
	copy(b.mem[off:], code)
	b.used += len(code)
	return off, nil
}

// Base returns the address of the start of the buffer, valid for
// computing call targets/relative offsets once Seal has been called.
func (b *ExecBuffer) Base() uintptr {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uintptr(unsafeSliceAddr(b.mem))
}

// Seal makes the buffer executable and read-only, after which Write
// fails and the buffer's address may be called as a function pointer.
func (b *ExecBuffer) Seal() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateWritable {
		return fmt.Errorf("jit: Seal on a %v ExecBuffer", b.state)
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("%w: %v", ErrProtectFailed, err)
	}
	b.state = stateSealed
	return nil
}

// Free unmaps the buffer. Safe to call on an already-freed buffer.
func (b *ExecBuffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateFreed {
		return nil
	}
	if err := unix.Munmap(b.mem); err != nil {
		return fmt.Errorf("jit: munmap: %v", err)
	}
	b.state = stateFreed
	b.mem = nil
	return nil
}

func (s state) String() string {
	switch s {
	case stateWritable:
		return "writable"
	case stateSealed:
		return "sealed"
	case stateFreed:
		return "freed"
	default:
		return "unknown"
	}
}
