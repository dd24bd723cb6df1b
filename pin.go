package infix

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/ctype"
	"github.com/xyproto/infix/internal/marshal"
	"github.com/xyproto/infix/internal/sig"
)

// Pin is a live two-way binding between a host scalar and a typed C
// storage cell: reads run the descriptor's unmarshal over the
// address, writes run its marshal. Unpin always destroys the pin's
// descriptor arena, and also frees the address if ownsMemory.
type Pin struct {
	mu         sync.Mutex
	addr       uintptr
	t          *ctype.Descriptor
	arena      *arena.Arena
	ownsMemory bool
	unpinned   bool
}

// PinSymbol attaches a Pin to lib's exported data symbol — the
// address is owned by the library, not the pin.
func PinSymbol(lib *Library, symbol, signature string) (*Pin, error) {
	addr, err := lib.FindSymbol(symbol)
	if err != nil {
		return nil, err
	}
	a := newArena()
	t, err := sig.ParseType(signature, a)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	return &Pin{addr: addr, t: t, arena: a, ownsMemory: false}, nil
}

// PinAlloc allocates a fresh, zeroed C storage cell for t and pins it,
// with ownsMemory true: Unpin frees the allocation.
func PinAlloc(signature string) (*Pin, error) {
	a := newArena()
	t, err := sig.ParseType(signature, a)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	addr, err := Alloc(t, 1)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	return &Pin{addr: addr, t: t, arena: a, ownsMemory: true}, nil
}

// Get is the pin's read side: unmarshal(address, descriptor).
func (p *Pin) Get() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unpinned {
		return nil, stateErr("Get", "UNPINNED")
	}
	return marshal.Read(unsafe.Pointer(p.addr), p.t)
}

// Set is the pin's write side: marshal(address, value, descriptor).
func (p *Pin) Set(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unpinned {
		return stateErr("Set", "UNPINNED")
	}
	return marshal.Write(unsafe.Pointer(p.addr), p.t, v)
}

// Addr is the pinned C address, for building a TypedPointer or
// passing to another binding's pointer argument.
func (p *Pin) Addr() uintptr { return p.addr }

// Unpin detaches the pin and destroys its descriptor arena. If
// ownsMemory, the address is freed as well.
func (p *Pin) Unpin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unpinned {
		return fmt.Errorf("infix: Unpin: %w", stateErr("Unpin", "UNPINNED"))
	}
	var err error
	if p.ownsMemory {
		err = Free(p.addr)
	}
	p.arena.Destroy()
	p.unpinned = true
	return err
}

// TypedPointer is an array-iterator view of a pin: it couples a Pin
// to an element count and a cursor, so a C pointer can be walked like
// the array it was allocated as.
type TypedPointer struct {
	pin      *Pin
	count    int
	position int
}

// NewTypedPointer wraps pin as a count-element array, cursor starting
// at 0.
func NewTypedPointer(pin *Pin, count int) *TypedPointer {
	return &TypedPointer{pin: pin, count: count}
}

// At reads the element at absolute index i, failing with
// ErrOutOfBounds if i is outside [0, count).
func (tp *TypedPointer) At(i int) (any, error) {
	if i < 0 || i >= tp.count {
		return nil, fmt.Errorf("%w: index %d, count %d", ErrOutOfBounds, i, tp.count)
	}
	elemPtr := unsafe.Add(unsafe.Pointer(tp.pin.addr), i*tp.pin.t.Size)
	return marshal.Read(elemPtr, tp.pin.t)
}

// SetAt writes value at absolute index i, failing with
// ErrOutOfBounds if i is outside [0, count).
func (tp *TypedPointer) SetAt(i int, value any) error {
	if i < 0 || i >= tp.count {
		return fmt.Errorf("%w: index %d, count %d", ErrOutOfBounds, i, tp.count)
	}
	elemPtr := unsafe.Add(unsafe.Pointer(tp.pin.addr), i*tp.pin.t.Size)
	return marshal.Write(elemPtr, tp.pin.t, value)
}

// Seek moves the cursor to absolute position n, failing with
// ErrOutOfBounds if n is outside [0, count].
func (tp *TypedPointer) Seek(n int) error {
	if n < 0 || n > tp.count {
		return fmt.Errorf("%w: seek %d, count %d", ErrOutOfBounds, n, tp.count)
	}
	tp.position = n
	return nil
}

// Next reads the element at the current cursor and advances it by
// one, failing with ErrOutOfBounds once the cursor reaches count.
func (tp *TypedPointer) Next() (any, error) {
	v, err := tp.At(tp.position)
	if err != nil {
		return nil, err
	}
	tp.position++
	return v, nil
}

// Prev retreats the cursor by one and reads the element there,
// failing with ErrOutOfBounds if the cursor is already at 0.
func (tp *TypedPointer) Prev() (any, error) {
	if tp.position == 0 {
		return nil, fmt.Errorf("%w: prev at position 0", ErrOutOfBounds)
	}
	tp.position--
	return tp.At(tp.position)
}

// Position reports the cursor's current absolute index.
func (tp *TypedPointer) Position() int { return tp.position }
