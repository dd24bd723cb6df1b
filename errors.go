package infix

import (
	"errors"
	"fmt"

	"github.com/xyproto/infix/internal/abi"
	"github.com/xyproto/infix/internal/ctype"
	"github.com/xyproto/infix/internal/jit"
	"github.com/xyproto/infix/internal/marshal"
	"github.com/xyproto/infix/internal/sig"
)

// The error taxonomy below re-exports (via errors.Is) the sentinels
// each internal package already owns, so callers only need to import
// package infix to match on any failure produced anywhere in the call
// chain: parse → classify → JIT → marshal → bind/pin.
var (
	// ErrUnexpectedChar / ErrUnexpectedEOF / ErrUnbalanced /
	// ErrDuplicateField / ErrCountOverflow are the distinct
	// PARSE_ERROR reasons the signature grammar can fail with; use
	// IsParseError to test for any of them together with the byte
	// offset they occurred at.
	ErrUnexpectedChar = sig.ErrUnexpectedChar
	ErrUnexpectedEOF  = sig.ErrUnexpectedEOF
	ErrUnbalanced     = sig.ErrUnbalanced
	ErrDuplicateField = sig.ErrDuplicateField
	ErrCountOverflow  = sig.ErrCountOverflow

	// ErrUnsupportedABI is returned when a descriptor cannot be
	// classified for the target platform, or classifies under an ABI
	// that has no trampoline emitter (Microsoft x64; see
	// PlatformInfo.JITBacked).
	ErrUnsupportedABI = abi.ErrUnsupportedABI

	// ErrJITAllocFailed / ErrJITProtectFailed mirror the trampoline
	// emitter's own sentinels.
	ErrJITAllocFailed   = jit.ErrAllocFailed
	ErrJITProtectFailed = jit.ErrProtectFailed

	// ErrSymbolNotFound / ErrLibraryNotFound are raised by the loader.
	ErrSymbolNotFound  = errors.New("SYMBOL_NOT_FOUND")
	ErrLibraryNotFound = errors.New("LIBRARY_NOT_FOUND")

	// ErrTypeMismatch / ErrLengthMismatch / ErrOutOfBounds mirror the
	// marshalling core's own sentinels.
	ErrTypeMismatch   = marshal.ErrTypeMismatch
	ErrLengthMismatch = marshal.ErrLengthMismatch
	ErrOutOfBounds    = marshal.ErrOutOfBounds

	// ErrInvalidState is returned when an operation is attempted
	// against a binding, callback, or pin outside the state it is
	// valid for (see the state machines in binding.go/callback.go).
	ErrInvalidState = errors.New("INVALID_STATE")

	// ErrInvalidLayout is returned when a type constructor is asked
	// for an invalid layout (zero-size member other than a final
	// flexible array, non-final flexible array, negative array count,
	// bad fixed-arg count). A duplicate member name fails with
	// ErrDuplicateField instead.
	ErrInvalidLayout = ctype.ErrInvalidLayout
)

// StateError reports an operation attempted against a binding,
// callback, or pin while it was in a state that does not permit it.
type StateError struct {
	Op    string // the operation attempted, e.g. "Call", "Release"
	State string // the state the object was actually in
}

func (e *StateError) Error() string {
	return fmt.Sprintf("infix: %s: invalid in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

func stateErr(op, state string) error {
	return &StateError{Op: op, State: state}
}

// IsParseError reports whether err is a signature-grammar PARSE_ERROR,
// and if so returns the byte offset it occurred at.
func IsParseError(err error) (offset int, ok bool) {
	var pe *sig.ParseError
	if errors.As(err, &pe) {
		return pe.Offset, true
	}
	return 0, false
}
