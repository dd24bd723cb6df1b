package ctype

import "errors"

// ErrInvalidLayout is returned by struct/union/array construction when
// the requested layout is invalid (e.g. a zero-size non-flexible
// member, a flexible array member that is not last, a negative array
// count, or a bad fixed-arg count). A duplicate field name fails with
// ErrDuplicateField instead.
var ErrInvalidLayout = errors.New("INVALID_LAYOUT")

// ErrDuplicateField is returned when a struct/union builder sees a
// repeated field name.
var ErrDuplicateField = errors.New("DUPLICATE_FIELD")
