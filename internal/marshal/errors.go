// Package marshal is the bidirectional core translating host Go
// values into typed C memory and back. Every descriptor category is
// handled by one function with a switch on Descriptor.Category (never
// a per-type interface), so the hot path stays a single dispatch
// point, mirroring the flat "match on the category tag" discipline
// ctype's own doc comment describes.
package marshal

import "errors"

var (
	// ErrTypeMismatch is returned when a host value's Go type cannot
	// represent the target descriptor.
	ErrTypeMismatch = errors.New("TYPE_MISMATCH")
	// ErrLengthMismatch is returned when a slice value's length
	// disagrees with an array descriptor's element count.
	ErrLengthMismatch = errors.New("LENGTH_MISMATCH")
	// ErrOutOfBounds is returned by pinned-pointer indexing past the
	// bound length.
	ErrOutOfBounds = errors.New("OUT_OF_BOUNDS")
)
