package infix

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/infix/internal/arena"
)

// VerboseMode gates Logf. It defaults from INFIX_VERBOSE and can also
// be toggled programmatically (e.g. by cmd/infixdemo's -v flag).
var VerboseMode = env.Bool("INFIX_VERBOSE")

// Logf writes a diagnostic line to stderr when VerboseMode is set, a
// plain `if VerboseMode { fmt.Fprintf(os.Stderr, ...) }` idiom rather
// than a structured logging package.
func Logf(format string, args ...any) {
	if !VerboseMode {
		return
	}
	fmt.Fprintf(os.Stderr, "infix: "+format+"\n", args...)
}

// defaultArenaChunkBytes is the starting chunk size every parser-owned
// arena allocates, overridable for hosts that parse unusually large
// signatures (deeply nested structs) in bulk.
var defaultArenaChunkBytes = env.IntOr("INFIX_ARENA_CHUNK_BYTES", 4096)

// newArena is the one place this package creates an arena, so
// INFIX_ARENA_CHUNK_BYTES actually governs every Bind/NewCallback/Pin
// call rather than sitting unread next to arena.New()'s own default.
func newArena() *arena.Arena {
	return arena.NewSize(defaultArenaChunkBytes)
}

// preferredABIOverride lets a host force a non-default ABI classifier
// (mainly for cross-testing a Win64 call plan from a Linux build,
// since Classify itself is a pure function of the descriptor graph).
var preferredABIOverride = env.Str("INFIX_ABI")

// maxIncludeDepth bounds DiscoverSignatures' DWARF walk recursion
// against runaway header nests.
var maxIncludeDepth = env.IntOr("INFIX_MAX_INCLUDE_DEPTH", 32)
