package arena

import "errors"

// ErrOutOfMemory is returned by Alloc when growing the arena past
// MaxChunkBytes would still not satisfy the request.
var ErrOutOfMemory = errors.New("arena: out of memory")
