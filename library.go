package infix

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Library is a handle to a loaded shared object. It exists only to
// hand a resolved symbol address to Bind/Wrap/Pin — no FFI logic
// lives here.
type Library struct {
	path   string
	handle uintptr
}

// LoadLibrary resolves path through the platform loader. An empty
// path loads the symbols of the running process itself (the host's
// own binary and whatever it was linked against).
func LoadLibrary(path string) (*Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, displayPath(path), err)
	}
	Logf("loaded library %s", displayPath(path))
	return &Library{path: path, handle: h}, nil
}

// FindSymbol resolves name against the library, failing with
// ErrSymbolNotFound rather than letting the dynamic loader panic or
// segfault on a bad lookup.
func (l *Library) FindSymbol(name string) (uintptr, error) {
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil || addr == 0 {
		return 0, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, name, displayPath(l.path))
	}
	return addr, nil
}

func displayPath(path string) string {
	if path == "" {
		return "<current process>"
	}
	return path
}
