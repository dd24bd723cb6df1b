package infix

import (
	"errors"
	"testing"
)

func TestLoadCurrentProcess(t *testing.T) {
	lib, err := LoadLibrary("")
	if err != nil {
		t.Fatal(err)
	}
	if lib.path != "" {
		t.Errorf("path = %q, want empty", lib.path)
	}
}

func TestLoadLibc(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lib.FindSymbol("abs"); err != nil {
		t.Fatalf("FindSymbol(abs): %v", err)
	}
}

func TestFindSymbolMissing(t *testing.T) {
	lib, err := LoadLibrary(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	_, err = lib.FindSymbol("definitely_not_a_real_libc_symbol_xyz")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("err = %v, want ErrSymbolNotFound", err)
	}
}

func TestLoadLibraryMissing(t *testing.T) {
	_, err := LoadLibrary("libdefinitely-not-a-real-library.so")
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Fatalf("err = %v, want ErrLibraryNotFound", err)
	}
}
