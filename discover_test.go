package infix

import "testing"

// TestDiscoverSignaturesHandlesMissingDWARF covers the common case of
// a stripped system libc: no DWARF info is not an error, just an
// empty result.
func TestDiscoverSignaturesHandlesMissingDWARF(t *testing.T) {
	sigs, err := DiscoverSignatures(libcPath())
	if err != nil {
		t.Fatal(err)
	}
	if sigs == nil {
		t.Error("expected a non-nil map even with no matches")
	}
}

func TestDiscoverSignaturesMissingFile(t *testing.T) {
	_, err := DiscoverSignatures("/no/such/file.so")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
