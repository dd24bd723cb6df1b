package infix

import (
	"errors"
	"testing"

	"github.com/xyproto/infix/internal/arena"
	"github.com/xyproto/infix/internal/sig"
)

func TestIsParseErrorReportsOffset(t *testing.T) {
	a := arena.New()
	defer a.Destroy()
	_, err := sig.Parse("i,;;;i", a)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	offset, ok := IsParseError(err)
	if !ok {
		t.Fatalf("IsParseError(%v) = false, want true", err)
	}
	if offset < 0 {
		t.Errorf("offset = %d, want >= 0", offset)
	}
}

func TestStateErrorMatchesSentinel(t *testing.T) {
	err := stateErr("Call", "RELEASED")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("stateErr result does not match ErrInvalidState via errors.Is")
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}
