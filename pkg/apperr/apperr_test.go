package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf_Wrapped(t *testing.T) {
	base := NotFound("event %s not found", "abc")
	wrapped := fmt.Errorf("load event: %w", base)

	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("CodeOf: got %q, want %q", got, CodeNotFound)
	}
	if !Is(wrapped, CodeNotFound) {
		t.Error("expected Is(wrapped, NOT_FOUND) to be true")
	}
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("CodeOf: got %q, want %q", got, CodeInternal)
	}
	if Is(nil, CodeInternal) {
		t.Error("nil error must not match any code")
	}
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause, "failed to load tickets")

	if !errors.Is(err, cause) {
		t.Error("expected Internal to unwrap to its cause")
	}
	if err.Message != "failed to load tickets" {
		t.Errorf("Message: got %q", err.Message)
	}
}
