package utils

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("secret1", hash) {
		t.Error("expected matching password to verify")
	}
	if CheckPassword("secret2", hash) {
		t.Error("expected wrong password to fail")
	}
	if _, err := HashPassword(""); err != ErrEmptyPassword {
		t.Errorf("empty password: got %v", err)
	}
}

func TestRandomBase36(t *testing.T) {
	s, err := RandomBase36(9)
	if err != nil {
		t.Fatalf("RandomBase36: %v", err)
	}
	if len(s) != 9 {
		t.Fatalf("length: got %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(base36, r) {
			t.Fatalf("unexpected rune %q in %q", r, s)
		}
	}
}
