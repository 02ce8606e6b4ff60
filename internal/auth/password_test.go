package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("expected hash to differ from the password")
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("CheckPassword() error = %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}
