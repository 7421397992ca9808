package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secreto123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "secreto123" {
		t.Fatal("password stored in the clear")
	}

	if !VerifyPassword(hash, "secreto123") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "incorrecta") {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("not-a-hash", "secreto123") {
		t.Error("malformed hash accepted")
	}
}

func TestHashIsSalted(t *testing.T) {
	a, err := HashPassword("secreto123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := HashPassword("secreto123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}
