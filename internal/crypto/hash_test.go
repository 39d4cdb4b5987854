package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Tr0ub4dor&3!")
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}

	parts := strings.Split(hash, "::")
	if len(parts) != 2 {
		t.Fatalf("HashPassword() expected 2 parts, got %d: %q", len(parts), hash)
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("salt segment is not base64: %v", err)
	}
	if len(salt) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(salt), SaltSize)
	}

	key, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("hash segment is not base64: %v", err)
	}
	if len(key) != KeySize {
		t.Errorf("hash length = %d, want %d", len(key), KeySize)
	}
}

func TestVerifyPasswordCorrect(t *testing.T) {
	for _, password := range []string{"my-secure-password", "", "pässwörd ✓"} {
		hash, err := HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword(%q) unexpected error: %v", password, err)
		}

		match, err := VerifyPassword(password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) unexpected error: %v", password, err)
		}
		if !match {
			t.Errorf("VerifyPassword(%q) returned false for correct password", password)
		}
	}
}

func TestVerifyPasswordWrong(t *testing.T) {
	hash, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}

	match, err := VerifyPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() unexpected error: %v", err)
	}
	if match {
		t.Error("VerifyPassword() returned true for wrong password")
	}
}

func TestHashPasswordProducesDifferentHashes(t *testing.T) {
	hash1, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}
	hash2, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() unexpected error: %v", err)
	}

	if hash1 == hash2 {
		t.Error("HashPassword() produced identical hashes for same password (salt should differ)")
	}
}

func TestVerifyPasswordInvalidHash(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString(make([]byte, KeySize))

	tests := []struct {
		name    string
		encoded string
	}{
		{"no separator", "invalid-hash-format"},
		{"too many segments", "a::b::c"},
		{"salt not base64", "***::" + valid},
		{"empty salt", "::" + valid},
		{"hash not base64", valid + "::***"},
		{"short hash", valid + "::" + base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := VerifyPassword("password", tt.encoded)
			if !errors.Is(err, ErrInvalidHashFormat) {
				t.Errorf("VerifyPassword() error = %v, want %v", err, ErrInvalidHashFormat)
			}
			if match {
				t.Error("VerifyPassword() returned true for malformed hash")
			}
		})
	}
}
