package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of a derived AES-256 key.
	KeySize = 32

	// SaltSize is the length of both the global salt and per-hash salts.
	SaltSize = 16

	// KDFIterations is the PBKDF2 work factor shared by key derivation and
	// password hashing.
	KDFIterations = 100_000
)

// DeriveKey stretches secret with PBKDF2-HMAC-SHA256 into a KeySize key.
// The same (secret, salt) pair always yields the same key.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, ErrKeyDerivation
	}
	return pbkdf2.Key(secret, salt, KDFIterations, KeySize, sha256.New), nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
