package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// hashSeparator joins the base64 salt and hash segments of a stored hash.
const hashSeparator = "::"

// HashPassword hashes a master password with PBKDF2-HMAC-SHA256 under a fresh
// random salt. The result has the form base64(salt)::base64(hash).
func HashPassword(password string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := pbkdf2.Key([]byte(password), salt, KDFIterations, KeySize, sha256.New)

	return base64.StdEncoding.EncodeToString(salt) + hashSeparator + base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyPassword checks whether password matches the encoded hash.
// Uses constant-time comparison to prevent timing attacks. A wrong password
// is (false, nil); only a malformed encoded hash returns an error.
func VerifyPassword(password, encodedHash string) (bool, error) {
	salt, hash, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := pbkdf2.Key([]byte(password), salt, KDFIterations, len(hash), sha256.New)

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// decodeHash splits a salt::hash string back into its raw parts.
func decodeHash(encodedHash string) ([]byte, []byte, error) {
	parts := strings.Split(encodedHash, hashSeparator)
	if len(parts) != 2 {
		return nil, nil, ErrInvalidHashFormat
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return nil, nil, ErrInvalidHashFormat
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(hash) != KeySize {
		return nil, nil, ErrInvalidHashFormat
	}

	return salt, hash, nil
}
