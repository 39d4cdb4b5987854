package crypto

import "errors"

var (
	// ErrKeyDerivation is returned for malformed key derivation inputs.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrEncryption should never surface with a valid key; treat it as a bug.
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption covers a wrong key, tampering, corruption and malformed
	// envelopes alike. Callers cannot tell these apart.
	ErrDecryption = errors.New("decryption failed")

	// ErrNoKey is returned when no session key is available.
	ErrNoKey = errors.New("no encryption key available")

	ErrInvalidHashFormat = errors.New("invalid encoded hash format")
)
