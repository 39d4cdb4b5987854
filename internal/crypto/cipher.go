package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

const (
	// NonceSize is the standard GCM nonce length.
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16

	// EnvelopeVersion tags the serialized envelope format.
	EnvelopeVersion = 1
)

// Envelope is one encrypted field value: everything needed to decrypt it
// except the key.
type Envelope struct {
	Version    int    `json:"v"`
	Nonce      []byte `json:"nonce"`
	Tag        []byte `json:"tag"`
	Ciphertext []byte `json:"ciphertext"`
}

// envelopeWire distinguishes a missing ciphertext from an empty one.
type envelopeWire struct {
	Version    int     `json:"v"`
	Nonce      []byte  `json:"nonce"`
	Tag        []byte  `json:"tag"`
	Ciphertext *[]byte `json:"ciphertext"`
}

// Marshal serializes the envelope as a JSON object with base64 byte fields.
func (e Envelope) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("%w: marshal envelope: %v", ErrEncryption, err)
	}
	return string(b), nil
}

// ParseEnvelope decodes a serialized envelope. Any structural problem is
// reported as ErrDecryption.
func ParseEnvelope(s string) (Envelope, error) {
	var w envelopeWire
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		slog.Debug("envelope rejected", "reason", "unparseable", "error", err)
		return Envelope{}, ErrDecryption
	}
	if w.Ciphertext == nil || w.Nonce == nil || w.Tag == nil {
		slog.Debug("envelope rejected", "reason", "missing fields")
		return Envelope{}, ErrDecryption
	}
	return Envelope{Version: w.Version, Nonce: w.Nonce, Tag: w.Tag, Ciphertext: *w.Ciphertext}, nil
}

// Seal encrypts plaintext with AES-256-GCM under a fresh random nonce.
func Seal(plaintext string, key []byte) (Envelope, error) {
	if len(key) == 0 {
		return Envelope{}, ErrNoKey
	}
	// Open rejects non UTF-8 plaintext, so it must never be sealed.
	if !utf8.ValidString(plaintext) {
		return Envelope{}, fmt.Errorf("%w: plaintext is not valid utf-8", ErrEncryption)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("%w: generating nonce: %v", ErrEncryption, err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - gcm.Overhead()

	return Envelope{
		Version:    EnvelopeVersion,
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Open authenticates and decrypts an envelope.
func Open(env Envelope, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrNoKey
	}
	if env.Version != EnvelopeVersion || len(env.Nonce) != NonceSize || len(env.Tag) != TagSize {
		slog.Debug("envelope rejected", "reason", "malformed", "version", env.Version)
		return "", ErrDecryption
	}

	gcm, err := newGCM(key)
	if err != nil {
		slog.Debug("envelope rejected", "reason", "unusable key", "error", err)
		return "", ErrDecryption
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := gcm.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		slog.Debug("envelope rejected", "reason", "authentication failed")
		return "", ErrDecryption
	}
	if !utf8.Valid(plaintext) {
		slog.Debug("envelope rejected", "reason", "plaintext is not utf-8")
		return "", ErrDecryption
	}

	return string(plaintext), nil
}

// Encrypt seals plaintext and returns the serialized envelope.
func Encrypt(plaintext string, key []byte) (string, error) {
	env, err := Seal(plaintext, key)
	if err != nil {
		return "", err
	}
	return env.Marshal()
}

// Decrypt parses a serialized envelope and opens it.
func Decrypt(serialized string, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrNoKey
	}
	env, err := ParseEnvelope(serialized)
	if err != nil {
		return "", err
	}
	return Open(env, key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating aes block cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm cipher: %w", err)
	}
	return gcm, nil
}
