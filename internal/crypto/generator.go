package crypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars     = "0123456789"
	specialChars   = `!@#$%^&*()?\:|<>`

	MinLength = 8
	MaxLength = 128
)

var (
	ErrLengthTooShort      = errors.New("password length must be at least 8")
	ErrLengthTooLong       = errors.New("password length must be at most 128")
	ErrInvalidDigitCount   = errors.New("digit count must be between 0 and 10")
	ErrInvalidSpecialCount = errors.New("special character count must be between 0 and 16")
	ErrLengthInsufficient  = errors.New("password length is too short for the requested digits and special characters")
)

// GeneratorOptions configures the password generator. Lowercase letters are
// always part of the result.
type GeneratorOptions struct {
	Length    int
	Uppercase bool
	// Digits is the exact number of distinct digits to include.
	Digits int
	// Specials is the exact number of distinct special characters to include.
	Specials int
}

// DefaultOptions returns the generator defaults: 12 characters, uppercase
// enabled, two digits and two special characters.
func DefaultOptions() GeneratorOptions {
	return GeneratorOptions{
		Length:    12,
		Uppercase: true,
		Digits:    2,
		Specials:  2,
	}
}

// Generate creates a cryptographically secure random password based on the given options.
func Generate(opts GeneratorOptions) (string, error) {
	if opts.Length < MinLength {
		return "", ErrLengthTooShort
	}
	if opts.Length > MaxLength {
		return "", ErrLengthTooLong
	}
	if opts.Digits < 0 || opts.Digits > len(digitChars) {
		return "", ErrInvalidDigitCount
	}
	if opts.Specials < 0 || opts.Specials > len(specialChars) {
		return "", ErrInvalidSpecialCount
	}

	letters := lowercaseChars
	requiredLetters := []string{lowercaseChars}
	if opts.Uppercase {
		letters += uppercaseChars
		requiredLetters = append(requiredLetters, uppercaseChars)
	}
	if opts.Digits+opts.Specials+len(requiredLetters) > opts.Length {
		return "", ErrLengthInsufficient
	}

	result := make([]byte, 0, opts.Length)

	digits, err := sample(digitChars, opts.Digits)
	if err != nil {
		return "", err
	}
	result = append(result, digits...)

	specials, err := sample(specialChars, opts.Specials)
	if err != nil {
		return "", err
	}
	result = append(result, specials...)

	// One letter from each enabled case, then fill from all letters.
	for _, charset := range requiredLetters {
		ch, err := randChar(charset)
		if err != nil {
			return "", err
		}
		result = append(result, ch)
	}
	for len(result) < opts.Length {
		ch, err := randChar(letters)
		if err != nil {
			return "", err
		}
		result = append(result, ch)
	}

	if err := secureShuffle(result); err != nil {
		return "", err
	}

	return string(result), nil
}

// sample picks n distinct characters from charset.
func sample(charset string, n int) ([]byte, error) {
	pool := []byte(charset)
	if err := secureShuffle(pool); err != nil {
		return nil, err
	}
	return pool[:n], nil
}

// randChar picks a random character from charset using crypto/rand.
func randChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}

// secureShuffle performs a Fisher-Yates shuffle using crypto/rand.
func secureShuffle(data []byte) error {
	for i := len(data) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		data[i], data[j.Int64()] = data[j.Int64()], data[i]
	}
	return nil
}
