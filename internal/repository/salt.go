package repository

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/fsutil"
)

// SaltFileName is the global salt file kept beside the database.
const SaltFileName = "global_salt.bin"

var ErrCorruptSalt = errors.New("global salt file is corrupt")

// LoadOrCreateSalt returns the installation salt stored in dir, creating it
// on first use. An existing salt is never replaced.
func LoadOrCreateSalt(dir string) ([]byte, error) {
	path := filepath.Join(dir, SaltFileName)

	salt, err := readSalt(path)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	salt = make([]byte, crypto.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating global salt: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, persistenceError("create data directory", err)
	}

	if err := fsutil.CreateFileAtomic(path, salt, 0o600); err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Lost a race with another creator; theirs wins.
			return readSalt(path)
		}
		return nil, persistenceError("write global salt", err)
	}

	slog.Info("global salt created", "path", path)
	return salt, nil
}

func readSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, persistenceError("read global salt", err)
	}
	if len(salt) != crypto.SaltSize {
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", ErrCorruptSalt, path, len(salt), crypto.SaltSize)
	}
	return salt, nil
}
