// Package settings persists the user preferences stored in settings.json.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vaultpass/credcache/internal/fsutil"
)

// FileName is the settings file kept in the data directory.
const FileName = "settings.json"

const (
	DefaultAutoLockMinutes = 5
	MaxAutoLockMinutes     = 24 * 60
)

var ErrInvalidAutoLock = errors.New("auto-lock minutes must be between 1 and 1440")

// Settings are the user preferences of the vault.
type Settings struct {
	DarkMode           bool   `json:"dark_mode"`
	ShowPasswords      bool   `json:"show_passwords"`
	AutoLockEnabled    bool   `json:"auto_lock_enabled"`
	AutoLockMinutes    int    `json:"auto_lock_minutes"`
	RememberMe         bool   `json:"remember_me"`
	RememberedUsername string `json:"remembered_username"`
}

// Default returns the settings written on first run.
func Default() Settings {
	return Settings{AutoLockMinutes: DefaultAutoLockMinutes}
}

// Validate checks the settings before they are saved.
func (s Settings) Validate() error {
	if s.AutoLockMinutes < 1 || s.AutoLockMinutes > MaxAutoLockMinutes {
		return ErrInvalidAutoLock
	}
	return nil
}

// AutoLockTimeout returns the idle timeout, or 0 when auto-lock is disabled.
func (s Settings) AutoLockTimeout() time.Duration {
	if !s.AutoLockEnabled {
		return 0
	}
	return time.Duration(s.AutoLockMinutes) * time.Minute
}

// Store reads and writes the settings file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store for the settings file in dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings. A missing file is created with defaults; an
// unreadable or invalid one yields defaults and is left untouched.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
		def := Default()
		if err := s.writeLocked(def); err != nil {
			return Settings{}, err
		}
		slog.Info("settings file created", "path", s.path)
		return def, nil
	}

	loaded := Default()
	if err := json.Unmarshal(data, &loaded); err != nil {
		slog.Warn("settings file is corrupt, using defaults", "path", s.path, "error", err)
		return Default(), nil
	}
	if err := loaded.Validate(); err != nil {
		slog.Warn("settings file has invalid values, using defaults", "path", s.path, "error", err)
		return Default(), nil
	}

	return loaded, nil
}

// Save validates and writes the settings.
func (s *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(settings)
}

func (s *Store) writeLocked(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}
