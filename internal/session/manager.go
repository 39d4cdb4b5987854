// Package session holds the vault key of the unlocked session.
//
// The Manager is the only long-lived owner of key material. ClearKey is the
// single way to lock: explicit lock, password reset and the idle timer all go
// through it.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultpass/credcache/internal/crypto"
)

// State is the lock state reported to subscribers.
type State int

const (
	StateLocked State = iota
	StateUnlocked
)

func (s State) String() string {
	if s == StateUnlocked {
		return "unlocked"
	}
	return "locked"
}

// Listener is notified after every lock state change. It runs on the
// goroutine that caused the change and must not block.
type Listener func(State)

// Manager holds at most one key at a time.
type Manager struct {
	mu        sync.RWMutex
	key       []byte
	sessionID string

	// credential identifies the master credential the key was derived from.
	credential string

	idle  time.Duration
	timer *time.Timer

	// gen invalidates timers armed before the latest Touch, SetKey or ClearKey.
	gen uint64

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewManager returns a locked Manager with auto-lock disabled.
func NewManager() *Manager {
	return &Manager{listeners: make(map[int]Listener)}
}

// Lease is the live session lent to one call chain.
type Lease struct {
	SessionID  string
	Credential string
	Key        []byte
}

// SetKey installs a copy of key derived from the master credential
// identified by credential, starts a new session and returns its id.
// A previous key is wiped.
func (m *Manager) SetKey(key []byte, credential string) string {
	owned := make([]byte, len(key))
	copy(owned, key)

	m.mu.Lock()
	crypto.Wipe(m.key)
	m.key = owned
	m.sessionID = uuid.NewString()
	m.credential = credential
	id := m.sessionID
	m.armLocked()
	m.mu.Unlock()

	slog.Info("vault unlocked", "session_id", id)
	m.notify(StateUnlocked)
	return id
}

// ClearKey wipes and drops the key. It is a no-op when already locked.
func (m *Manager) ClearKey() {
	m.mu.Lock()
	cleared := m.clearLocked()
	m.mu.Unlock()

	if cleared {
		slog.Info("vault locked")
		m.notify(StateLocked)
	}
}

// clearLocked drops the key and reports whether one was held. Callers hold mu.
func (m *Manager) clearLocked() bool {
	if m.key == nil {
		return false
	}
	crypto.Wipe(m.key)
	m.key = nil
	m.sessionID = ""
	m.credential = ""
	m.disarmLocked()
	return true
}

// WithKey calls fn with a copy of the key that is wiped when fn returns.
// It returns crypto.ErrNoKey without calling fn when locked.
func (m *Manager) WithKey(fn func(key []byte) error) error {
	return m.WithLease(func(l Lease) error { return fn(l.Key) })
}

// WithLease is WithKey with the session id and credential the key belongs to.
func (m *Manager) WithLease(fn func(l Lease) error) error {
	m.mu.RLock()
	if m.key == nil {
		m.mu.RUnlock()
		return crypto.ErrNoKey
	}
	l := Lease{SessionID: m.sessionID, Credential: m.credential, Key: make([]byte, len(m.key))}
	copy(l.Key, m.key)
	m.mu.RUnlock()

	defer crypto.Wipe(l.Key)
	return fn(l)
}

// Revoke clears the key if sessionID is still the live session. A newer
// session is left alone.
func (m *Manager) Revoke(sessionID string) {
	m.mu.Lock()
	cleared := sessionID != "" && sessionID == m.sessionID && m.clearLocked()
	m.mu.Unlock()

	if cleared {
		slog.Warn("vault locked", "reason", "session revoked", "session_id", sessionID)
		m.notify(StateLocked)
	}
}

// IsUnlocked reports whether a key is installed.
func (m *Manager) IsUnlocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key != nil
}

// SessionID returns the id of the live session, or "" when locked.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Touch records activity and restarts the idle timer.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != nil {
		m.armLocked()
	}
}

// SetAutoLock sets the idle timeout after which the key is cleared.
// Zero or negative disables auto-lock.
func (m *Manager) SetAutoLock(d time.Duration) {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle = d
	if m.key != nil {
		m.armLocked()
	}
}

// AutoLock returns the configured idle timeout.
func (m *Manager) AutoLock() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idle
}

// Subscribe registers l for lock state changes and returns a function that
// removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager) notify(s State) {
	m.listenersMu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenersMu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}

// armLocked restarts the idle timer. Callers hold mu.
func (m *Manager) armLocked() {
	m.disarmLocked()
	if m.idle <= 0 {
		return
	}
	gen := m.gen
	m.timer = time.AfterFunc(m.idle, func() { m.expire(gen) })
}

// disarmLocked stops the idle timer. Callers hold mu.
func (m *Manager) disarmLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	cleared := m.clearLocked()
	m.mu.Unlock()

	if cleared {
		slog.Info("vault locked", "reason", "idle timeout")
		m.notify(StateLocked)
	}
}
