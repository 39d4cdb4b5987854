package model

import "time"

// MasterCredential is the single master login of the vault.
type MasterCredential struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest represents a master credential registration or reset.
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UnlockRequest represents a vault unlock request.
type UnlockRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UnlockResponse carries the session token of an unlocked vault.
type UnlockResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StatusResponse reports whether the vault is registered and unlocked.
type StatusResponse struct {
	Registered bool   `json:"registered"`
	Unlocked   bool   `json:"unlocked"`
	Username   string `json:"username,omitempty"`
}
