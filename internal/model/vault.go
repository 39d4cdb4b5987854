package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Credential is a decrypted vault entry.
type Credential struct {
	ID          int64     `json:"id"`
	WebsiteName string    `json:"website_name"`
	WebsiteURL  string    `json:"website_url"`
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	Notes       string    `json:"notes"`
	Favourite   bool      `json:"favourite"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EncryptedCredential is a vault entry as stored in the database. Text
// fields hold serialized envelopes; a NULL optional field was left blank.
type EncryptedCredential struct {
	ID          int64
	WebsiteName string
	WebsiteURL  sql.NullString
	Username    string
	Password    string
	Notes       sql.NullString
	Favourite   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CredentialInput carries the plaintext fields of a new entry.
type CredentialInput struct {
	WebsiteName string `json:"website_name"`
	WebsiteURL  string `json:"website_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Notes       string `json:"notes"`
	Favourite   bool   `json:"favourite"`
}

// CredentialPatch lists the fields to overwrite on an existing entry.
// A nil field is left untouched.
type CredentialPatch struct {
	WebsiteName *string `json:"website_name"`
	WebsiteURL  *string `json:"website_url"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Notes       *string `json:"notes"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CredentialPatch) IsEmpty() bool {
	return p.WebsiteName == nil && p.WebsiteURL == nil && p.Username == nil &&
		p.Password == nil && p.Notes == nil
}

// EncryptedPatch is a CredentialPatch after field encryption. A non-nil
// optional column with Valid=false is cleared to NULL.
type EncryptedPatch struct {
	WebsiteName *string
	WebsiteURL  *sql.NullString
	Username    *string
	Password    *string
	Notes       *sql.NullString
	UpdatedAt   time.Time
}

// FavouriteRequest sets the favourite flag of an entry.
type FavouriteRequest struct {
	Favourite bool `json:"favourite"`
}

// SortMode selects the order of listed entries.
type SortMode string

const (
	SortNone         SortMode = "none"
	SortAlphabetical SortMode = "alphabetical"
	SortRecent       SortMode = "recent"
)

var ErrInvalidSortMode = errors.New("sort must be one of none, alphabetical, recent")

// ParseSortMode parses a sort query value. The empty string means SortNone.
func ParseSortMode(s string) (SortMode, error) {
	switch mode := SortMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return SortNone, nil
	case SortNone, SortAlphabetical, SortRecent:
		return mode, nil
	default:
		return "", ErrInvalidSortMode
	}
}
