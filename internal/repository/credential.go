package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vaultpass/credcache/internal/model"
)

var (
	ErrEntryNotFound = errors.New("vault entry not found")
	ErrPersistence   = errors.New("vault storage failure")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

const credentialColumns = `id, website_name, website_url, username, password, notes, favourite, created_at, updated_at`

// CredentialRepository persists encrypted vault entries. It never sees
// plaintext.
type CredentialRepository struct {
	db DBTX
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a new entry and sets the generated ID on it.
func (r *CredentialRepository) Create(ctx context.Context, c *model.EncryptedCredential) error {
	query := `INSERT INTO credentials (website_name, website_url, username, password, notes, favourite, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		c.WebsiteName, c.WebsiteURL, c.Username, c.Password, c.Notes,
		c.Favourite, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return persistenceError("insert credential", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistenceError("insert credential", err)
	}

	c.ID = id
	return nil
}

// Update overwrites the columns set in patch plus updated_at.
func (r *CredentialRepository) Update(ctx context.Context, id int64, patch model.EncryptedPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.WebsiteName != nil {
		sets = append(sets, "website_name = ?")
		args = append(args, *patch.WebsiteName)
	}
	if patch.WebsiteURL != nil {
		sets = append(sets, "website_url = ?")
		args = append(args, *patch.WebsiteURL)
	}
	if patch.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *patch.Username)
	}
	if patch.Password != nil {
		sets = append(sets, "password = ?")
		args = append(args, *patch.Password)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, patch.UpdatedAt, id)

	query := `UPDATE credentials SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistenceError("update credential", err)
	}

	return expectOneRow(result, "update credential")
}

// SetFavourite sets the favourite flag to the given value.
func (r *CredentialRepository) SetFavourite(ctx context.Context, id int64, favourite bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE credentials SET favourite = ? WHERE id = ?`, favourite, id)
	if err != nil {
		return persistenceError("set favourite", err)
	}

	return expectOneRow(result, "set favourite")
}

// Delete removes an entry permanently. Deleting a missing id is a no-op.
func (r *CredentialRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id); err != nil {
		return persistenceError("delete credential", err)
	}
	return nil
}

// DeleteAll removes every entry.
func (r *CredentialRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return persistenceError("delete all credentials", err)
	}
	return nil
}

// GetByID retrieves a single entry.
func (r *CredentialRepository) GetByID(ctx context.Context, id int64) (*model.EncryptedCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`

	c, err := scanCredential(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, persistenceError("get credential", err)
	}

	return c, nil
}

// List retrieves all entries ordered by id, optionally only favourites.
func (r *CredentialRepository) List(ctx context.Context, favouritesOnly bool) ([]model.EncryptedCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials`
	var args []any
	if favouritesOnly {
		query += ` WHERE favourite = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list credentials", err)
	}
	defer rows.Close()

	var entries []model.EncryptedCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, persistenceError("scan credential", err)
		}
		entries = append(entries, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list credentials", err)
	}

	return entries, nil
}

// Count returns the number of stored entries.
func (r *CredentialRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, persistenceError("count credentials", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(s rowScanner) (*model.EncryptedCredential, error) {
	c := &model.EncryptedCredential{}
	err := s.Scan(
		&c.ID, &c.WebsiteName, &c.WebsiteURL, &c.Username, &c.Password,
		&c.Notes, &c.Favourite, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func expectOneRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return persistenceError(op, err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
