package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaultpass/credcache/internal/model"
)

var ErrNotRegistered = errors.New("no master credential registered")

// masterRowID is the primary key of the only master credential row.
const masterRowID = 1

// MasterRepository persists the single master credential.
type MasterRepository struct {
	db *sql.DB
}

// NewMasterRepository creates a new MasterRepository.
func NewMasterRepository(db *sql.DB) *MasterRepository {
	return &MasterRepository{db: db}
}

// Get retrieves the master credential.
func (r *MasterRepository) Get(ctx context.Context) (*model.MasterCredential, error) {
	query := `SELECT id, username, password_hash, created_at, updated_at FROM master_credential WHERE id = ?`

	m := &model.MasterCredential{}
	err := r.db.QueryRowContext(ctx, query, masterRowID).Scan(
		&m.ID, &m.Username, &m.PasswordHash, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotRegistered
		}
		return nil, persistenceError("get master credential", err)
	}

	return m, nil
}

// PasswordHash reads the stored master password hash through q, which may be
// a transaction. Every registration and reset stores a freshly salted hash, so
// it identifies the master credential a vault key was derived from.
func PasswordHash(ctx context.Context, q DBTX) (string, error) {
	var hash string
	err := q.QueryRowContext(ctx, `SELECT password_hash FROM master_credential WHERE id = ?`, masterRowID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotRegistered
		}
		return "", persistenceError("get master password hash", err)
	}
	return hash, nil
}

// Exists reports whether a master credential has been registered.
func (r *MasterRepository) Exists(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM master_credential`).Scan(&n)
	if err != nil {
		return false, persistenceError("check master credential", err)
	}
	return n > 0, nil
}

// Replace overwrites the master credential and deletes every vault entry in
// one transaction. Entries encrypted under the previous password cannot be
// decrypted afterwards, so they never outlive it.
func (r *MasterRepository) Replace(ctx context.Context, m *model.MasterCredential) error {
	return WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if err := NewCredentialRepository(tx).DeleteAll(ctx); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM master_credential`); err != nil {
			return persistenceError("delete master credential", err)
		}

		query := `INSERT INTO master_credential (id, username, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, masterRowID, m.Username, m.PasswordHash, m.CreatedAt, m.UpdatedAt); err != nil {
			return persistenceError("insert master credential", err)
		}

		m.ID = masterRowID
		return nil
	})
}
