package service

import (
	"cmp"
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/repository"
	"github.com/vaultpass/credcache/internal/session"
)

// VaultService encrypts vault entries on the way into the store and decrypts
// them on the way out. Every operation needs an unlocked session.
type VaultService struct {
	// mu serializes writes so two changes never interleave on one entry.
	mu      sync.Mutex
	db      *sql.DB
	repo    *repository.CredentialRepository
	session *session.Manager
	now     func() time.Time
}

// NewVaultService creates a new VaultService.
func NewVaultService(db *sql.DB, sess *session.Manager) *VaultService {
	return &VaultService{
		db:      db,
		repo:    repository.NewCredentialRepository(db),
		session: sess,
		now:     time.Now,
	}
}

// Add encrypts and stores a new entry and returns its id. Blank optional
// fields are stored as NULL.
func (s *VaultService) Add(ctx context.Context, in model.CredentialInput) (int64, error) {
	if err := validateInput(in); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.write(ctx, func(ctx context.Context, repo *repository.CredentialRepository, key []byte) error {
		row, err := encryptInput(in, key)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		row.CreatedAt = now
		row.UpdatedAt = now

		if err := repo.Create(ctx, row); err != nil {
			return err
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.session.Touch()
	slog.Info("vault entry added", "id", id)
	return id, nil
}

// Update re-encrypts the fields set in patch under fresh nonces and
// overwrites them.
func (s *VaultService) Update(ctx context.Context, id int64, patch model.CredentialPatch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(ctx, func(ctx context.Context, repo *repository.CredentialRepository, key []byte) error {
		enc, err := encryptPatch(patch, key)
		if err != nil {
			return err
		}
		enc.UpdatedAt = s.now().UTC()
		return repo.Update(ctx, id, enc)
	})
	if err != nil {
		return err
	}

	s.session.Touch()
	slog.Info("vault entry updated", "id", id)
	return nil
}

// Delete removes an entry. Deleting an unknown id succeeds.
func (s *VaultService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(ctx, func(ctx context.Context, repo *repository.CredentialRepository, _ []byte) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.session.Touch()
	slog.Info("vault entry deleted", "id", id)
	return nil
}

// SetFavourite sets the favourite flag of an entry to favourite.
func (s *VaultService) SetFavourite(ctx context.Context, id int64, favourite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(ctx, func(ctx context.Context, repo *repository.CredentialRepository, _ []byte) error {
		return repo.SetFavourite(ctx, id, favourite)
	})
	if err != nil {
		return err
	}

	s.session.Touch()
	return nil
}

// Wipe deletes every entry.
func (s *VaultService) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(ctx, func(ctx context.Context, repo *repository.CredentialRepository, _ []byte) error {
		return repo.DeleteAll(ctx)
	})
	if err != nil {
		return err
	}

	s.session.Touch()
	slog.Warn("vault wiped")
	return nil
}

// Get returns one decrypted entry.
func (s *VaultService) Get(ctx context.Context, id int64) (*model.Credential, error) {
	var c model.Credential
	err := s.read(ctx, func(key []byte) error {
		row, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		c, err = decryptRow(*row, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.session.Touch()
	return &c, nil
}

// List returns every entry decrypted and ordered by mode. One undecryptable
// entry fails the whole call with crypto.ErrDecryption. While locked it
// returns an empty list and ErrVaultLocked.
func (s *VaultService) List(ctx context.Context, mode model.SortMode) ([]model.Credential, error) {
	return s.list(ctx, false, mode, nil)
}

// Favourites is List restricted to favourite entries.
func (s *VaultService) Favourites(ctx context.Context, mode model.SortMode) ([]model.Credential, error) {
	return s.list(ctx, true, mode, nil)
}

// Search is List restricted to entries whose website name or URL contains
// query, ignoring case.
func (s *VaultService) Search(ctx context.Context, query string, mode model.SortMode) ([]model.Credential, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return s.list(ctx, false, mode, nil)
	}
	return s.list(ctx, false, mode, func(c model.Credential) bool {
		return strings.Contains(strings.ToLower(c.WebsiteName), needle) ||
			strings.Contains(strings.ToLower(c.WebsiteURL), needle)
	})
}

func (s *VaultService) list(ctx context.Context, favouritesOnly bool, mode model.SortMode, keep func(model.Credential) bool) ([]model.Credential, error) {
	entries := []model.Credential{}
	err := s.read(ctx, func(key []byte) error {
		rows, err := s.repo.List(ctx, favouritesOnly)
		if err != nil {
			return err
		}
		for _, row := range rows {
			c, err := decryptRow(row, key)
			if err != nil {
				slog.Warn("vault entry could not be decrypted", "id", row.ID)
				return err
			}
			if keep == nil || keep(c) {
				entries = append(entries, c)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVaultLocked) {
			return []model.Credential{}, err
		}
		return nil, err
	}

	sortCredentials(entries, mode)
	s.session.Touch()
	return entries, nil
}

// read lends the session key to fn once the master credential the key was
// derived from is confirmed to still be the stored one.
func (s *VaultService) read(ctx context.Context, fn func(key []byte) error) error {
	return s.withLease(func(l session.Lease) error {
		if err := checkCredential(ctx, s.db, l.Credential); err != nil {
			return err
		}
		return fn(l.Key)
	})
}

// write runs fn in a transaction and confirms the session's master credential
// after fn's statements. A reset committed first, by this or another process,
// rolls the write back; a reset committed later deletes what fn wrote. A
// replaced credential takes precedence over fn's own error.
func (s *VaultService) write(ctx context.Context, fn func(ctx context.Context, repo *repository.CredentialRepository, key []byte) error) error {
	return s.withLease(func(l session.Lease) error {
		return repository.WithTx(ctx, s.db, func(ctx context.Context, tx repository.DBTX) error {
			err := fn(ctx, repository.NewCredentialRepository(tx), l.Key)
			if cerr := checkCredential(ctx, tx, l.Credential); cerr != nil {
				return cerr
			}
			return err
		})
	})
}

// withLease lends the live session to fn. A locked session maps to
// ErrVaultLocked; a session whose master credential was replaced is revoked.
func (s *VaultService) withLease(fn func(l session.Lease) error) error {
	var sessionID string
	err := s.session.WithLease(func(l session.Lease) error {
		sessionID = l.SessionID
		return fn(l)
	})
	switch {
	case errors.Is(err, crypto.ErrNoKey):
		return ErrVaultLocked
	case errors.Is(err, errCredentialChanged):
		slog.Warn("master credential changed since unlock, locking vault", "session_id", sessionID)
		s.session.Revoke(sessionID)
		return ErrVaultLocked
	}
	return err
}

func checkCredential(ctx context.Context, q repository.DBTX, credential string) error {
	hash, err := repository.PasswordHash(ctx, q)
	if errors.Is(err, repository.ErrNotRegistered) {
		return errCredentialChanged
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(credential)) != 1 {
		return errCredentialChanged
	}
	return nil
}

func sortCredentials(entries []model.Credential, mode model.SortMode) {
	switch mode {
	case model.SortAlphabetical:
		slices.SortStableFunc(entries, func(a, b model.Credential) int {
			return cmp.Or(
				cmp.Compare(strings.ToLower(a.WebsiteName), strings.ToLower(b.WebsiteName)),
				cmp.Compare(a.ID, b.ID),
			)
		})
	case model.SortRecent:
		slices.SortStableFunc(entries, func(a, b model.Credential) int {
			return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(b.ID, a.ID))
		})
	default:
		slices.SortStableFunc(entries, func(a, b model.Credential) int {
			return cmp.Compare(a.ID, b.ID)
		})
	}
}

func validateInput(in model.CredentialInput) error {
	if strings.TrimSpace(in.WebsiteName) == "" {
		return ErrWebsiteNameRequired
	}
	if strings.TrimSpace(in.Username) == "" {
		return ErrUsernameRequired
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	for _, v := range []string{in.WebsiteName, in.WebsiteURL, in.Username, in.Password, in.Notes} {
		if !utf8.ValidString(v) {
			return ErrInvalidText
		}
	}
	return nil
}

func validatePatch(p model.CredentialPatch) error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.WebsiteName != nil && strings.TrimSpace(*p.WebsiteName) == "" {
		return ErrWebsiteNameRequired
	}
	if p.Username != nil && strings.TrimSpace(*p.Username) == "" {
		return ErrUsernameRequired
	}
	if p.Password != nil && *p.Password == "" {
		return ErrPasswordRequired
	}
	for _, v := range []*string{p.WebsiteName, p.WebsiteURL, p.Username, p.Password, p.Notes} {
		if v != nil && !utf8.ValidString(*v) {
			return ErrInvalidText
		}
	}
	return nil
}

func encryptInput(in model.CredentialInput, key []byte) (*model.EncryptedCredential, error) {
	row := &model.EncryptedCredential{Favourite: in.Favourite}

	var err error
	if row.WebsiteName, err = crypto.Encrypt(in.WebsiteName, key); err != nil {
		return nil, err
	}
	if row.Username, err = crypto.Encrypt(in.Username, key); err != nil {
		return nil, err
	}
	if row.Password, err = crypto.Encrypt(in.Password, key); err != nil {
		return nil, err
	}
	if row.WebsiteURL, err = encryptOptional(in.WebsiteURL, key); err != nil {
		return nil, err
	}
	if row.Notes, err = encryptOptional(in.Notes, key); err != nil {
		return nil, err
	}

	return row, nil
}

func encryptPatch(p model.CredentialPatch, key []byte) (model.EncryptedPatch, error) {
	var enc model.EncryptedPatch

	required := []struct {
		in  *string
		out **string
	}{
		{p.WebsiteName, &enc.WebsiteName},
		{p.Username, &enc.Username},
		{p.Password, &enc.Password},
	}
	for _, f := range required {
		if f.in == nil {
			continue
		}
		v, err := crypto.Encrypt(*f.in, key)
		if err != nil {
			return model.EncryptedPatch{}, err
		}
		*f.out = &v
	}

	optional := []struct {
		in  *string
		out **sql.NullString
	}{
		{p.WebsiteURL, &enc.WebsiteURL},
		{p.Notes, &enc.Notes},
	}
	for _, f := range optional {
		if f.in == nil {
			continue
		}
		v, err := encryptOptional(*f.in, key)
		if err != nil {
			return model.EncryptedPatch{}, err
		}
		*f.out = &v
	}

	return enc, nil
}

// encryptOptional maps a blank optional field to NULL.
func encryptOptional(v string, key []byte) (sql.NullString, error) {
	if v == "" {
		return sql.NullString{}, nil
	}
	enc, err := crypto.Encrypt(v, key)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: enc, Valid: true}, nil
}

func decryptOptional(v sql.NullString, key []byte) (string, error) {
	if !v.Valid {
		return "", nil
	}
	return crypto.Decrypt(v.String, key)
}

func decryptRow(row model.EncryptedCredential, key []byte) (model.Credential, error) {
	c := model.Credential{
		ID:        row.ID,
		Favourite: row.Favourite,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	var err error
	if c.WebsiteName, err = crypto.Decrypt(row.WebsiteName, key); err != nil {
		return model.Credential{}, err
	}
	if c.Username, err = crypto.Decrypt(row.Username, key); err != nil {
		return model.Credential{}, err
	}
	if c.Password, err = crypto.Decrypt(row.Password, key); err != nil {
		return model.Credential{}, err
	}
	if c.WebsiteURL, err = decryptOptional(row.WebsiteURL, key); err != nil {
		return model.Credential{}, err
	}
	if c.Notes, err = decryptOptional(row.Notes, key); err != nil {
		return model.Credential{}, err
	}

	return c, nil
}
