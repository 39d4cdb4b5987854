package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/repository"
	"github.com/vaultpass/credcache/internal/session"
)

const (
	testUsername = "alice"
	testPassword = "Tr0ub4dor&3!"
)

type fixture struct {
	db      *sql.DB
	dataDir string
	session *session.Manager
	auth    *AuthService
	vault   *VaultService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dataDir := t.TempDir()
	db, err := repository.NewDB(context.Background(), repository.DriverSQLite, filepath.Join(dataDir, "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sess := session.NewManager()
	t.Cleanup(sess.ClearKey)

	return &fixture{
		db:      db,
		dataDir: dataDir,
		session: sess,
		auth:    NewAuthService(repository.NewMasterRepository(db), sess, dataDir, "test-secret", time.Hour),
		vault:   NewVaultService(db, sess),
	}
}

func registerRequest(username, password string) model.RegisterRequest {
	return model.RegisterRequest{Username: username, Password: password, ConfirmPassword: password}
}

// unlocked registers the test master credential and unlocks the vault.
func (f *fixture) unlocked(t *testing.T) model.UnlockResponse {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.auth.Register(ctx, registerRequest(testUsername, testPassword)))
	resp, err := f.auth.Unlock(ctx, model.UnlockRequest{Username: testUsername, Password: testPassword})
	require.NoError(t, err)
	return resp
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}
