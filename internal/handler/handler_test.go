package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/middleware"
	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/repository"
	"github.com/vaultpass/credcache/internal/service"
	"github.com/vaultpass/credcache/internal/session"
	"github.com/vaultpass/credcache/internal/settings"
)

const (
	testUsername = "alice"
	testPassword = "Tr0ub4dor&3!"
)

type testServer struct {
	handler http.Handler
	session *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dataDir := t.TempDir()
	db, err := repository.NewDB(context.Background(), repository.DriverSQLite, filepath.Join(dataDir, "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sess := session.NewManager()
	t.Cleanup(sess.ClearKey)

	h := NewRouter(RouterConfig{
		Auth:        service.NewAuthService(repository.NewMasterRepository(db), sess, dataDir, "test-secret", time.Hour),
		Vault:       service.NewVaultService(db, sess),
		Generator:   service.NewGeneratorService(),
		Settings:    settings.NewStore(dataDir),
		Session:     sess,
		UnlockRPS:   100,
		UnlockBurst: 100,
	})
	return &testServer{handler: h, session: sess}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// unlock registers the test master credential and returns a session token.
func (s *testServer) unlock(t *testing.T) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", model.RegisterRequest{
		Username: testUsername, Password: testPassword, ConfirmPassword: testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/unlock", "", model.UnlockRequest{
		Username: testUsername, Password: testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.UnlockResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth_StatusLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/auth/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusResponse{}, decode[model.StatusResponse](t, rec))

	token := s.unlock(t)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/status", "", nil)
	status := decode[model.StatusResponse](t, rec)
	assert.True(t, status.Registered)
	assert.True(t, status.Unlocked)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/lock", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.session.IsUnlocked())

	// The token died with its session.
	rec = s.do(t, http.MethodGet, "/api/v1/vault", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/unlock", "", model.UnlockRequest{Username: testUsername, Password: testPassword})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", "", model.RegisterRequest{
		Username: testUsername, Password: "weak", ConfirmPassword: "weak",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.unlock(t)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", "", model.RegisterRequest{
		Username: "bob", Password: testPassword, ConfirmPassword: testPassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/unlock", "", model.UnlockRequest{Username: testUsername, Password: "Wr0ng&pass!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.ErrInvalidCredentials.Error(), errorMessage(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/unlock", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", errorMessage(t, rec))
}

func TestAuth_ResetWipesVault(t *testing.T) {
	s := newTestServer(t)
	token := s.unlock(t)

	rec := s.do(t, http.MethodPost, "/api/v1/vault", token, model.CredentialInput{
		WebsiteName: "example.com", Username: "alice", Password: "p@ss1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	newPassword := "N3w&Stronger!"
	rec = s.do(t, http.MethodPost, "/api/v1/auth/reset", "", model.RegisterRequest{
		Username: "bob", Password: newPassword, ConfirmPassword: newPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, s.session.IsUnlocked())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/unlock", "", model.UnlockRequest{Username: "bob", Password: newPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	token = decode[model.UnlockResponse](t, rec).Token

	rec = s.do(t, http.MethodGet, "/api/v1/vault", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Credential](t, rec))
}

func TestVault_CRUD(t *testing.T) {
	s := newTestServer(t)
	token := s.unlock(t)

	rec := s.do(t, http.MethodPost, "/api/v1/vault", token, model.CredentialInput{
		WebsiteName: "example.com",
		WebsiteURL:  "https://example.com",
		Username:    "alice",
		Password:    "p@ss1",
		Notes:       "note",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Credential](t, rec)
	require.NotZero(t, created.ID)
	assert.Equal(t, "p@ss1", created.Password)

	path := "/api/v1/vault/" + strconvID(created.ID)

	rec = s.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "note", decode[model.Credential](t, rec).Notes)

	rec = s.do(t, http.MethodPatch, path, token, map[string]string{"password": "n3w-p@ss"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Credential](t, rec)
	assert.Equal(t, "n3w-p@ss", updated.Password)
	assert.Equal(t, "alice", updated.Username)

	rec = s.do(t, http.MethodPatch, path, token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, path+"/favourite", token, model.FavouriteRequest{Favourite: true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/vault/favourites", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	favs := decode[[]model.Credential](t, rec)
	require.Len(t, favs, 1)
	assert.Equal(t, created.ID, favs[0].ID)

	rec = s.do(t, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting an unknown id succeeds.
	rec = s.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestVault_ListSearchAndWipe(t *testing.T) {
	s := newTestServer(t)
	token := s.unlock(t)

	for _, name := range []string{"beta.org", "Alpha.com", "gamma.net"} {
		rec := s.do(t, http.MethodPost, "/api/v1/vault", token, model.CredentialInput{
			WebsiteName: name, Username: "alice", Password: "p@ss1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/vault?sort=alphabetical", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	for _, c := range decode[[]model.Credential](t, rec) {
		names = append(names, c.WebsiteName)
	}
	assert.Equal(t, []string{"Alpha.com", "beta.org", "gamma.net"}, names)

	rec = s.do(t, http.MethodGet, "/api/v1/vault?q=ALPHA", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[[]model.Credential](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, "Alpha.com", found[0].WebsiteName)

	rec = s.do(t, http.MethodGet, "/api/v1/vault?sort=sideways", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/vault", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/vault", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.Credential](t, rec))
}

func TestVault_RequestErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.unlock(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"non-numeric id", http.MethodGet, "/api/v1/vault/abc", nil, http.StatusBadRequest},
		{"zero id", http.MethodGet, "/api/v1/vault/0", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/v1/vault/999", nil, http.StatusNotFound},
		{"unknown favourite", http.MethodPut, "/api/v1/vault/999/favourite", model.FavouriteRequest{Favourite: true}, http.StatusNotFound},
		{"unknown update", http.MethodPatch, "/api/v1/vault/999", map[string]string{"notes": "x"}, http.StatusNotFound},
		{"missing website name", http.MethodPost, "/api/v1/vault", model.CredentialInput{Username: "a", Password: "b"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestVault_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/vault", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVault_BodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	token := s.unlock(t)

	body := `{"website_name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vault", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGenerate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/generate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.GenerateResponse](t, rec)
	assert.Equal(t, 12, resp.Length)
	assert.Len(t, resp.Password, 12)

	rec = s.do(t, http.MethodPost, "/api/v1/generate", "", map[string]int{"length": 20})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.GenerateResponse](t, rec).Password, 20)

	rec = s.do(t, http.MethodPost, "/api/v1/generate", "", map[string]int{"length": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.Default(), decode[settings.Settings](t, rec))

	token := s.unlock(t)

	rec = s.do(t, http.MethodPut, "/api/v1/settings", token, settings.Settings{AutoLockEnabled: true, AutoLockMinutes: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/settings", token, settings.Settings{AutoLockEnabled: true, AutoLockMinutes: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10*time.Minute, s.session.AutoLock())

	rec = s.do(t, http.MethodGet, "/api/v1/settings", "", nil)
	got := decode[settings.Settings](t, rec)
	assert.True(t, got.AutoLockEnabled)
	assert.Equal(t, 10, got.AutoLockMinutes)
}

func strconvID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestSettings_PutRequiresToken(t *testing.T) {
	s := newTestServer(t)
	s.unlock(t)
	s.session.SetAutoLock(5 * time.Minute)

	rec := s.do(t, http.MethodPut, "/api/v1/settings", "", settings.Settings{AutoLockEnabled: false, AutoLockMinutes: 5})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 5*time.Minute, s.session.AutoLock())

	rec = s.do(t, http.MethodGet, "/api/v1/settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[settings.Settings](t, rec).AutoLockEnabled)
}

func TestRequestAttrs(t *testing.T) {
	var attrs []any
	h := middleware.Logger(middleware.JWTAuth(staticAuthenticator("session-1"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs = requestAttrs(r)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vault", nil)
	req.Header.Set("Authorization", "Bearer anything")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, attrs, 4)
	assert.Equal(t, "request_id", attrs[0])
	assert.NotEmpty(t, attrs[1])
	assert.Equal(t, "session_id", attrs[2])
	assert.Equal(t, "session-1", attrs[3])

	attrs = requestAttrs(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, []any{"request_id", ""}, attrs)
}

type staticAuthenticator string

func (a staticAuthenticator) Authenticate(string) (*crypto.Claims, error) {
	return &crypto.Claims{SessionID: string(a)}, nil
}
