package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/repository"
	"github.com/vaultpass/credcache/internal/session"
)

var (
	masterDigit   = regexp.MustCompile(`[0-9]`)
	masterSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

const minMasterPasswordLength = 8

// AuthService handles the master credential and the vault session.
type AuthService struct {
	masters   *repository.MasterRepository
	session   *session.Manager
	dataDir   string
	jwtSecret string
	jwtExpiry time.Duration
	now       func() time.Time
}

// NewAuthService creates a new AuthService. The global salt lives in dataDir.
func NewAuthService(masters *repository.MasterRepository, sess *session.Manager, dataDir, secret string, expiry time.Duration) *AuthService {
	return &AuthService{
		masters:   masters,
		session:   sess,
		dataDir:   dataDir,
		jwtSecret: secret,
		jwtExpiry: expiry,
		now:       time.Now,
	}
}

// Register stores the first master credential. Any existing vault entries
// are removed.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) error {
	if err := validateRegistration(req); err != nil {
		return err
	}

	exists, err := s.masters.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyRegistered
	}

	if err := s.replaceMaster(ctx, req); err != nil {
		return err
	}

	slog.Info("master credential registered", "username", req.Username)
	return nil
}

// ResetPassword replaces the master credential and wipes the vault. The
// session is locked first; entries under the old key are unrecoverable.
func (s *AuthService) ResetPassword(ctx context.Context, req model.RegisterRequest) error {
	if err := validateRegistration(req); err != nil {
		return err
	}

	s.session.ClearKey()

	if err := s.replaceMaster(ctx, req); err != nil {
		return err
	}

	slog.Warn("master password reset, vault wiped", "username", req.Username)
	return nil
}

func (s *AuthService) replaceMaster(ctx context.Context, req model.RegisterRequest) error {
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return err
	}

	if _, err := repository.LoadOrCreateSalt(s.dataDir); err != nil {
		return err
	}

	now := s.now().UTC()
	return s.masters.Replace(ctx, &model.MasterCredential{
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Unlock verifies the master credential, installs the derived vault key and
// returns a token bound to the new session.
func (s *AuthService) Unlock(ctx context.Context, req model.UnlockRequest) (model.UnlockResponse, error) {
	master, err := s.masters.Get(ctx)
	if err != nil {
		return model.UnlockResponse{}, err
	}

	match, err := crypto.VerifyPassword(req.Password, master.PasswordHash)
	if err != nil {
		return model.UnlockResponse{}, err
	}
	sameUser := subtle.ConstantTimeCompare([]byte(req.Username), []byte(master.Username)) == 1
	if !match || !sameUser {
		slog.Warn("unlock rejected")
		return model.UnlockResponse{}, ErrInvalidCredentials
	}

	salt, err := repository.LoadOrCreateSalt(s.dataDir)
	if err != nil {
		return model.UnlockResponse{}, err
	}

	key, err := crypto.DeriveKey([]byte(req.Password), salt)
	if err != nil {
		return model.UnlockResponse{}, err
	}
	sessionID := s.session.SetKey(key, master.PasswordHash)
	crypto.Wipe(key)

	expiresAt := s.now().Add(s.jwtExpiry).UTC()
	token, err := crypto.GenerateToken(sessionID, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		s.session.ClearKey()
		return model.UnlockResponse{}, err
	}

	return model.UnlockResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// Lock clears the vault key. Every issued token stops working.
func (s *AuthService) Lock() {
	s.session.ClearKey()
}

// Status reports whether a master credential exists and the vault is unlocked.
func (s *AuthService) Status(ctx context.Context) (model.StatusResponse, error) {
	master, err := s.masters.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotRegistered) {
			return model.StatusResponse{}, nil
		}
		return model.StatusResponse{}, err
	}

	resp := model.StatusResponse{Registered: true, Unlocked: s.session.IsUnlocked()}
	if resp.Unlocked {
		resp.Username = master.Username
	}
	return resp, nil
}

// Authenticate validates a session token. The token is accepted only while
// the session it was issued for is still unlocked.
func (s *AuthService) Authenticate(token string) (*crypto.Claims, error) {
	claims, err := crypto.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	live := s.session.SessionID()
	if live == "" || subtle.ConstantTimeCompare([]byte(live), []byte(claims.SessionID)) != 1 {
		return nil, crypto.ErrInvalidToken
	}

	return claims, nil
}

func validateRegistration(req model.RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return ErrUsernameRequired
	}
	if req.Password == "" {
		return ErrPasswordRequired
	}
	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return ValidateMasterPassword(req.Password)
}

// ValidateMasterPassword enforces the master password policy.
func ValidateMasterPassword(password string) error {
	if len([]rune(password)) < minMasterPasswordLength ||
		!masterDigit.MatchString(password) ||
		!masterSpecial.MatchString(password) {
		return ErrWeakPassword
	}
	return nil
}
