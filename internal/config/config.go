package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// envPrefix is prepended to every variable name below.
const envPrefix = "VAULT_"

// AppDirName is the data directory name under the user config directory.
const AppDirName = "Credentials Cacher"

const (
	driverSQLite = "sqlite"
	driverMySQL  = "mysql"
)

var (
	ErrUnsupportedDriver = errors.New("VAULT_DB_DRIVER must be sqlite or mysql")
	ErrMySQLDSNRequired  = errors.New("VAULT_DATABASE_DSN is required for the mysql driver")
	ErrPublicAddr        = errors.New("VAULT_ADDR must be a loopback address outside development")
	ErrInvalidLogLevel   = errors.New("VAULT_LOG_LEVEL must be debug, info, warn or error")
)

// Config contains the vault daemon configuration.
type Config struct {
	Env         string        `env:"ENV" envDefault:"production"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	Addr        string        `env:"ADDR" envDefault:"127.0.0.1:7878"`
	DataDir     string        `env:"DATA_DIR"`
	DBDriver    string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseDSN string        `env:"DATABASE_DSN"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenExpiry time.Duration `env:"TOKEN_EXPIRY" envDefault:"12h"`
	UnlockRPS   float64       `env:"UNLOCK_RPS" envDefault:"0.2"`
	UnlockBurst int           `env:"UNLOCK_BURST" envDefault:"5"`
}

// Load reads the configuration from VAULT_* environment variables and fills
// in the derived defaults.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		cfg.DataDir = filepath.Join(base, AppDirName)
	}

	if cfg.DBDriver == driverSQLite && cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = filepath.Join(cfg.DataDir, "vault.db")
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		slog.Info("VAULT_JWT_SECRET not set, using a per-process secret")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks option combinations env tags cannot express.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case driverSQLite:
	case driverMySQL:
		if c.DatabaseDSN == "" {
			return ErrMySQLDSNRequired
		}
	default:
		return ErrUnsupportedDriver
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if !c.IsDevelopment() && !isLoopback(c.Addr) {
		return fmt.Errorf("%w: %q", ErrPublicAddr, c.Addr)
	}

	return nil
}

// IsDevelopment reports whether VAULT_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, ErrInvalidLogLevel
	}
	return level, nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
