package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vaultpass/credcache/internal/config"
	"github.com/vaultpass/credcache/internal/handler"
	"github.com/vaultpass/credcache/internal/repository"
	"github.com/vaultpass/credcache/internal/service"
	"github.com/vaultpass/credcache/internal/session"
	"github.com/vaultpass/credcache/internal/settings"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("vaultd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return err
	}

	// A corrupt salt makes every entry unreadable; refuse to start.
	if _, err := repository.LoadOrCreateSalt(cfg.DataDir); err != nil {
		return err
	}

	db, err := repository.NewDB(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	sess := session.NewManager()
	defer sess.ClearKey()
	sess.Subscribe(func(s session.State) {
		slog.Info("vault state changed", "state", s.String())
	})

	store := settings.NewStore(cfg.DataDir)
	prefs, err := store.Load()
	if err != nil {
		return err
	}
	sess.SetAutoLock(prefs.AutoLockTimeout())
	slog.Info("settings loaded", "path", store.Path(), "auto_lock", prefs.AutoLockTimeout())

	router := handler.NewRouter(handler.RouterConfig{
		Auth:        service.NewAuthService(repository.NewMasterRepository(db), sess, cfg.DataDir, cfg.JWTSecret, cfg.TokenExpiry),
		Vault:       service.NewVaultService(db, sess),
		Generator:   service.NewGeneratorService(),
		Settings:    store,
		Session:     sess,
		UnlockRPS:   cfg.UnlockRPS,
		UnlockBurst: cfg.UnlockBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr, "env", cfg.Env, "driver", cfg.DBDriver, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}
