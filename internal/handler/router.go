package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaultpass/credcache/internal/middleware"
	"github.com/vaultpass/credcache/internal/service"
	"github.com/vaultpass/credcache/internal/session"
	"github.com/vaultpass/credcache/internal/settings"
)

// RouterConfig wires the services behind the HTTP API.
type RouterConfig struct {
	Auth      *service.AuthService
	Vault     *service.VaultService
	Generator *service.GeneratorService
	Settings  *settings.Store
	Session   *session.Manager

	// UnlockRPS and UnlockBurst limit attempts on the credential routes.
	UnlockRPS   float64
	UnlockBurst int
}

// NewRouter builds the chi router for the vault API.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth)
	vaultHandler := NewVaultHandler(cfg.Vault)
	genHandler := NewGeneratorHandler(cfg.Generator)
	settingsHandler := NewSettingsHandler(cfg.Settings, cfg.Session)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/auth/status", authHandler.HandleStatus)
		r.Post("/generate", genHandler.HandleGenerate)
		r.Get("/settings", settingsHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.UnlockRPS, cfg.UnlockBurst))
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/unlock", authHandler.HandleUnlock)
			r.Post("/auth/reset", authHandler.HandleReset)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(cfg.Auth))
			r.Post("/auth/lock", authHandler.HandleLock)
			r.Put("/settings", settingsHandler.HandlePut)

			r.Get("/vault", vaultHandler.HandleList)
			r.Post("/vault", vaultHandler.HandleCreate)
			r.Delete("/vault", vaultHandler.HandleWipe)
			r.Get("/vault/favourites", vaultHandler.HandleFavourites)
			r.Get("/vault/{id}", vaultHandler.HandleGet)
			r.Patch("/vault/{id}", vaultHandler.HandleUpdate)
			r.Delete("/vault/{id}", vaultHandler.HandleDelete)
			r.Put("/vault/{id}/favourite", vaultHandler.HandleSetFavourite)
		})
	})

	return r
}
