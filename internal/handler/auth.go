package handler

import (
	"net/http"

	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/service"
)

// AuthHandler handles HTTP requests for the master credential and the vault
// session.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// HandleStatus handles GET /api/v1/auth/status requests.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleRegister handles POST /api/v1/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Register(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// HandleUnlock handles POST /api/v1/auth/unlock requests.
func (h *AuthHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	var req model.UnlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Unlock(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleReset handles POST /api/v1/auth/reset requests. The vault is wiped.
func (h *AuthHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}

// HandleLock handles POST /api/v1/auth/lock requests.
func (h *AuthHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	h.service.Lock()
	w.WriteHeader(http.StatusNoContent)
}
