package handler

import (
	"net/http"

	"github.com/vaultpass/credcache/internal/session"
	"github.com/vaultpass/credcache/internal/settings"
)

// SettingsHandler handles HTTP requests for user preferences.
type SettingsHandler struct {
	store   *settings.Store
	session *session.Manager
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store *settings.Store, sess *session.Manager) *SettingsHandler {
	return &SettingsHandler{store: store, session: sess}
}

// HandleGet handles GET /api/v1/settings requests.
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Load()
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s)
}

// HandlePut handles PUT /api/v1/settings requests. The auto-lock policy
// takes effect immediately.
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	s := settings.Default()
	if !decodeJSON(w, r, &s) {
		return
	}

	if err := h.store.Save(s); err != nil {
		writeError(w, r, err)
		return
	}
	h.session.SetAutoLock(s.AutoLockTimeout())

	writeJSON(w, http.StatusOK, s)
}
