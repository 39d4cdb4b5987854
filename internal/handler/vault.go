package handler

import (
	"net/http"

	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/service"
)

// VaultHandler handles HTTP requests for vault entry operations.
type VaultHandler struct {
	service *service.VaultService
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(svc *service.VaultService) *VaultHandler {
	return &VaultHandler{service: svc}
}

// HandleList handles GET /api/v1/vault requests. The optional q parameter
// filters by website name or URL; sort selects the order.
func (h *VaultHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	mode, err := model.ParseSortMode(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleFavourites handles GET /api/v1/vault/favourites requests.
func (h *VaultHandler) HandleFavourites(w http.ResponseWriter, r *http.Request) {
	mode, err := model.ParseSortMode(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.service.Favourites(r.Context(), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleCreate handles POST /api/v1/vault requests.
func (h *VaultHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.CredentialInput
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.service.Add(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// HandleGet handles GET /api/v1/vault/{id} requests.
func (h *VaultHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleUpdate handles PATCH /api/v1/vault/{id} requests. Only the fields
// present in the body are changed.
func (h *VaultHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var req model.CredentialPatch
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Update(r.Context(), id, req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// HandleDelete handles DELETE /api/v1/vault/{id} requests. Unknown ids
// succeed.
func (h *VaultHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSetFavourite handles PUT /api/v1/vault/{id}/favourite requests.
func (h *VaultHandler) HandleSetFavourite(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var req model.FavouriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SetFavourite(r.Context(), id, req.Favourite); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleWipe handles DELETE /api/v1/vault requests.
func (h *VaultHandler) HandleWipe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Wipe(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
