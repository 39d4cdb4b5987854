package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/middleware"
	"github.com/vaultpass/credcache/internal/model"
	"github.com/vaultpass/credcache/internal/service"
	"github.com/vaultpass/credcache/internal/settings"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20 // 1MB

var errInvalidID = errors.New("invalid entry id")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// decodeJSON reads the request body into v. On failure it writes the error
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

// entryID parses the {id} URL parameter.
func entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// writeError maps service errors to HTTP responses. Unknown errors are logged
// and reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, model.ErrInvalidSortMode),
		errors.Is(err, settings.ErrInvalidAutoLock),
		isGeneratorError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse(service.ErrInvalidCredentials.Error()))
	case errors.Is(err, service.ErrVaultLocked):
		writeJSON(w, http.StatusLocked, errorResponse("vault is locked"))
	case errors.Is(err, service.ErrEntryNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotRegistered), errors.Is(err, service.ErrAlreadyRegistered):
		writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, crypto.ErrDecryption):
		slog.Error("vault decryption failed", requestAttrs(r)...)
		writeJSON(w, http.StatusInternalServerError, errorResponse("unable to decrypt vault"))
	default:
		slog.Error("request failed", append(requestAttrs(r), "error", err)...)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
	}
}

// requestAttrs identifies the request, and its session when authenticated.
func requestAttrs(r *http.Request) []any {
	attrs := []any{"request_id", middleware.RequestIDFromContext(r.Context())}
	if id, ok := middleware.SessionIDFromContext(r.Context()); ok {
		attrs = append(attrs, "session_id", id)
	}
	return attrs
}

func isGeneratorError(err error) bool {
	return errors.Is(err, crypto.ErrLengthTooShort) ||
		errors.Is(err, crypto.ErrLengthTooLong) ||
		errors.Is(err, crypto.ErrInvalidDigitCount) ||
		errors.Is(err, crypto.ErrInvalidSpecialCount) ||
		errors.Is(err, crypto.ErrLengthInsufficient)
}
