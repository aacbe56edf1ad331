package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

// maxRequestBody caps JSON request bodies at 1 MiB.
const maxRequestBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondForError maps the application error taxonomy onto HTTP statuses.
func respondForError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case apperrors.IsAuth(err):
		respondError(w, http.StatusUnauthorized, "not authorized")
	case apperrors.Is(err, apperrors.ErrNotFound), apperrors.Is(err, apperrors.ErrProfileNotFound), apperrors.Is(err, apperrors.ErrTenantNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case apperrors.IsTransient(err):
		respondError(w, http.StatusServiceUnavailable, "backend unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
