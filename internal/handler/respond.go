package handler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/retention"
	"github.com/lynxoskar/fileServe200/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fsroot.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fsroot.ErrMissingRoot):
		return http.StatusNotFound
	case errors.Is(err, retention.ErrPassInProgress):
		return http.StatusConflict
	case errors.Is(err, storage.ErrHashMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrIsDirectory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusInternalServerError:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	case http.StatusForbidden:
		slog.Warn("Access denied", "method", r.Method, "path", r.URL.Path)
	default:
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// relTo returns abs relative to root with forward slashes.
func relTo(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return filepath.Base(abs)
	}
	return filepath.ToSlash(rel)
}
