package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/storage"
)

// FileHandler serves objects from local storage. With R2 the public bucket
// serves them instead and this handler is not registered.
type FileHandler struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(store storage.Storage, logger *slog.Logger) *FileHandler {
	return &FileHandler{store: store, logger: logger}
}

// RegisterRoutes registers the file routes.
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /files/{key...}", h.Serve)
}

// Serve streams the stored object named by the path.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	rc, info, err := h.store.Open(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) || storage.IsInvalidKey(err) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, "files.serve", "Failed to read file"))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if !storage.IsImage(info.ContentType) {
		w.Header().Set("Content-Disposition", "attachment")
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("file copy interrupted", "key", key, "error", err)
	}
}

// Health answers load balancer probes.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
