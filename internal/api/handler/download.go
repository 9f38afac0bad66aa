package handler

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/firmware"
)

// DownloadHandler serves firmware artifacts to devices.
type DownloadHandler struct {
	catalog *firmware.Service
	logger  zerolog.Logger
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(catalog *firmware.Service, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{catalog: catalog, logger: logger}
}

// Download handles GET and HEAD /api/download/{firmwareID}. Local artifacts
// are streamed with range support; remote artifacts are redirected to.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	fw, err := h.catalog.Get(r.Context(), chi.URLParam(r, "firmwareID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if !fw.IsLocal() {
		http.Redirect(w, r, fw.URI, http.StatusFound)
		return
	}

	path, err := fw.LocalPath()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the catalog, not the request
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn().Str("firmware_id", fw.ID).Str("path", path).Msg("artifact missing on disk")
			response.NotFound(w, r, "firmware file not found")
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fw.Filename}))
	http.ServeContent(w, r, fw.Filename, info.ModTime(), f)
}
