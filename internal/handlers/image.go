package handlers

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	apperrors "fielduploads-api/internal/errors"
)

// HandleImage streams a stored image back out through this server, so the
// bucket never has to be public. Bytes are cached with a TTL in front of
// object storage.
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	fileName := strings.TrimSpace(r.PathValue("name"))
	if fileName == "" {
		http.Error(w, "Missing file name", http.StatusBadRequest)
		return
	}

	// Security: Prevent path traversal attacks
	if strings.Contains(fileName, "..") || strings.Contains(fileName, "/") || strings.Contains(fileName, "\\") {
		log.Printf("[Image] Security: Rejected suspicious fileName: %s", fileName)
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	if len(fileName) > 255 {
		http.Error(w, "File name too long", http.StatusBadRequest)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(fileName))
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if entry, ok := h.cache.Get(fileName); ok {
		log.Printf("[Image] Cache hit: %s", fileName)
		serveBytes(w, entry.ContentType, entry.Data)
		return
	}

	data, err := h.uploads.Fetch(r.Context(), fileName)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		log.Printf("[Image] Failed to fetch %s: %v", fileName, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.cache.Set(fileName, data, contentType, fileName)

	log.Printf("[Image] Served %s (%d bytes) in %v", fileName, len(data), time.Since(start))
	serveBytes(w, contentType, data)
}

func serveBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=900")
	if _, err := w.Write(data); err != nil {
		log.Printf("[Image] Failed to write response: %v", err)
	}
}
