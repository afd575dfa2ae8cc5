package handlers

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
)

const galleryLimit = 120

// HandleGallery renders a minimal HTML grid of the newest stored images,
// each served through the proxy endpoint.
func (h *Handler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	names, err := h.uploads.ListImages(r.Context(), galleryLimit)
	if err != nil {
		log.Printf("[Gallery] Failed to list images: %v", err)
		http.Error(w, "Failed to list images", http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString("<html><body style='font-family:sans-serif;padding:12px'><h3>Gallery</h3>")
	b.WriteString("<div style='display:flex;flex-wrap:wrap'>")
	for _, name := range names {
		esc := html.EscapeString(name)
		fmt.Fprintf(&b,
			"<div style='margin:8px'><img src='/images/%s' style='max-width:240px;display:block'><small>%s</small></div>",
			esc, esc)
	}
	b.WriteString("</div></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(b.String())); err != nil {
		log.Printf("[Gallery] Failed to write response: %v", err)
	}
}
