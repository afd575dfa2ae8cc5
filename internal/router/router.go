package router

import (
	"net/http"

	"fielduploads-api/internal/handlers"
)

// Setup configures and returns the HTTP router with all application routes.
func Setup(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	// Health checks
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /ping", h.HandlePing)

	// Upload pipeline
	mux.HandleFunc("POST /upload", h.HandleUpload)

	// Image retrieval and browsing
	mux.HandleFunc("GET /images/{name}", h.HandleImage)
	mux.HandleFunc("GET /gallery", h.HandleGallery)

	mux.HandleFunc("/", h.HandleRoot)

	return mux
}
