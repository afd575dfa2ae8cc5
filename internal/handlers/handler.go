package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"fielduploads-api/internal/config"
	"fielduploads-api/internal/services"
)

type Handler struct {
	cfg     *config.Config
	uploads *services.UploadService
	storage services.StorageGateway
	cache   *services.CacheService
}

func New(cfg *config.Config, uploads *services.UploadService, storage services.StorageGateway, cache *services.CacheService) *Handler {
	return &Handler{
		cfg:     cfg,
		uploads: uploads,
		storage: storage,
		cache:   cache,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}
