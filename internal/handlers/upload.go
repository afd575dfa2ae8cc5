package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	apperrors "fielduploads-api/internal/errors"
	"fielduploads-api/internal/models"
)

// HandleUpload accepts a multipart form with an image file and task metadata,
// runs the processing pipeline and reports what was stored.
//
// Form fields: image (file, required), task_id (required), station_id, note,
// latitude, longitude. Only a missing task id or a missing/empty-named image
// fail the request; every enrichment stage degrades into the result flags.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.UploadResult{Error: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, models.UploadResult{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.UploadResult{Error: "no image part"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, models.UploadResult{Error: "empty filename"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.UploadResult{Error: "failed to read image"})
		return
	}

	req := models.UploadRequest{
		TaskID:    r.FormValue("task_id"),
		StationID: r.FormValue("station_id"),
		Note:      r.FormValue("note"),
		Latitude:  r.FormValue("latitude"),
		Longitude: r.FormValue("longitude"),
		FileName:  header.Filename,
		Data:      data,
	}

	result, err := h.uploads.Process(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, models.UploadResult{Error: err.Error()})
			return
		}
		log.Printf("[Upload] Pipeline failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.UploadResult{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
