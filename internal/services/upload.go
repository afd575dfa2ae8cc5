package services

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"fielduploads-api/internal/config"
	apperrors "fielduploads-api/internal/errors"
	"fielduploads-api/internal/models"
	"fielduploads-api/internal/utils"
)

const timestampLayout = "2006-01-02 15:04:05"

// UploadService runs the upload processing pipeline: normalize the image,
// embed the geotag, burn the caption, persist to object storage and append
// the ledger row. Each stage takes the previous stage's bytes and returns
// new bytes; nothing is mutated in place.
//
// Only the two hard preconditions (task id, image payload) fail a request.
// Every enrichment stage degrades gracefully and the result flags report
// what actually happened.
type UploadService struct {
	cfg     *config.Config
	storage StorageGateway
	ledger  *LedgerService

	now func() time.Time // injectable clock for tests
}

func NewUploadService(cfg *config.Config, storage StorageGateway, ledger *LedgerService) *UploadService {
	return &UploadService{
		cfg:     cfg,
		storage: storage,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Process handles one upload request end to end.
func (s *UploadService) Process(ctx context.Context, req models.UploadRequest) (*models.UploadResult, error) {
	if strings.TrimSpace(req.TaskID) == "" {
		return nil, fmt.Errorf("%w: task_id required", apperrors.ErrInvalidInput)
	}
	if req.FileName == "" || len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: image required", apperrors.ErrInvalidInput)
	}

	start := s.now()
	taskID := strings.TrimSpace(req.TaskID)

	data, converted, err := utils.EnsureJPEG(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: not a decodable image: %v", apperrors.ErrInvalidInput, err)
	}
	if converted {
		log.Printf("[Upload] Converted %s to JPEG (%d bytes)", req.FileName, len(data))
	}

	finalName := utils.FinalImageName(taskID, start, path.Base(req.FileName))

	exifWritten := false
	if s.cfg.EnableExif {
		var status utils.GeotagStatus
		data, status = utils.WriteGeotag(data, req.Latitude, req.Longitude)
		exifWritten = status == utils.GeotagWritten
	}

	stamped := false
	if s.cfg.StampOnSave {
		lines := []string{
			fmt.Sprintf("Task: %s  |  Station: %s", taskID, req.StationID),
			fmt.Sprintf("Lat: %s  |  Lon: %s", req.Latitude, req.Longitude),
			fmt.Sprintf("Time: %s", start.Format(timestampLayout)),
			fmt.Sprintf("File: %s", finalName),
		}
		if out, err := utils.StampCaption(data, lines, s.cfg.StampScale); err != nil {
			log.Printf("[Upload] Stamping failed for %s: %v", finalName, err)
		} else {
			data = out
			stamped = true
		}
	}

	key := s.cfg.ImagesPrefix + finalName
	url := ""
	if err := s.storage.Put(ctx, key, data, "image/jpeg"); err != nil {
		// Missing or unreachable storage degrades the request, it does not
		// fail it: the caller still gets its ledger row, with no URL.
		log.Printf("[Upload] Storage put failed for %s: %v", key, err)
	} else {
		url = s.ImageURL(finalName)
	}

	ledgerRow := models.LedgerRow{
		TaskID:    taskID,
		StationID: req.StationID,
		Note:      req.Note,
		ImageName: finalName,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Timestamp: start.Format(timestampLayout),
		ImageURL:  url,
	}
	if err := s.ledger.Append(ctx, ledgerRow); err != nil {
		log.Printf("[Upload] Ledger append failed for %s: %v", finalName, err)
	}

	log.Printf("[Upload] Processed %s (exif=%t stamped=%t) in %v",
		finalName, exifWritten, stamped, time.Since(start))

	return &models.UploadResult{
		OK:             true,
		Saved:          finalName,
		URL:            url,
		ExifGPSWritten: exifWritten,
		Stamped:        stamped,
	}, nil
}

// Fetch streams a stored image back out, for the proxy endpoint.
func (s *UploadService) Fetch(ctx context.Context, fileName string) ([]byte, error) {
	key := fileName
	if !strings.HasPrefix(key, s.cfg.ImagesPrefix) {
		key = s.cfg.ImagesPrefix + fileName
	}
	return s.storage.Get(ctx, key)
}

// ListImages returns the newest stored image names, without the key prefix.
func (s *UploadService) ListImages(ctx context.Context, limit int) ([]string, error) {
	keys, err := s.storage.List(ctx, s.cfg.ImagesPrefix, limit)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, s.cfg.ImagesPrefix)
		switch strings.ToLower(path.Ext(name)) {
		case ".jpg", ".jpeg", ".png", ".webp":
			names = append(names, name)
		}
	}
	return names, nil
}

// ImageURL prefers a direct public URL from the storage backend and falls
// back to proxying through this server's own endpoint.
func (s *UploadService) ImageURL(fileName string) string {
	if u := s.storage.PublicURL(s.cfg.ImagesPrefix + fileName); u != "" {
		return u
	}
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL + "/images/" + fileName
	}
	return "/images/" + fileName
}
