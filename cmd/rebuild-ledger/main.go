package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"fielduploads-api/internal/config"
	"fielduploads-api/internal/models"
	"fielduploads-api/internal/services"
	"fielduploads-api/internal/utils"
)

// Reconstructs the task ledger from the images actually present in object
// storage: file names carry task id and capture time, GPS is read back out
// of the embedded EXIF. Useful after the ledger document is lost or corrupt
// beyond what the fallback log covers.
func main() {
	logger := log.New(os.Stdout, "[RebuildLedger] ", log.LstdFlags)

	dryRun := flag.Bool("dry-run", false, "Preview rows without writing the ledger")
	limit := flag.Int("limit", 0, "Maximum number of images to scan (0 = all)")
	flag.Parse()

	if *dryRun {
		logger.Println("DRY RUN - ledger will not be written")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	storage, err := services.NewStorageGateway(cfg)
	if err != nil {
		logger.Fatalf("storage gateway: %v", err)
	}
	ledger := services.NewLedgerService(storage, cfg)
	uploads := services.NewUploadService(cfg, storage, ledger)

	ctx := context.Background()

	keys, err := storage.List(ctx, cfg.ImagesPrefix, *limit)
	if err != nil {
		logger.Fatalf("list images: %v", err)
	}

	stats := struct {
		rebuilt, skipped, noGPS, errors int
	}{}

	var rows []models.LedgerRow
	for _, key := range keys {
		name := strings.TrimPrefix(key, cfg.ImagesPrefix)

		taskID, takenAt, _, parseErr := utils.ParseImageName(name)
		if parseErr != nil {
			logger.Printf("Skipping %s: %v", name, parseErr)
			stats.skipped++
			continue
		}

		data, err := storage.Get(ctx, key)
		if err != nil {
			logger.Printf("Failed to fetch %s: %v", name, err)
			stats.errors++
			continue
		}

		lat, lon := readGPS(data)
		if lat == "" {
			stats.noGPS++
		}

		row := models.LedgerRow{
			TaskID:    taskID,
			ImageName: name,
			Latitude:  lat,
			Longitude: lon,
			Timestamp: takenAt.Format("2006-01-02 15:04:05"),
			ImageURL:  uploads.ImageURL(name),
		}
		rows = append(rows, row)
		stats.rebuilt++

		if *dryRun {
			logger.Printf("[DRY] %s task=%s lat=%s lon=%s", name, taskID, lat, lon)
		}
	}

	if !*dryRun {
		if err := ledger.Rebuild(ctx, rows); err != nil {
			logger.Fatalf("rebuild ledger: %v", err)
		}
	}

	logger.Printf("Done: rebuilt=%d skipped=%d noGPS=%d errors=%d",
		stats.rebuilt, stats.skipped, stats.noGPS, stats.errors)
}

// readGPS extracts the geotag written during upload, formatted the way the
// form fields would have carried it. Empty strings when absent.
func readGPS(data []byte) (lat, lon string) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ""
	}

	latF, lonF, err := x.LatLong()
	if err != nil {
		return "", ""
	}

	return fmt.Sprintf("%.6f", latF), fmt.Sprintf("%.6f", lonF)
}
