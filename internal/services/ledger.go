package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"

	"fielduploads-api/internal/config"
	apperrors "fielduploads-api/internal/errors"
	"fielduploads-api/internal/models"
)

const ledgerContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column layout of the ledger sheet. The eighth column carries a clickable
// hyperlink to the stored image.
var ledgerHeader = []interface{}{
	"Task ID", "Station ID", "Note", "Image Name",
	"Latitude", "Longitude", "Timestamp", "Image URL",
}

// LedgerService maintains the append-only task ledger: one workbook in
// object storage, one row per upload. Every append is a full
// fetch-mutate-persist cycle over a local working copy.
//
// There is no cross-request locking. Two concurrent appends each rewrite the
// whole document and the last persist wins; the losing row survives only in
// that writer's local working copy. This is an accepted weak-consistency
// trade-off, not a durability guarantee.
type LedgerService struct {
	storage StorageGateway

	key         string // object key of the workbook
	sheet       string
	workPath    string // local working copy
	fallback    string // local plain-text fallback log
	fallbackKey string // object key the fallback log is mirrored to
}

func NewLedgerService(storage StorageGateway, cfg *config.Config) *LedgerService {
	base := filepath.Base(cfg.LedgerKey)
	return &LedgerService{
		storage:     storage,
		key:         cfg.LedgerKey,
		sheet:       cfg.LedgerSheet,
		workPath:    cfg.LedgerWorkPath(),
		fallback:    cfg.LedgerFallbackPath(),
		fallbackKey: strings.TrimSuffix(base, filepath.Ext(base)) + "_fallback.csv",
	}
}

// Append adds one row to the ledger. When the structured workbook cannot be
// fetched, opened or written, the same values degrade to a delimited line in
// the fallback log; the upload request still counts as a success either way.
func (s *LedgerService) Append(ctx context.Context, row models.LedgerRow) error {
	if err := s.appendStructured(ctx, row); err != nil {
		log.Printf("[Ledger] Structured append failed, degrading to fallback log: %v", err)
		return s.appendFallback(ctx, row)
	}
	return nil
}

func (s *LedgerService) appendStructured(ctx context.Context, row models.LedgerRow) error {
	if err := s.ensureLocal(ctx); err != nil {
		return err
	}

	f, err := excelize.OpenFile(s.workPath)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", s.sheet, err)
	}

	next := len(rows) + 1
	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return err
	}

	values := []interface{}{
		row.TaskID, row.StationID, row.Note, row.ImageName,
		row.Latitude, row.Longitude, row.Timestamp, row.ImageURL,
	}
	if err := f.SetSheetRow(s.sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	if row.ImageURL != "" {
		if err := s.linkImageCell(f, next, row.ImageURL); err != nil {
			log.Printf("[Ledger] Failed to set hyperlink on row %d: %v", next, err)
		}
	}

	if err := s.persistLocal(f); err != nil {
		return err
	}

	data, err := os.ReadFile(s.workPath)
	if err != nil {
		return fmt.Errorf("failed to re-read workbook: %w", err)
	}

	if err := s.storage.Put(ctx, s.key, data, ledgerContentType); err != nil {
		// The row is durable in the working copy and rides along with the
		// next successful upload.
		log.Printf("[Ledger] Upload of %s failed, row kept locally: %v", s.key, err)
	}

	return nil
}

// ensureLocal refreshes the working copy from storage, bootstrapping a new
// workbook with only the header row when the document does not exist yet.
func (s *LedgerService) ensureLocal(ctx context.Context) error {
	data, err := s.storage.Get(ctx, s.key)
	if err == nil {
		return os.WriteFile(s.workPath, data, 0o644)
	}

	if _, statErr := os.Stat(s.workPath); statErr == nil {
		// A working copy exists; prefer it over losing rows that have not
		// made it back to storage yet.
		log.Printf("[Ledger] Using local working copy, fetch failed: %v", err)
		return nil
	}

	if errors.Is(err, apperrors.ErrNotFound) {
		return s.bootstrap()
	}

	return fmt.Errorf("failed to fetch ledger: %w", err)
}

func (s *LedgerService) bootstrap() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", s.sheet); err != nil {
		return err
	}
	header := append([]interface{}(nil), ledgerHeader...)
	if err := f.SetSheetRow(s.sheet, "A1", &header); err != nil {
		return err
	}

	return f.SaveAs(s.workPath)
}

// linkImageCell turns the Image URL cell into a styled external hyperlink.
func (s *LedgerService) linkImageCell(f *excelize.File, rowNum int, url string) error {
	cell, err := excelize.CoordinatesToCellName(len(ledgerHeader), rowNum)
	if err != nil {
		return err
	}

	if err := f.SetCellHyperLink(s.sheet, cell, url, "External"); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "1265BE", Underline: "single"},
	})
	if err != nil {
		return err
	}

	return f.SetCellStyle(s.sheet, cell, cell, styleID)
}

// persistLocal overwrites the working copy in place. When another process
// holds the file open (permission or sharing violation), the workbook is
// written to a uniquely named sibling and renamed over the target instead of
// failing the request.
func (s *LedgerService) persistLocal(f *excelize.File) error {
	saveErr := f.Save()
	if saveErr == nil {
		return nil
	}

	tmp := fmt.Sprintf("%s.tmp-%s", s.workPath, uuid.New().String())
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save workbook (in place: %v): %w", saveErr, err)
	}

	if err := os.Rename(tmp, s.workPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace workbook: %w", err)
	}

	log.Printf("[Ledger] Workbook was locked, replaced via temp file (%v)", saveErr)
	return nil
}

// Rebuild replaces the ledger with a fresh workbook containing the header
// row plus the given rows, then uploads it. Used by the maintenance CLI to
// reconstruct the document from what is actually in storage.
func (s *LedgerService) Rebuild(ctx context.Context, rows []models.LedgerRow) error {
	if err := s.bootstrap(); err != nil {
		return err
	}

	f, err := excelize.OpenFile(s.workPath)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	for i, row := range rows {
		rowNum := i + 2 // row 1 is the header
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.TaskID, row.StationID, row.Note, row.ImageName,
			row.Latitude, row.Longitude, row.Timestamp, row.ImageURL,
		}
		if err := f.SetSheetRow(s.sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rowNum, err)
		}
		if row.ImageURL != "" {
			if err := s.linkImageCell(f, rowNum, row.ImageURL); err != nil {
				log.Printf("[Ledger] Failed to set hyperlink on row %d: %v", rowNum, err)
			}
		}
	}

	if err := s.persistLocal(f); err != nil {
		return err
	}

	data, err := os.ReadFile(s.workPath)
	if err != nil {
		return fmt.Errorf("failed to re-read workbook: %w", err)
	}

	return s.storage.Put(ctx, s.key, data, ledgerContentType)
}

// appendFallback writes one delimited line with the same field values to the
// plain-text fallback log, then mirrors the log to storage best-effort.
func (s *LedgerService) appendFallback(ctx context.Context, row models.LedgerRow) error {
	file, err := os.OpenFile(s.fallback, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open fallback log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(file)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = info.Size() == 0 // header once, on first line only

	if err := enc.Encode(row); err != nil {
		return fmt.Errorf("failed to encode fallback row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush fallback log: %w", err)
	}

	if data, readErr := os.ReadFile(s.fallback); readErr == nil {
		if putErr := s.storage.Put(ctx, s.fallbackKey, data, "text/csv"); putErr != nil {
			log.Printf("[Ledger] Failed to mirror fallback log: %v", putErr)
		}
	}

	return nil
}
