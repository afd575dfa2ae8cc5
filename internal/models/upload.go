package models

import "time"

// UploadRequest carries one field-captured photo plus its form metadata
// through the processing pipeline.
type UploadRequest struct {
	TaskID    string
	StationID string
	Note      string
	Latitude  string
	Longitude string
	FileName  string
	Data      []byte
}

// UploadResult is the JSON body returned by the upload endpoint.
type UploadResult struct {
	OK             bool   `json:"ok"`
	Saved          string `json:"saved,omitempty"`
	URL            string `json:"url,omitempty"`
	ExifGPSWritten bool   `json:"exif_gps_written"`
	Stamped        bool   `json:"stamped"`
	Error          string `json:"error,omitempty"`
}

// LedgerRow is one appended record in the task ledger. Field order matches
// the ledger header; the csv tags drive the plain-text fallback encoder.
type LedgerRow struct {
	TaskID    string `csv:"task_id"`
	StationID string `csv:"station_id"`
	Note      string `csv:"note"`
	ImageName string `csv:"image_name"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
	Timestamp string `csv:"timestamp"`
	ImageURL  string `csv:"image_url"`
}

// CacheEntry is a cached copy of image bytes served by the proxy endpoint.
type CacheEntry struct {
	Data        []byte
	ContentType string
	FileName    string
	Expires     time.Time
}
