package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend identifiers accepted in STORAGE_BACKEND.
const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
)

type Config struct {
	Port           string
	BaseURL        string // Public base URL of this server; falls back to request host
	AllowedOrigins []string

	StorageBackend string // "minio" or "gcs"

	// MinIO / S3-compatible backend
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string // Optional: base URL when the bucket is public

	// Google Cloud Storage backend
	GCSBucket          string
	GCSCredentialsPath string
	GCSCredentialsJSON string // Raw JSON string, preferred in container deploys
	GCSPublicRead      bool

	ImagesPrefix   string // Key prefix for stored images
	LedgerKey      string // Object key of the ledger workbook
	LedgerSheet    string // Sheet name inside the workbook
	WorkDir        string // Local scratch dir for the ledger working copy
	MaxUploadBytes int64

	EnableExif  bool
	StampOnSave bool
	StampScale  int

	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	RateLimitRPS         float64
	RateLimitBurst       int
}

// Load reads configuration from environment variables and .env file.
// It loads the .env file if present, then populates the Config struct.
// Returns an error if required configuration is missing.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		BaseURL:        strings.TrimRight(getEnv("BASE_URL", ""), "/"),
		AllowedOrigins: getList("ALLOWED_ORIGINS", []string{"*"}),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMinio)),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", ""),
		MinioUseSSL:    getBoolEnv("MINIO_USE_SSL", true),
		MinioPublicURL: strings.TrimRight(getEnv("MINIO_PUBLIC_URL", ""), "/"),

		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSCredentialsPath: getEnv("GCS_CREDENTIALS_PATH", ""),
		GCSCredentialsJSON: getEnv("GCS_CREDENTIALS_JSON", ""),
		GCSPublicRead:      getBoolEnv("GCS_PUBLIC_READ", false),

		ImagesPrefix:   getEnv("IMAGES_PREFIX", "images/"),
		LedgerKey:      getEnv("LEDGER_KEY", "TaskLog.xlsx"),
		LedgerSheet:    getEnv("LEDGER_SHEET", "TaskLog"),
		WorkDir:        getEnv("WORK_DIR", os.TempDir()),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_MB", 50)) << 20,

		EnableExif:  getBoolEnv("ENABLE_EXIF", true),
		StampOnSave: getBoolEnv("STAMP_ON_SAVE", true),
		StampScale:  getIntEnv("STAMP_SCALE", 4),

		CacheTTL:             getDurationEnv("CACHE_TTL", 15*time.Minute),
		CacheCleanupInterval: getDurationEnv("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		RateLimitRPS:         getFloatEnv("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       getIntEnv("RATE_LIMIT_BURST", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// Storage credentials are deliberately not required here: the storage client
// connects lazily and a misconfigured backend degrades at request time
// instead of blocking startup.
func (c *Config) Validate() error {
	if c.StorageBackend != BackendMinio && c.StorageBackend != BackendGCS {
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendMinio, BackendGCS, c.StorageBackend)
	}
	if c.ImagesPrefix == "" {
		return fmt.Errorf("IMAGES_PREFIX must not be empty")
	}
	if c.LedgerKey == "" || c.LedgerSheet == "" {
		return fmt.Errorf("LEDGER_KEY and LEDGER_SHEET must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.StampScale <= 0 {
		return fmt.Errorf("STAMP_SCALE must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheCleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// LedgerWorkPath is the local working copy of the ledger workbook.
func (c *Config) LedgerWorkPath() string {
	return filepath.Join(c.WorkDir, filepath.Base(c.LedgerKey))
}

// LedgerFallbackPath is the plain-text log used when the workbook is unusable.
func (c *Config) LedgerFallbackPath() string {
	base := filepath.Base(c.LedgerKey)
	return filepath.Join(c.WorkDir, strings.TrimSuffix(base, filepath.Ext(base))+"_fallback.csv")
}

// Retrieves an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// Retrieves a duration from environment variable or returns a default value.
// It supports both time.Duration format (e.g., "10m", "12h") and integer minutes.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

// Retrieves a comma-separated list from environment variable or returns a default value.
func getList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// Retrieves a boolean from environment variable or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// Retrieves an integer from environment variable or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Retrieves a float from environment variable or returns a default value.
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
