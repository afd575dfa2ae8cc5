package server

import (
	"net/http"

	"golang.org/x/time/rate"

	"fielduploads-api/internal/config"
	"fielduploads-api/internal/handlers"
	"fielduploads-api/internal/middleware"
	"fielduploads-api/internal/router"
	"fielduploads-api/internal/services"
)

// Services holds all initialized services for the application
type Services struct {
	Storage services.StorageGateway
	Cache   *services.CacheService
	Ledger  *services.LedgerService
	Upload  *services.UploadService
}

// InitServices initializes all application services based on configuration.
// The storage client itself connects lazily on first use.
func InitServices(cfg *config.Config) (*Services, error) {
	storage, err := services.NewStorageGateway(cfg)
	if err != nil {
		return nil, err
	}

	cacheService := services.NewCacheService(cfg.CacheTTL, cfg.CacheCleanupInterval)
	ledgerService := services.NewLedgerService(storage, cfg)
	uploadService := services.NewUploadService(cfg, storage, ledgerService)

	return &Services{
		Storage: storage,
		Cache:   cacheService,
		Ledger:  ledgerService,
		Upload:  uploadService,
	}, nil
}

// CreateHandler creates an HTTP handler with all middleware applied
func CreateHandler(cfg *config.Config, svcs *Services) http.Handler {
	h := handlers.New(cfg, svcs.Upload, svcs.Storage, svcs.Cache)

	mux := router.Setup(h)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	wrapped := limiter.Limit(mux)
	wrapped = middleware.RequestID(wrapped)
	wrapped = middleware.CORS(wrapped, cfg.AllowedOrigins)
	wrapped = middleware.Logger(wrapped)
	wrapped = middleware.Recover(wrapped)

	return wrapped
}
