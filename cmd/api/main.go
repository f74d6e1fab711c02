package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/payments"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	store, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure artifact store")
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip resolver unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Jobs:          repo.NewRenderJobRepository(pool),
		Store:         store,
		Payments:      payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		Logger:        logger,
		PriceCents:    cfg.RenderPriceCents,
		Currency:      cfg.RenderCurrency,
		PublicBaseURL: cfg.PublicBaseURL,
		UploadTTL:     cfg.UploadURLTTL,
		DownloadTTL:   cfg.DownloadURLTTL,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		DefaultLocale:  "en",
		CountryLookup:  countryLookup,
		AllowedOrigins: []string{cfg.PublicBaseURL},
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}

// buildArtifactStore picks S3 when a bucket is configured, otherwise the
// local filesystem store for development.
func buildArtifactStore(ctx context.Context, cfg *infra.Config) (storage.ArtifactStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	}
	return storage.NewFileStore("./storage", cfg.PublicBaseURL+"/static")
}
