package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"instacap/internal/http/handlers"
	"instacap/internal/http/httpapi"
	"instacap/internal/infra"
	"instacap/internal/infra/geoip"
	"instacap/internal/infra/google"
	"instacap/internal/providers/language"
	"instacap/internal/providers/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	visionClient, err := vision.NewClient(vision.Options{
		APIKey:  cfg.VisionAPIKey,
		BaseURL: cfg.VisionBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("vision provider not configured")
	}
	languageClient, err := language.NewOpenAIGenerator(language.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("language provider not configured")
	}

	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		SQL:      infra.NewSQLRunner(dbpool, logger),
		Google:   google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
		Vision:   visionClient,
		Language: languageClient,
	}

	router := httpapi.NewRouter(app, cfg, logger, geoResolver)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if closer, ok := geoResolver.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	logger.Info().Msg("server stopped")
}
