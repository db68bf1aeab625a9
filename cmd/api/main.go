package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"promoreel/internal/credits"
	"promoreel/internal/http/handlers"
	"promoreel/internal/http/httpapi"
	"promoreel/internal/infra"
	"promoreel/internal/infra/credentials"
	"promoreel/internal/infra/geoip"
	"promoreel/internal/metrics"
	"promoreel/internal/middleware"
	"promoreel/internal/storage"
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

	runner := infra.NewSQLRunner(dbpool, logger)
	ledger := credits.NewLedger(runner)
	recorder := metrics.NewRecorder("promoreel")

	orchestrator, err := buildPipeline(ctx, cfg, credentials.NewStore(runner), ledger, recorder, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation pipeline")
	}

	app := handlers.NewApp(orchestrator, ledger, nil, &logger)
	if cfg.StoragePath != "" {
		store, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open artifact storage")
		}
		app.Store = store
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:          cfg.JWTSecret,
		DefaultLocale:      cfg.DefaultLocale,
		CountryLookup:      middleware.CountryLookup(resolver.Lookup()),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		Logger:             &logger,
		Metrics:            recorder,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("backend", cfg.GenerationBackend).Msg("api listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
