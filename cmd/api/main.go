package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"refinery/internal/adapter/repo"
	"refinery/internal/dispatch"
	"refinery/internal/engine"
	"refinery/internal/http/handlers"
	"refinery/internal/http/httpapi"
	"refinery/internal/infra"
	"refinery/internal/infra/metrics"
	"refinery/internal/notify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	metrics.MustRegister()

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	photos := repo.NewPhotoRepository(pool)
	refinements := repo.NewRefinementRepository(pool)
	jobs := repo.NewJobRepository(pool)

	engineClient := engine.NewClient(engine.Options{
		BaseURL:      cfg.EngineBaseURL,
		PollInterval: cfg.EnginePollInterval,
		ProbeTimeout: cfg.EngineProbeTimeout,
	})
	notifier := notify.NewNotifier(notify.Options{
		DefaultURL: cfg.WebhookURL,
		APIKey:     cfg.WebhookAPIKey,
		Timeout:    cfg.WebhookTimeout,
		Logger:     logger,
	})

	app := &handlers.App{
		Photos:      photos,
		Refinements: refinements,
		Jobs:        jobs,
		Engine:      engineClient,
		Dispatcher:  dispatch.NewOrchestrator(photos, refinements, engineClient, cfg.EngineDispatchTimeout, logger),
		Runner:      dispatch.NewRunner(jobs, engineClient, notifier, cfg.EngineJobTimeout, logger),
		Logger:      logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:   cfg.CORSOrigins,
		DefaultLocale: cfg.DefaultLocale,
	})
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
