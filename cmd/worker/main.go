package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"refinery/internal/adapter/repo"
	"refinery/internal/dispatch"
	"refinery/internal/domain"
	"refinery/internal/engine"
	"refinery/internal/infra"
	"refinery/internal/infra/metrics"
	"refinery/internal/notify"
)

const claimInterval = 2 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

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
	runner := dispatch.NewRunner(jobs, engineClient, notifier, cfg.EngineJobTimeout, logger)

	logger.Info().Msg("worker: started")
	run(ctx, jobs, engineClient, runner, logger)
	logger.Info().Msg("worker: stopped")
}

// run claims pending jobs one at a time until the context is cancelled. The
// engine probe gates each claim so jobs are not pulled off the queue while the
// engine is down.
func run(ctx context.Context, jobs domain.JobRepository, eng *engine.Client, runner *dispatch.Runner, logger infra.Logger) {
	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if st := eng.CheckStatus(ctx); !st.Online {
			continue
		}

		job, err := jobs.ClaimPending(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("worker: claim failed")
			}
			continue
		}

		logger.Info().Str("job_id", job.ID).Msg("worker: claimed job")
		runner.Run(ctx, job)
	}
}
