package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"server/internal/adapter/repo"
	"server/internal/infra"
	"server/internal/infra/pglock"
	"server/internal/mailer"
	"server/internal/render"
	"server/internal/storage"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	store, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure artifact store")
	}

	podClient := render.NewPodClient(render.PodOptions{
		BaseURL:    cfg.RenderPodURL,
		APIKey:     cfg.RenderPodAPIKey,
		HTTPClient: &http.Client{Timeout: cfg.RenderTimeout},
		Logger:     &logger,
	})
	if !podClient.Configured() {
		logger.Warn().Msg("worker: render pod endpoint missing, using synthetic media generation")
	}

	jobs := repo.NewRenderJobRepository(pool)

	var notifier mailer.Notifier
	smtp := mailer.New(mailer.Options{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if smtp.Configured() {
		notifier = smtp
	} else {
		logger.Warn().Msg("worker: smtp not configured, result notifications disabled")
	}

	executor := &worker.Executor{
		Jobs:          jobs,
		Articles:      repo.NewArticleRepository(pool),
		Store:         store,
		Capabilities:  render.Selector{FaceSwap: render.NewFaceSwap(podClient), Text: render.NewTextToVideo(podClient)},
		Notifier:      notifier,
		Retention:     cfg.RetentionWindow(),
		RenderTimeout: cfg.RenderTimeout,
		DownloadTTL:   cfg.DownloadURLTTL,
		Logger:        logger,
	}

	location, err := time.LoadLocation(cfg.DailyTaskTimezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid daily task timezone")
	}

	sweeper := &worker.Sweeper{
		Lock:       pglock.New(pool, cfg.LockName),
		Jobs:       jobs,
		Executor:   executor,
		Reaper:     &worker.Reaper{Jobs: jobs, Store: store, BatchSize: cfg.ReapBatchSize, Logger: logger},
		BatchSize:  cfg.SweepBatchSize,
		StuckAfter: cfg.StuckAfter,
		DailyHour:  cfg.DailyTaskHour,
		Location:   location,
		Logger:     logger,
	}

	scheduler := cron.New()
	// Renders can outlast the sweep interval; a still-running cycle must
	// not be shadowed by the next tick.
	cycle := cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: logger})).Then(cron.FuncJob(func() {
		if err := sweeper.RunCycle(ctx); err != nil {
			logger.Error().Err(err).Msg("worker: maintenance cycle failed")
		}
	}))
	scheduler.Schedule(cron.Every(cfg.SweepInterval), cycle)
	scheduler.Start()
	logger.Info().Dur("interval", cfg.SweepInterval).Msg("worker: started")

	<-ctx.Done()
	cronCtx := scheduler.Stop()
	// Let an in-flight cycle finish before exiting.
	<-cronCtx.Done()
	logger.Info().Msg("worker: stopped")
}

// cronLogger adapts zerolog to the cron.Logger interface so chain
// decorators report through the worker's log.
type cronLogger struct {
	log infra.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg("worker: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg("worker: " + msg)
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
