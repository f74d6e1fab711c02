package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/storage"
	"server/internal/worker"
)

// renderctl is the operator CLI: inspect a job, requeue stuck jobs, or run
// a purge pass by hand when waiting for the worker's schedule is not an
// option.
func main() {
	root := &cobra.Command{
		Use:           "renderctl",
		Short:         "Operations CLI for the render job pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(jobCmd(), requeueCmd(), purgeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "renderctl:", err)
		os.Exit(1)
	}
}

// connect loads config and opens the database pool. Callers own the pool.
func connect(ctx context.Context) (*infra.Config, *pgxpool.Pool, error) {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, pool, nil
}

func jobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Print a render job record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			job, err := repo.NewRenderJobRepository(pool).GetByID(ctx, args[0])
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("job %s not found", args[0])
			}
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func requeueCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "requeue-stuck",
		Short: "Move stale processing jobs back to paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if olderThan <= 0 {
				olderThan = cfg.StuckAfter
			}
			moved, err := repo.NewRenderJobRepository(pool).RequeueStuck(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d stuck job(s)\n", moved)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "staleness threshold (default: configured value)")
	return cmd
}

func purgeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Run one retention purge pass over expired jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := buildArtifactStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("configure artifact store: %w", err)
			}

			if limit <= 0 {
				limit = cfg.ReapBatchSize
			}
			reaper := &worker.Reaper{
				Jobs:      repo.NewRenderJobRepository(pool),
				Store:     store,
				BatchSize: limit,
				Logger:    infra.NewLogger(cfg.AppEnv),
			}
			reaped, err := reaper.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired job(s)\n", reaped)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum jobs to purge (default: configured batch size)")
	return cmd
}

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
