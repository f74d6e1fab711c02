package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/storage"
)

// Reaper purges artifacts for jobs past their retention expiry and
// soft-deletes the job records. Each job is handled independently; a
// failure on one job skips it and the batch continues.
type Reaper struct {
	Jobs      domain.RenderJobRepository
	Store     storage.ArtifactStore
	BatchSize int
	Logger    zerolog.Logger
}

const reapReason = "retention window expired"

// Run performs one purge pass and returns how many jobs were reaped.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	jobs, err := r.Jobs.ListExpired(ctx, time.Now(), r.BatchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range jobs {
		if err := r.reapOne(ctx, job); err != nil {
			r.Logger.Error().Err(err).Str("job_id", job.ID).Msg("reaper: job skipped")
			continue
		}
		reaped++
	}
	if reaped > 0 {
		r.Logger.Info().Int("reaped", reaped).Msg("reaper: purge pass complete")
	}
	return reaped, nil
}

// reapOne deletes both artifacts before the record is marked deleted, so a
// soft-deleted row always means the storage is clean. Missing objects
// count as already deleted.
func (r *Reaper) reapOne(ctx context.Context, job domain.RenderJob) error {
	for _, key := range []string{job.OutputVideoKey, job.ThumbKey, job.ImageKey} {
		if key == "" {
			continue
		}
		if err := r.Store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return r.Jobs.SoftDelete(ctx, job.ID, reapReason)
}
