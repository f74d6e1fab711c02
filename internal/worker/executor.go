package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/mailer"
	"server/internal/render"
	"server/internal/storage"
)

// defaultPrompt seeds direct prompt-to-video jobs, which carry no template.
const defaultPrompt = "personalized highlight video featuring the uploaded face"

// Executor runs one paid job to a terminal state: claim, resolve inputs,
// render, store output, mark done or failed. Failures are job-local and
// never propagate to the sweep batch.
type Executor struct {
	Jobs          domain.RenderJobRepository
	Articles      domain.ArticleRepository
	Store         storage.ArtifactStore
	Capabilities  render.Selector
	Notifier      mailer.Notifier
	Retention     time.Duration
	RenderTimeout time.Duration
	DownloadTTL   time.Duration
	Logger        zerolog.Logger
}

// Process claims the job and drives it to done or failed. A job that is no
// longer claimable (another worker took it, or it already ran) is skipped
// silently.
func (e *Executor) Process(ctx context.Context, job domain.RenderJob) {
	if err := e.Jobs.Claim(ctx, job.ID); err != nil {
		if errors.Is(err, domain.ErrNotClaimable) {
			e.Logger.Debug().Str("job_id", job.ID).Msg("executor: job no longer claimable, skipping")
			return
		}
		e.Logger.Error().Err(err).Str("job_id", job.ID).Msg("executor: claim failed")
		return
	}

	runCtx := ctx
	if e.RenderTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.RenderTimeout)
		defer cancel()
	}

	outputKey, thumbKey, expiresAt, err := e.run(runCtx, &job)
	if err != nil {
		e.Logger.Error().Err(err).Str("job_id", job.ID).Msg("executor: job failed")
		// Failed jobs still hold the uploaded source; the same retention
		// window that bounds results bounds it.
		if markErr := e.Jobs.MarkFailed(ctx, job.ID, err.Error(), time.Now().Add(e.Retention)); markErr != nil {
			e.Logger.Error().Err(markErr).Str("job_id", job.ID).Msg("executor: mark failed errored")
		}
		return
	}

	if err := e.Jobs.MarkDone(ctx, job.ID, outputKey, thumbKey, expiresAt); err != nil {
		e.Logger.Error().Err(err).Str("job_id", job.ID).Msg("executor: mark done errored")
		return
	}
	e.Logger.Info().Str("job_id", job.ID).Str("output_key", outputKey).Msg("executor: job done")

	e.notify(ctx, job, outputKey, expiresAt)
}

func (e *Executor) run(ctx context.Context, job *domain.RenderJob) (outputKey, thumbKey string, expiresAt time.Time, err error) {
	req, err := e.resolveInputs(ctx, job)
	if err != nil {
		return "", "", time.Time{}, err
	}

	capability, err := e.Capabilities.For(req)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("select capability: %w", err)
	}
	result, err := capability.Render(ctx, req)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if len(result.Video) == 0 {
		return "", "", time.Time{}, domain.ErrEmptyOutput
	}

	outputKey = domain.OutputKey(job.ID)
	if err := e.Store.Write(ctx, outputKey, result.Video, "video/mp4"); err != nil {
		return "", "", time.Time{}, fmt.Errorf("store output: %w", err)
	}
	if len(result.Thumb) > 0 {
		thumbKey = domain.ThumbKey(job.ID)
		if err := e.Store.Write(ctx, thumbKey, result.Thumb, "image/jpeg"); err != nil {
			// The video made it; a lost thumbnail is not worth failing the job.
			e.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("executor: store thumb failed")
			thumbKey = ""
		}
	}

	return outputKey, thumbKey, time.Now().Add(e.Retention), nil
}

func (e *Executor) resolveInputs(ctx context.Context, job *domain.RenderJob) (render.Request, error) {
	req := render.Request{
		JobID:      job.ID,
		SourceMIME: job.ImageMIME,
		Prompt:     defaultPrompt,
	}

	image, err := e.Store.Read(ctx, job.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return req, fmt.Errorf("%w: source image %s", domain.ErrMissingArtifact, job.ImageKey)
		}
		return req, fmt.Errorf("read source image: %w", err)
	}
	if len(image) == 0 {
		return req, fmt.Errorf("%w: source image %s is empty", domain.ErrMissingArtifact, job.ImageKey)
	}
	req.SourceImage = image

	if job.ArticleID == "" {
		return req, nil
	}

	videoKey, err := e.Articles.GetVideoKey(ctx, job.ArticleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return req, fmt.Errorf("%w: article %s has no template video", domain.ErrMissingArtifact, job.ArticleID)
		}
		return req, fmt.Errorf("resolve article video: %w", err)
	}
	video, err := e.Store.Read(ctx, videoKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return req, fmt.Errorf("%w: base video %s", domain.ErrMissingArtifact, videoKey)
		}
		return req, fmt.Errorf("read base video: %w", err)
	}
	if len(video) == 0 {
		return req, fmt.Errorf("%w: base video %s is empty", domain.ErrMissingArtifact, videoKey)
	}
	req.BaseVideo = video
	return req, nil
}

// notify emails the result link when a recipient is known. Best-effort: a
// send failure is logged and the job stays done.
func (e *Executor) notify(ctx context.Context, job domain.RenderJob, outputKey string, expiresAt time.Time) {
	if job.GuestEmail == "" || e.Notifier == nil {
		return
	}
	url, err := e.Store.PresignDownload(ctx, outputKey, e.DownloadTTL)
	if err != nil {
		e.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("executor: presign for notification failed")
		return
	}
	if err := e.Notifier.SendResultLink(ctx, job.GuestEmail, job.Locale, url, expiresAt); err != nil {
		e.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("executor: result notification failed")
		return
	}
	e.Logger.Info().Str("job_id", job.ID).Msg("executor: result notification sent")
}
