package domain

import (
	"context"
	"time"
)

// RenderJobRepository defines persistence for render jobs. Every write also
// advances updated_at, which the sweep's oldest-first ordering relies on.
type RenderJobRepository interface {
	Create(ctx context.Context, job *RenderJob) error
	GetByID(ctx context.Context, jobID string) (*RenderJob, error)

	// SetAwaitingPayment records the checkout session and moves the job
	// from pending-upload to awaiting_payment.
	SetAwaitingPayment(ctx context.Context, jobID, sessionID string) error

	// MarkPaid records the payment reference. Replays are harmless: a
	// delivery that arrives before the job is claimed overwrites the same
	// values, and one that arrives after the job left paid is a no-op, so
	// a finished job is never rewound to paid.
	MarkPaid(ctx context.Context, jobID, paymentIntent string) error

	// Claim atomically moves a job from paid to processing. It returns
	// ErrNotClaimable when the job is no longer in paid, which means
	// another worker (or an earlier run) already took it.
	Claim(ctx context.Context, jobID string) error

	// MarkDone records the result keys and expiry alongside status done.
	MarkDone(ctx context.Context, jobID, outputKey, thumbKey string, expiresAt time.Time) error

	// MarkFailed records the error message alongside status failed. The
	// expiry puts the job's uploaded source on the same retention clock as
	// finished results, so the reaper purges it too.
	MarkFailed(ctx context.Context, jobID, errMsg string, expiresAt time.Time) error

	// ListPaid returns up to limit paid jobs, oldest updated first.
	ListPaid(ctx context.Context, limit int) ([]RenderJob, error)

	// ListExpired returns up to limit non-deleted jobs past their expiry,
	// expiry ascending.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]RenderJob, error)

	// SoftDelete marks a job deleted after its artifacts are purged.
	SoftDelete(ctx context.Context, jobID, reason string) error

	// RequeueStuck returns processing jobs untouched since the cutoff to
	// paid so the next sweep retries them. It reports how many moved.
	RequeueStuck(ctx context.Context, cutoff time.Time) (int64, error)

	// ClaimDailyRun records that the named maintenance task ran on the
	// given day. It returns false when the day was already claimed, so the
	// daily tasks run at most once per day across all workers.
	ClaimDailyRun(ctx context.Context, task string, day time.Time) (bool, error)
}

// ArticleRepository resolves the base template video for jobs that
// composite onto existing content. Articles themselves are managed by the
// CMS, which is outside this service.
type ArticleRepository interface {
	// GetVideoKey returns the artifact key of the article's template
	// video, or ErrNotFound when the article does not exist or has none.
	GetVideoKey(ctx context.Context, articleID string) (string, error)
}
