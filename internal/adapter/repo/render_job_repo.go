package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// RenderJobRepositoryPG implements domain.RenderJobRepository.
type RenderJobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRenderJobRepository creates a new render job repository backed by PostgreSQL.
func NewRenderJobRepository(pool *pgxpool.Pool) *RenderJobRepositoryPG {
	return &RenderJobRepositoryPG{pool: pool}
}

const jobColumns = `id, image_key, image_mime, amount_cents, currency, status,
stripe_session_id, stripe_payment_intent, article_id, output_video_key,
thumb_key, expires_at, error_message, guest_email, locale, delete_reason,
deleted_at, created_at, updated_at`

// Create inserts a new job record in pending-upload.
func (r *RenderJobRepositoryPG) Create(ctx context.Context, job *domain.RenderJob) error {
	query := `
INSERT INTO render_jobs (id, image_key, image_mime, amount_cents, currency, status, article_id, guest_email, locale)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.ImageKey,
		job.ImageMIME,
		job.AmountCents,
		job.Currency,
		job.Status,
		nullIfEmpty(job.ArticleID),
		nullIfEmpty(job.GuestEmail),
		nullIfEmpty(job.Locale),
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *RenderJobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.RenderJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM render_jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// SetAwaitingPayment records the checkout session reference.
func (r *RenderJobRepositoryPG) SetAwaitingPayment(ctx context.Context, jobID, sessionID string) error {
	query := `
UPDATE render_jobs
SET status = $2, stripe_session_id = $3, updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.StatusAwaitingPayment, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkPaid records the payment reference. The status predicate keeps
// at-least-once webhook delivery from rewinding a job the sweep already
// claimed: once a job reaches processing or a terminal state, a late
// replay matches zero rows and is treated as already applied.
func (r *RenderJobRepositoryPG) MarkPaid(ctx context.Context, jobID, paymentIntent string) error {
	query := `
UPDATE render_jobs
SET status = $2, stripe_payment_intent = $3, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
  AND status IN ('pending-upload', 'awaiting_payment', 'paid');
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.StatusPaid, paymentIntent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "no such job" from "payment already applied and the
		// job moved on"; only the former is an error.
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// Claim moves a job from paid to processing with a single conditional
// update. The rows-affected check is what makes claiming safe against a
// second worker racing on the same job.
func (r *RenderJobRepositoryPG) Claim(ctx context.Context, jobID string) error {
	query := `
UPDATE render_jobs
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.StatusProcessing, domain.StatusPaid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotClaimable
	}
	return nil
}

// MarkDone records the result keys and expiry.
func (r *RenderJobRepositoryPG) MarkDone(ctx context.Context, jobID, outputKey, thumbKey string, expiresAt time.Time) error {
	query := `
UPDATE render_jobs
SET status = $2, output_video_key = $3, thumb_key = $4, expires_at = $5, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.StatusDone, outputKey, thumbKey, expiresAt)
	return err
}

// MarkFailed records the error message and starts the retention clock so
// the failed job's source upload is eventually reaped.
func (r *RenderJobRepositoryPG) MarkFailed(ctx context.Context, jobID, errMsg string, expiresAt time.Time) error {
	query := `
UPDATE render_jobs
SET status = $2, error_message = $3, expires_at = $4, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.StatusFailed, errMsg, expiresAt)
	return err
}

// ListPaid returns the sweep batch, oldest updated first so every paid job
// eventually gets a turn.
func (r *RenderJobRepositoryPG) ListPaid(ctx context.Context, limit int) ([]domain.RenderJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM render_jobs
WHERE status = $1 AND deleted_at IS NULL
ORDER BY updated_at ASC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, domain.StatusPaid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListExpired returns the reaper batch, expiry ascending.
func (r *RenderJobRepositoryPG) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.RenderJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM render_jobs
WHERE deleted_at IS NULL AND expires_at IS NOT NULL AND expires_at < $1
ORDER BY expires_at ASC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// SoftDelete marks a job deleted. Callers only invoke this after both
// artifacts are confirmed gone from the store. The reason lands in its own
// column; error_message stays reserved for failed renders.
func (r *RenderJobRepositoryPG) SoftDelete(ctx context.Context, jobID, reason string) error {
	query := `
UPDATE render_jobs
SET deleted_at = NOW(), delete_reason = NULLIF($2, ''), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL;
`
	_, err := r.pool.Exec(ctx, query, jobID, reason)
	return err
}

// RequeueStuck returns processing jobs untouched since the cutoff to paid.
func (r *RenderJobRepositoryPG) RequeueStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
UPDATE render_jobs
SET status = $1, updated_at = NOW()
WHERE status = $2 AND deleted_at IS NULL AND updated_at < $3;
`
	tag, err := r.pool.Exec(ctx, query, domain.StatusPaid, domain.StatusProcessing, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ClaimDailyRun inserts a (task, day) marker row. The unique constraint is
// what guarantees at-most-once daily execution across workers and restarts.
func (r *RenderJobRepositoryPG) ClaimDailyRun(ctx context.Context, task string, day time.Time) (bool, error) {
	query := `
INSERT INTO maintenance_runs (task, run_day, ran_at)
VALUES ($1, $2, NOW())
ON CONFLICT (task, run_day) DO NOTHING;
`
	tag, err := r.pool.Exec(ctx, query, task, day)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.RenderJob, error) {
	var job domain.RenderJob
	var sessionID, paymentIntent, articleID, outputKey, thumbKey, errMsg, guestEmail, locale, deleteReason *string
	if err := row.Scan(
		&job.ID,
		&job.ImageKey,
		&job.ImageMIME,
		&job.AmountCents,
		&job.Currency,
		&job.Status,
		&sessionID,
		&paymentIntent,
		&articleID,
		&outputKey,
		&thumbKey,
		&job.ExpiresAt,
		&errMsg,
		&guestEmail,
		&locale,
		&deleteReason,
		&job.DeletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.StripeSessionID = deref(sessionID)
	job.StripePaymentIntent = deref(paymentIntent)
	job.ArticleID = deref(articleID)
	job.OutputVideoKey = deref(outputKey)
	job.ThumbKey = deref(thumbKey)
	job.ErrorMessage = deref(errMsg)
	job.GuestEmail = deref(guestEmail)
	job.Locale = deref(locale)
	job.DeleteReason = deref(deleteReason)
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.RenderJob, error) {
	var jobs []domain.RenderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.RenderJobRepository = (*RenderJobRepositoryPG)(nil)
