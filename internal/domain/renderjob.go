package domain

import (
	"fmt"
	"time"
)

// JobStatus enumerates render job lifecycle states. Transitions are
// monotonic; no operation moves a job back to an earlier state.
type JobStatus string

const (
	StatusPendingUpload   JobStatus = "pending-upload"
	StatusAwaitingPayment JobStatus = "awaiting_payment"
	StatusPaid            JobStatus = "paid"
	StatusProcessing      JobStatus = "processing"
	StatusDone            JobStatus = "done"
	StatusFailed          JobStatus = "failed"
)

// RenderJob tracks one paid personalized-video render through its lifecycle.
type RenderJob struct {
	ID                  string
	ImageKey            string
	ImageMIME           string
	AmountCents         int64
	Currency            string
	Status              JobStatus
	StripeSessionID     string
	StripePaymentIntent string
	// ArticleID selects the base template video when the render composites
	// onto existing content. Empty means direct prompt-to-video.
	ArticleID      string
	OutputVideoKey string
	ThumbKey       string
	ExpiresAt      *time.Time
	ErrorMessage   string
	GuestEmail     string
	Locale         string
	DeleteReason   string
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the job's result retention window has passed.
func (j *RenderJob) Expired(now time.Time) bool {
	return j.ExpiresAt != nil && j.ExpiresAt.Before(now)
}

// Gone reports whether the job should be treated as no longer available:
// either reaped already or past its expiry even though artifacts remain.
func (j *RenderJob) Gone(now time.Time) bool {
	return j.DeletedAt != nil || j.Expired(now)
}

// SourceKey returns the artifact key for a job's uploaded source image.
// The job id is the sole namespace, so key collisions across jobs are
// impossible as long as ids are unique.
func SourceKey(jobID, ext string) string {
	return fmt.Sprintf("renders/%s/source%s", jobID, ext)
}

// OutputKey returns the artifact key for a job's rendered video.
func OutputKey(jobID string) string {
	return fmt.Sprintf("renders/%s/output.mp4", jobID)
}

// ThumbKey returns the artifact key for a job's result thumbnail.
func ThumbKey(jobID string) string {
	return fmt.Sprintf("renders/%s/thumb.jpg", jobID)
}
