package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/render"
)

func testExecutor(jobs *memJobs, articles memArticles, store *memStore, cap render.Capability, notifier *recordingNotifier) *Executor {
	e := &Executor{
		Jobs:          jobs,
		Articles:      articles,
		Store:         store,
		Capabilities:  render.Selector{FaceSwap: cap, Text: cap},
		Retention:     24 * time.Hour,
		RenderTimeout: time.Minute,
		DownloadTTL:   time.Hour,
		Logger:        zerolog.Nop(),
	}
	if notifier != nil {
		e.Notifier = notifier
	}
	return e
}

func paidJob(id string) *domain.RenderJob {
	return &domain.RenderJob{
		ID:        id,
		ImageKey:  domain.SourceKey(id, ".jpg"),
		ImageMIME: "image/jpeg",
		Status:    domain.StatusPaid,
	}
}

func TestExecutorCompletesPaidJob(t *testing.T) {
	job := paidJob("job-b")
	job.ArticleID = "article-7"
	job.GuestEmail = "guest@example.com"

	jobs := newMemJobs(job)
	store := newMemStore()
	store.put(job.ImageKey, []byte("face"))
	store.put("articles/article-7/template.mp4", []byte("template"))
	articles := memArticles{"article-7": "articles/article-7/template.mp4"}
	cap := &stubCapability{video: []byte("final-video"), thumb: []byte("thumb")}
	notifier := &recordingNotifier{}

	e := testExecutor(jobs, articles, store, cap, notifier)
	before := time.Now()
	e.Process(context.Background(), *job)

	got := jobs.get(job.ID)
	if got.Status != domain.StatusDone {
		t.Fatalf("status = %q, want done (error: %q)", got.Status, got.ErrorMessage)
	}
	if got.OutputVideoKey != domain.OutputKey(job.ID) {
		t.Fatalf("output key = %q", got.OutputVideoKey)
	}
	if got.ExpiresAt == nil {
		t.Fatal("done job has nil expiry")
	}
	wantExpiry := before.Add(24 * time.Hour)
	if diff := got.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry %v not ~24h out", got.ExpiresAt)
	}
	if !store.has(got.OutputVideoKey) {
		t.Fatal("output not written to store")
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "guest@example.com" {
		t.Fatalf("notification not delivered: %v", notifier.sent)
	}
}

func TestExecutorFailsJobOnMissingImage(t *testing.T) {
	job := paidJob("job-c")
	jobs := newMemJobs(job)
	store := newMemStore() // no source image uploaded
	cap := &stubCapability{video: []byte("video")}

	e := testExecutor(jobs, nil, store, cap, nil)
	e.Process(context.Background(), *job)

	got := jobs.get(job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("failed job has empty error message")
	}
	if !strings.Contains(got.ErrorMessage, "source image") {
		t.Fatalf("error message %q does not mention the missing input", got.ErrorMessage)
	}
	if got.ExpiresAt == nil {
		t.Fatal("failed job has no expiry; its source upload would never be reaped")
	}

	// A failed job never reappears in the sweep.
	batch, err := jobs.ListPaid(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPaid: %v", err)
	}
	for _, j := range batch {
		if j.ID == job.ID {
			t.Fatal("failed job re-selected by sweep")
		}
	}
}

func TestExecutorFailsJobOnEmptyOutput(t *testing.T) {
	job := paidJob("job-d")
	jobs := newMemJobs(job)
	store := newMemStore()
	store.put(job.ImageKey, []byte("face"))
	cap := &stubCapability{video: nil}

	e := testExecutor(jobs, nil, store, cap, nil)
	e.Process(context.Background(), *job)

	got := jobs.get(job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("failed job has empty error message")
	}
}

func TestExecutorClaimIsExclusive(t *testing.T) {
	job := paidJob("job-e")
	jobs := newMemJobs(job)
	store := newMemStore()
	store.put(job.ImageKey, []byte("face"))
	cap := &stubCapability{video: []byte("video")}

	e := testExecutor(jobs, nil, store, cap, nil)
	e.Process(context.Background(), *job)
	// Second call simulates another sweep holding a stale copy of the job.
	e.Process(context.Background(), *job)

	if cap.callCount() != 1 {
		t.Fatalf("render ran %d times, want 1", cap.callCount())
	}
}

func TestExecutorSkipsNotificationWithoutRecipient(t *testing.T) {
	job := paidJob("job-f")
	jobs := newMemJobs(job)
	store := newMemStore()
	store.put(job.ImageKey, []byte("face"))
	cap := &stubCapability{video: []byte("video")}
	notifier := &recordingNotifier{}

	e := testExecutor(jobs, nil, store, cap, notifier)
	e.Process(context.Background(), *job)

	if got := jobs.get(job.ID); got.Status != domain.StatusDone {
		t.Fatalf("status = %q, want done", got.Status)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("unexpected notification to %v", notifier.sent)
	}
}
