package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/payments"
)

var imageMIMEPattern = regexp.MustCompile(`^image/[a-zA-Z0-9.+-]+$`)

type createSessionRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ArticleID   string `json:"article_id"`
	GuestEmail  string `json:"guest_email"`
}

type createSessionResponse struct {
	JobID       string `json:"job_id"`
	UploadURL   string `json:"upload_url"`
	CheckoutURL string `json:"checkout_url"`
}

// RendersCreateSession starts a render job: presigned upload slot, job row,
// checkout session. The client uploads the image itself; the webhook moves
// the job forward once payment lands.
func (a *App) RendersCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "filename is required")
		return
	}
	if !imageMIMEPattern.MatchString(req.ContentType) {
		a.error(w, http.StatusBadRequest, "bad_request", "content_type must be an image MIME type")
		return
	}

	// The id is minted before any artifact exists and namespaces every key
	// belonging to this job.
	jobID := uuid.NewString()
	imageKey := domain.SourceKey(jobID, sourceExtension(req.Filename, req.ContentType))

	uploadURL, err := a.Store.PresignUpload(r.Context(), imageKey, req.ContentType, a.UploadTTL)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("renders: presign upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to prepare upload")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	job := &domain.RenderJob{
		ID:          jobID,
		ImageKey:    imageKey,
		ImageMIME:   req.ContentType,
		AmountCents: a.PriceCents,
		Currency:    a.Currency,
		Status:      domain.StatusPendingUpload,
		ArticleID:   req.ArticleID,
		GuestEmail:  strings.TrimSpace(req.GuestEmail),
		Locale:      locale,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("renders: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	session, err := a.Payments.CreateCheckoutSession(r.Context(), payments.CheckoutParams{
		JobID:         jobID,
		AmountCents:   a.PriceCents,
		Currency:      a.Currency,
		CustomerEmail: job.GuestEmail,
		SuccessURL:    a.PublicBaseURL + "/renders/" + jobID + "?checkout=success",
		CancelURL:     a.PublicBaseURL + "/renders/" + jobID + "?checkout=cancelled",
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("renders: create checkout session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create checkout session")
		return
	}

	if err := a.Jobs.SetAwaitingPayment(r.Context(), jobID, session.ID); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("renders: record checkout session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record checkout session")
		return
	}

	a.json(w, http.StatusCreated, createSessionResponse{
		JobID:       jobID,
		UploadURL:   uploadURL,
		CheckoutURL: session.URL,
	})
}

// RendersStatus reports job progress. 404 means the job never existed; 410
// means it existed and its result is no longer available.
func (a *App) RendersStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("renders: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.Gone(time.Now()) {
		a.error(w, http.StatusGone, "gone", "job result is no longer available")
		return
	}

	resp := map[string]any{
		"id":     job.ID,
		"status": job.Status,
	}
	if job.ExpiresAt != nil {
		resp["expires_at"] = job.ExpiresAt
	}
	if job.Status == domain.StatusDone {
		// Signed on every query so the exposure window is always bounded
		// by the presign TTL, never by job lifetime.
		url, err := a.Store.PresignDownload(r.Context(), job.OutputVideoKey, a.DownloadTTL)
		if err != nil {
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("renders: presign download failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to sign download url")
			return
		}
		resp["download_url"] = url
	}
	a.json(w, http.StatusOK, resp)
}

func sourceExtension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
