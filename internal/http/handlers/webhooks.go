package handlers

import (
	"io"
	"net/http"

	"server/internal/payments"
)

const maxWebhookBody = 1 << 20 // Stripe events are small; 1 MiB is generous.

// PaymentWebhook ingests gateway events. A bad signature is the only
// rejection; once the payload verifies, the delivery is always
// acknowledged. Errors while applying the transition are logged and
// swallowed, because inviting the gateway to retry an event whose side
// effects may have partially applied does more harm than a sweep-side
// recovery later.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read payload")
		return
	}

	event, err := a.Payments.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		a.Logger.Warn().Err(err).Msg("webhook: signature verification failed")
		a.error(w, http.StatusBadRequest, "bad_signature", "webhook signature verification failed")
		return
	}

	if event.Type != payments.EventCheckoutCompleted {
		a.json(w, http.StatusOK, map[string]any{"received": true})
		return
	}
	if event.JobID == "" {
		// Checkout completed for something that is not a render job.
		a.Logger.Info().Str("session_id", event.SessionID).Msg("webhook: completed session without job correlation")
		a.json(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	if err := a.Jobs.MarkPaid(r.Context(), event.JobID, event.PaymentIntent); err != nil {
		a.Logger.Error().Err(err).
			Str("job_id", event.JobID).
			Str("session_id", event.SessionID).
			Msg("webhook: mark paid failed")
	} else {
		a.Logger.Info().Str("job_id", event.JobID).Msg("webhook: job paid")
	}
	a.json(w, http.StatusOK, map[string]any{"received": true})
}
