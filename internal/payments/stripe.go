package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// metadataJobKey correlates a checkout session back to the render job.
const metadataJobKey = "render_job_id"

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway builds a gateway with its own API client. secretKey
// authenticates API calls; webhookSecret verifies inbound event signatures.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// CreateCheckoutSession opens a one-item, fixed-price checkout tagged with
// the job id so the completion webhook can find the job again.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Personalized video render"),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata(metadataJobKey, p.JobID)
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("payments: create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyEvent validates the Stripe-Signature header and normalizes the
// event payload.
func (g *StripeGateway) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("payments: verify webhook signature: %w", err)
	}
	return normalizeEvent(event.Type, event.Data.Raw)
}

func normalizeEvent(eventType stripe.EventType, raw json.RawMessage) (*Event, error) {
	out := &Event{Type: string(eventType)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("payments: decode checkout session: %w", err)
	}
	out.SessionID = sess.ID
	out.JobID = sess.Metadata[metadataJobKey]
	if sess.PaymentIntent != nil {
		out.PaymentIntent = sess.PaymentIntent.ID
	}
	return out, nil
}

var _ Gateway = (*StripeGateway)(nil)
