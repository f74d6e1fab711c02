package payments

import "context"

// CheckoutParams describes the single fixed-price checkout this service
// sells: one personalized video render.
type CheckoutParams struct {
	JobID         string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the gateway-side session the client is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is the normalized payment event extracted from a verified webhook
// delivery. JobID is empty when the event carries no job correlation.
type Event struct {
	Type          string
	JobID         string
	SessionID     string
	PaymentIntent string
}

// EventCheckoutCompleted is the only event type this service acts on.
const EventCheckoutCompleted = "checkout.session.completed"

// Gateway abstracts the payment provider: creating checkout sessions and
// verifying webhook deliveries. The gateway owns the charge; this service
// only reacts to its events.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// VerifyEvent checks the payload signature against the shared webhook
	// secret and returns the normalized event. A signature mismatch is the
	// only error callers reject the delivery for.
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
