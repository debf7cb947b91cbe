package ports

import (
	"context"
	"errors"

	"github.com/turathna/marketplace/internal/orders/domain"
)

// EventCheckoutSessionCompleted is the provider event type that confirms
// payment. All other event types are accepted and ignored.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// CheckoutSession is the provider-hosted transaction the buyer is redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// WebhookEvent is a verified, decoded provider callback.
type WebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
}

// CheckoutGateway wraps the external payment provider. CreateSession builds a
// hosted checkout from the order lines; VerifyWebhook authenticates an inbound
// callback against the shared signing secret using the raw request body.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, order domain.Order) (*CheckoutSession, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// ErrInvalidSignature is returned when webhook verification fails. Nothing may
// be mutated on this path: it is the sole integrity check on "paid" claims.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ProviderError indicates the payment provider rejected or failed a call.
// The order stays pending_payment and the request is safe to retry.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return "payment provider: " + e.Message
}
