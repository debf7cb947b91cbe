package demo

import (
	"context"
	"fmt"

	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

// Gateway stands in for the payment provider when no credentials are
// configured. Orders are created and stay pending_payment; there is no
// hosted checkout to redirect to and no webhook can ever verify.
type Gateway struct{}

func NewGateway() *Gateway {
	return &Gateway{}
}

// CreateSession returns an empty session so callers can detect demo mode.
func (g *Gateway) CreateSession(_ context.Context, _ domain.Order) (*ports.CheckoutSession, error) {
	return &ports.CheckoutSession{}, nil
}

// VerifyWebhook always rejects: without a signing secret no "paid" claim
// can be authenticated.
func (g *Gateway) VerifyWebhook(_ []byte, _ string) (*ports.WebhookEvent, error) {
	return nil, fmt.Errorf("no signing secret configured: %w", ports.ErrInvalidSignature)
}
