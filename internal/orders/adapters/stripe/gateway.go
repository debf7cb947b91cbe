package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

const defaultTimeout = 10 * time.Second

// Config carries the provider credentials and redirect endpoints.
type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	Timeout       time.Duration
}

// Gateway implements ports.CheckoutGateway on top of Stripe Checkout.
type Gateway struct {
	cfg Config
}

// NewGateway configures the Stripe client with the account secret key.
func NewGateway(cfg Config) *Gateway {
	if cfg.Currency == "" {
		cfg.Currency = "sar"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	stripeapi.Key = cfg.SecretKey
	return &Gateway{cfg: cfg}
}

// CreateSession builds a hosted checkout session from the order's price
// snapshots. Amounts cross the wire in minor units (halalas).
func (g *Gateway) CreateSession(ctx context.Context, order domain.Order) (*ports.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := &stripeapi.CheckoutSessionParams{
		Params: stripeapi.Params{
			Context: ctx,
		},
		Mode:          stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		CustomerEmail: stripeapi.String(order.Buyer.Email),
		LineItems:     buildLineItems(order, g.cfg.Currency),
		SuccessURL:    stripeapi.String(g.cfg.BaseURL + "/order-success?order_id=" + order.ID),
		CancelURL:     stripeapi.String(g.cfg.BaseURL + "/"),
	}
	params.AddMetadata("order_id", order.ID)

	sess, err := session.New(params)
	if err != nil {
		return nil, &ports.ProviderError{Message: err.Error()}
	}

	return &ports.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyWebhook authenticates the raw callback body against the signing
// secret and decodes the fields reconciliation needs. It never mutates state.
func (g *Gateway) VerifyWebhook(payload []byte, signatureHeader string) (*ports.WebhookEvent, error) {
	if g.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret not configured: %w", ports.ErrInvalidSignature)
	}
	if signatureHeader == "" {
		return nil, fmt.Errorf("missing signature header: %w", ports.ErrInvalidSignature)
	}

	event, err := webhook.ConstructEvent(payload, signatureHeader, g.cfg.WebhookSecret)
	if err != nil {
		return nil, errors.Join(ports.ErrInvalidSignature, err)
	}

	decoded := &ports.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if decoded.Type == ports.EventCheckoutSessionCompleted {
		var object struct {
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
			return nil, fmt.Errorf("decode session object: %w", err)
		}
		decoded.OrderID = object.Metadata["order_id"]
	}

	return decoded, nil
}

func buildLineItems(order domain.Order, currency string) []*stripeapi.CheckoutSessionLineItemParams {
	items := make([]*stripeapi.CheckoutSessionLineItemParams, 0, len(order.Lines)+1)

	for _, line := range order.Lines {
		items = append(items, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(line.Name),
				},
				UnitAmount: stripeapi.Int64(domain.MinorUnits(line.UnitPriceSAR)),
			},
			Quantity: stripeapi.Int64(int64(line.Qty)),
		})
	}

	if order.ShippingSAR > 0 {
		items = append(items, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String("Shipping (" + order.Shipping.Carrier + ")"),
				},
				UnitAmount: stripeapi.Int64(domain.MinorUnits(order.ShippingSAR)),
			},
			Quantity: stripeapi.Int64(1),
		})
	}

	return items
}
