package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	catalogports "github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
	"github.com/turathna/marketplace/internal/shipping"
)

// LineRequest is a requested product/quantity pair.
type LineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CreateOrderCommand struct {
	Lines       []LineRequest
	Buyer       domain.Buyer
	Destination domain.Destination
}

func (c CreateOrderCommand) Validate() error {
	if len(c.Lines) == 0 {
		return errors.New("at least one line is required")
	}
	for _, line := range c.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return errors.New("product_id is required on every line")
		}
		if line.Qty < 1 {
			return fmt.Errorf("qty for product %s must be at least 1", line.ProductID)
		}
	}
	if strings.TrimSpace(c.Buyer.Email) == "" {
		return errors.New("buyer email is required")
	}
	if !strings.Contains(c.Buyer.Email, "@") {
		return errors.New("buyer email must be valid")
	}
	if strings.TrimSpace(c.Destination.City) == "" {
		return errors.New("destination city is required")
	}
	return nil
}

// InsufficientStockError identifies the product that could not be fulfilled.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}

// CreateOrderResult carries the persisted order and, when the payment
// provider is configured, the hosted checkout URL to redirect the buyer to.
type CreateOrderResult struct {
	Order       *domain.Order
	CheckoutURL string
}

type CreateOrderHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error)
}

// ShippingEstimator quotes delivery for a destination city and total weight.
type ShippingEstimator func(city string, weightKG float64) shipping.Quote

type CreateOrderCommandHandler struct {
	orders   ports.OrderRepository
	products catalogports.ProductRepository
	gateway  ports.CheckoutGateway
	events   ports.EventBus
	estimate ShippingEstimator
}

func NewCreateOrderCommandHandler(
	orders ports.OrderRepository,
	products catalogports.ProductRepository,
	gateway ports.CheckoutGateway,
	events ports.EventBus,
	estimate ShippingEstimator,
) *CreateOrderCommandHandler {
	if estimate == nil {
		estimate = shipping.Estimate
	}
	return &CreateOrderCommandHandler{
		orders:   orders,
		products: products,
		gateway:  gateway,
		events:   events,
		estimate: estimate,
	}
}

// Handle validates stock, snapshots current prices into order lines, applies
// a shipping quote and persists the order as pending_payment before asking
// the gateway for a checkout session. Stock is NOT reserved here: two
// concurrent orders may both pass the stock check for limited inventory.
// The decrement happens only on payment confirmation.
func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		lines    = make([]domain.Line, 0, len(cmd.Lines))
		subtotal float64
		weightKG float64
	)

	for _, req := range cmd.Lines {
		product, err := h.products.GetByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, catalogports.ErrNotFound) {
				return nil, fmt.Errorf("product %s: %w", req.ProductID, err)
			}
			return nil, fmt.Errorf("look up product %s: %w", req.ProductID, err)
		}

		if req.Qty > product.Stock {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: req.Qty,
				Available: product.Stock,
			}
		}

		lines = append(lines, domain.Line{
			ProductID:    product.ID,
			Name:         product.Name,
			Qty:          req.Qty,
			UnitPriceSAR: product.PriceSAR,
		})
		subtotal += product.PriceSAR * float64(req.Qty)
		weightKG += product.WeightKG * float64(req.Qty)
	}

	quote := h.estimate(cmd.Destination.City, weightKG)

	now := time.Now().UTC()
	order := domain.Order{
		ID:          domain.NewOrderID(),
		Buyer:       cmd.Buyer,
		Destination: cmd.Destination,
		Lines:       lines,
		SubtotalSAR: domain.Round2(subtotal),
		ShippingSAR: quote.CostSAR,
		TotalSAR:    domain.Round2(domain.Round2(subtotal) + quote.CostSAR),
		Shipping: domain.ShippingInfo{
			Carrier:       quote.Carrier,
			CostSAR:       quote.CostSAR,
			EstimatedDays: quote.EstimatedDays,
			Trackable:     quote.Trackable,
		},
		Status:    domain.StatusPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	session, err := h.gateway.CreateSession(ctx, order)
	if err != nil {
		// The order stays pending_payment; a retried request creates a new session.
		return nil, err
	}

	if session.ID != "" {
		// Best-effort: the session id is diagnostics only, reconciliation
		// keys on the order id carried in the session metadata.
		if err := h.orders.SetCheckoutSession(ctx, order.ID, session.ID); err == nil {
			order.CheckoutSessionID = session.ID
		}
	}

	result := &CreateOrderResult{Order: &order, CheckoutURL: session.URL}

	if err := h.events.PublishOrderCreated(ctx, order.ID); err != nil {
		return result, fmt.Errorf("order saved but failed to publish event: %w", err)
	}

	return result, nil
}
