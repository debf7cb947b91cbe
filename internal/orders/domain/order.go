package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus captures the lifecycle of an order in the system.
//
// pending_payment -> paid (via verified webhook)
// pending_payment -> cancelled
//
// paid and cancelled are terminal. No transition is defined out of paid;
// reprocessing a paid order's webhook is a no-op, not an error.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusCancelled      OrderStatus = "cancelled"
)

// Line is one ordered product with quantity and a unit-price snapshot taken
// at order-creation time. Later price changes never affect existing orders.
type Line struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Qty          int     `json:"qty"`
	UnitPriceSAR float64 `json:"unit_price_sar"`
}

// Buyer holds contact details for the person placing the order.
type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Destination is where the order ships to.
type Destination struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// ShippingInfo is the quote snapshot applied to the order.
type ShippingInfo struct {
	Carrier       string  `json:"carrier"`
	CostSAR       float64 `json:"cost_sar"`
	EstimatedDays int     `json:"estimated_days"`
	Trackable     bool    `json:"trackable"`
}

// Order represents a purchase request managed by the system. Totals are
// computed once at creation and never recomputed.
type Order struct {
	ID                string       `json:"id"`
	Buyer             Buyer        `json:"buyer"`
	Destination       Destination  `json:"destination"`
	Lines             []Line       `json:"lines"`
	SubtotalSAR       float64      `json:"subtotal_sar"`
	ShippingSAR       float64      `json:"shipping_sar"`
	TotalSAR          float64      `json:"total_sar"`
	Shipping          ShippingInfo `json:"shipping"`
	Status            OrderStatus  `json:"status"`
	CheckoutSessionID string       `json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	PaidAt            *time.Time   `json:"paid_at,omitempty"`
}

// NewOrderID generates a short prefixed identifier, e.g. ord_9a8b7c6d5e4f.
func NewOrderID() string {
	id := uuid.New()
	return "ord_" + strings.ReplaceAll(id.String(), "-", "")[:12]
}

// Round2 rounds a SAR amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MinorUnits converts a SAR amount to halalas for the payment provider.
func MinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Buyer.Email) == "" {
		return errors.New("buyer email is required")
	}
	if !strings.Contains(o.Buyer.Email, "@") {
		return errors.New("buyer email must be valid")
	}
	if strings.TrimSpace(o.Destination.City) == "" {
		return errors.New("destination city is required")
	}
	if len(o.Lines) == 0 {
		return errors.New("order must have at least one line")
	}

	var subtotal float64
	for _, line := range o.Lines {
		if line.Qty < 1 {
			return fmt.Errorf("quantity for product %s must be at least 1", line.ProductID)
		}
		if line.UnitPriceSAR <= 0 {
			return fmt.Errorf("unit price for product %s must be positive", line.ProductID)
		}
		subtotal += line.UnitPriceSAR * float64(line.Qty)
	}

	if Round2(subtotal) != o.SubtotalSAR {
		return errors.New("subtotal does not match order lines")
	}
	if Round2(o.SubtotalSAR+o.ShippingSAR) != o.TotalSAR {
		return errors.New("total does not match subtotal plus shipping")
	}
	return nil
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case StatusPaid, StatusCancelled:
		return true
	default:
		return false
	}
}
