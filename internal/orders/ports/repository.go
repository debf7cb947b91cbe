package ports

import (
	"context"
	"errors"
	"time"

	"github.com/turathna/marketplace/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// MarkPaid transitions pending_payment -> paid and stamps paid_at.
	// Returns ErrNotPending when the order is in any other state.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	// SetCheckoutSession records the external session id. Best-effort for
	// diagnostics; reconciliation correlates on the order id in metadata.
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	Stats(ctx context.Context) (OrderStats, error)
}

// ListFilter narrows list queries by status and pagination.
type ListFilter struct {
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// OrderStats summarizes the ledger for marketplace analytics.
type OrderStats struct {
	TotalOrders int     `json:"total_orders"`
	PaidOrders  int     `json:"paid_orders"`
	GMVSAR      float64 `json:"total_gmv_sar"`
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNotPending is returned when a status transition requires pending_payment.
	ErrNotPending = errors.New("order is not pending payment")
)
