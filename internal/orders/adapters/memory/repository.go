package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

// Repository provides an in-memory ledger useful for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewRepository constructs a new in-memory order repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

// Create stores a new order instance.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	out := order
	return &out, nil
}

// List returns orders respecting the provided filter. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	slice := make([]domain.Order, end-start)
	copy(slice, result[start:end])

	return slice, nil
}

// MarkPaid transitions a pending order to paid and stamps the paid timestamp.
func (r *Repository) MarkPaid(_ context.Context, id string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status != domain.StatusPendingPayment {
		return ports.ErrNotPending
	}

	order.Status = domain.StatusPaid
	order.PaidAt = &paidAt
	order.UpdatedAt = paidAt
	r.orders[id] = order
	return nil
}

// UpdateStatus sets the status and updatedAt timestamp for an order.
// Setting any non-paid status clears the paid timestamp.
func (r *Repository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}

	order.Status = status
	if status != domain.StatusPaid {
		order.PaidAt = nil
	}
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}

// SetCheckoutSession records the provider session id on an order.
func (r *Repository) SetCheckoutSession(_ context.Context, id, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}

	order.CheckoutSessionID = sessionID
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}

// Stats summarizes the ledger.
func (r *Repository) Stats(_ context.Context) (ports.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := ports.OrderStats{TotalOrders: len(r.orders)}
	for _, order := range r.orders {
		if order.Status == domain.StatusPaid {
			stats.PaidOrders++
			stats.GMVSAR += order.TotalSAR
		}
	}
	return stats, nil
}
