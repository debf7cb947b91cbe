package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turathna/marketplace/internal/catalog/domain"
	"github.com/turathna/marketplace/internal/catalog/ports"
)

// Repository provides an in-memory catalog useful for local development and tests.
type Repository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewRepository constructs a new in-memory catalog repository.
func NewRepository() *Repository {
	return &Repository{products: make(map[string]domain.Product)}
}

// Create stores a new product.
func (r *Repository) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

// GetByID fetches a single product by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	out := product
	return &out, nil
}

// List returns products respecting the provided filter, best sellers first.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Product
	for _, product := range r.products {
		if filter.Status != nil && product.Status != *filter.Status {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SalesCount != result[j].SalesCount {
			return result[i].SalesCount > result[j].SalesCount
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 || limit > len(result) {
		limit = len(result)
	}

	slice := make([]domain.Product, limit)
	copy(slice, result[:limit])

	return slice, nil
}

// Count summarizes the catalog.
func (r *Repository) Count(_ context.Context) (ports.ProductCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := ports.ProductCounts{Total: len(r.products)}
	for _, product := range r.products {
		if product.Status == domain.StatusActive {
			counts.Active++
		}
	}
	return counts, nil
}

// DecrementStock lowers the stock by qty, flooring at zero.
func (r *Repository) DecrementStock(_ context.Context, id string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return ports.ErrNotFound
	}

	product.Stock -= qty
	if product.Stock < 0 {
		product.Stock = 0
	}
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}

// RestoreStock returns previously decremented stock.
func (r *Repository) RestoreStock(_ context.Context, id string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return ports.ErrNotFound
	}

	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}

// IncrementSales raises the sales count by qty.
func (r *Repository) IncrementSales(_ context.Context, id string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return ports.ErrNotFound
	}

	product.SalesCount += qty
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}
