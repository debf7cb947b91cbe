package ports

import (
	"context"
	"errors"

	"github.com/turathna/marketplace/internal/catalog/domain"
)

// ProductRepository exposes catalog persistence required by the application layer.
// DecrementStock floors at zero; IncrementSales is monotonic. Both must be
// atomic per product so concurrent reconciliations do not lose updates.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Product, error)
	Count(ctx context.Context) (ProductCounts, error)
	DecrementStock(ctx context.Context, id string, qty int) error
	// RestoreStock undoes a decrement when reconciliation has to roll back.
	RestoreStock(ctx context.Context, id string, qty int) error
	IncrementSales(ctx context.Context, id string, qty int) error
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Status *domain.ProductStatus
	Limit  int
}

// ProductCounts summarizes the catalog for marketplace analytics.
type ProductCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

var (
	// ErrNotFound is returned when the requested product does not exist.
	ErrNotFound = errors.New("product not found")
)
