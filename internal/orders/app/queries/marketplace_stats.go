package queries

import (
	"context"
	"fmt"
	"time"

	catalogports "github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

// MarketplaceStats are the public marketplace analytics: order volume,
// paid order count, GMV (sum of paid order totals) and catalog size.
type MarketplaceStats struct {
	TotalOrders   int       `json:"total_orders"`
	PaidOrders    int       `json:"paid_orders"`
	TotalGMVSAR   float64   `json:"total_gmv_sar"`
	TotalProducts int       `json:"total_products"`
	ActiveCount   int       `json:"active_products"`
	Timestamp     time.Time `json:"timestamp"`
}

// MarketplaceStatsQueryHandler aggregates ledger and catalog counters.
type MarketplaceStatsQueryHandler struct {
	orders   ports.OrderRepository
	products catalogports.ProductRepository
}

func NewMarketplaceStatsQueryHandler(orders ports.OrderRepository, products catalogports.ProductRepository) *MarketplaceStatsQueryHandler {
	return &MarketplaceStatsQueryHandler{orders: orders, products: products}
}

func (h *MarketplaceStatsQueryHandler) Handle(ctx context.Context) (*MarketplaceStats, error) {
	orderStats, err := h.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}

	counts, err := h.products.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("product counts: %w", err)
	}

	return &MarketplaceStats{
		TotalOrders:   orderStats.TotalOrders,
		PaidOrders:    orderStats.PaidOrders,
		TotalGMVSAR:   domain.Round2(orderStats.GMVSAR),
		TotalProducts: counts.Total,
		ActiveCount:   counts.Active,
		Timestamp:     time.Now().UTC(),
	}, nil
}
