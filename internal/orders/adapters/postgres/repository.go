package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the order header and its lines in a single transaction.
func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	headerQuery := `
		INSERT INTO orders (
			id, buyer_name, buyer_email, buyer_phone,
			delivery_address, city, postal_code,
			subtotal_sar, shipping_sar, total_sar,
			shipping_carrier, shipping_cost_sar, shipping_days, shipping_trackable,
			status, checkout_session_id, paid_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = tx.Exec(ctx, headerQuery,
		order.ID,
		order.Buyer.Name,
		order.Buyer.Email,
		order.Buyer.Phone,
		order.Destination.Address,
		order.Destination.City,
		order.Destination.PostalCode,
		order.SubtotalSAR,
		order.ShippingSAR,
		order.TotalSAR,
		order.Shipping.Carrier,
		order.Shipping.CostSAR,
		order.Shipping.EstimatedDays,
		order.Shipping.Trackable,
		order.Status,
		nullable(order.CheckoutSessionID),
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_items (order_id, product_id, name, qty, unit_price_sar)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, line := range order.Lines {
		if _, err := tx.Exec(ctx, lineQuery, order.ID, line.ProductID, line.Name, line.Qty, line.UnitPriceSAR); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, buyer_name, buyer_email, buyer_phone,
			delivery_address, city, postal_code,
			subtotal_sar, shipping_sar, total_sar,
			shipping_carrier, shipping_cost_sar, shipping_days, shipping_trackable,
			status, checkout_session_id, paid_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	if err := r.loadLines(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT id, buyer_name, buyer_email, buyer_phone,
			delivery_address, city, postal_code,
			subtotal_sar, shipping_sar, total_sar,
			shipping_carrier, shipping_cost_sar, shipping_days, shipping_trackable,
			status, checkout_session_id, paid_at, created_at, updated_at
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	rows, err := r.pool.Query(ctx, query, statusFilter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var refs []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		refs = append(refs, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := r.loadLines(ctx, refs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(refs))
	for _, ref := range refs {
		orders = append(orders, *ref)
	}

	return orders, nil
}

// MarkPaid transitions an order to paid only if it is still pending payment.
// A zero-row update is disambiguated into not-found versus wrong-status.
func (r *Repository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	query := `
		UPDATE orders
		SET status = $1, paid_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, domain.StatusPaid, paidAt, id, domain.StatusPendingPayment)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return ports.ErrNotFound
		}
		return ports.ErrNotPending
	}

	return nil
}

// UpdateStatus sets the order status. Moving out of paid clears paid_at.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1,
			paid_at = CASE WHEN $1 = 'paid' THEN paid_at ELSE NULL END,
			updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	query := `
		UPDATE orders
		SET checkout_session_id = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, sessionID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set checkout session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) Stats(ctx context.Context) (ports.OrderStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'paid'),
			COALESCE(SUM(total_sar) FILTER (WHERE status = 'paid'), 0)
		FROM orders
	`

	var stats ports.OrderStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalOrders, &stats.PaidOrders, &stats.GMVSAR); err != nil {
		return ports.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}

	return stats, nil
}

func (r *Repository) loadLines(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
		byID[order.ID] = order
	}

	query := `
		SELECT order_id, product_id, name, qty, unit_price_sar
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			line    domain.Line
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.Name, &line.Qty, &line.UnitPriceSAR); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Lines = append(order.Lines, line)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order     domain.Order
		sessionID *string
	)

	err := row.Scan(
		&order.ID,
		&order.Buyer.Name,
		&order.Buyer.Email,
		&order.Buyer.Phone,
		&order.Destination.Address,
		&order.Destination.City,
		&order.Destination.PostalCode,
		&order.SubtotalSAR,
		&order.ShippingSAR,
		&order.TotalSAR,
		&order.Shipping.Carrier,
		&order.Shipping.CostSAR,
		&order.Shipping.EstimatedDays,
		&order.Shipping.Trackable,
		&order.Status,
		&sessionID,
		&order.PaidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sessionID != nil {
		order.CheckoutSessionID = *sessionID
	}

	return &order, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
