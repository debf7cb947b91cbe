package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turathna/marketplace/internal/catalog/domain"
	"github.com/turathna/marketplace/internal/catalog/ports"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, product domain.Product) error {
	query := `
		INSERT INTO products (id, artisan_id, name, description, price_sar, category, stock, sales_count, weight_kg, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		product.ID,
		product.ArtisanID,
		product.Name,
		product.Description,
		product.PriceSAR,
		product.Category,
		product.Stock,
		product.SalesCount,
		product.WeightKG,
		product.Status,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, artisan_id, name, description, price_sar, category, stock, sales_count, weight_kg, status, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&product.ID,
		&product.ArtisanID,
		&product.Name,
		&product.Description,
		&product.PriceSAR,
		&product.Category,
		&product.Stock,
		&product.SalesCount,
		&product.WeightKG,
		&product.Status,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	return &product, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, artisan_id, name, description, price_sar, category, stock, sales_count, weight_kg, status, created_at, updated_at
		FROM products
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY sales_count DESC, created_at ASC
		LIMIT $2
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	rows, err := r.pool.Query(ctx, query, statusFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID,
			&product.ArtisanID,
			&product.Name,
			&product.Description,
			&product.PriceSAR,
			&product.Category,
			&product.Stock,
			&product.SalesCount,
			&product.WeightKG,
			&product.Status,
			&product.CreatedAt,
			&product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *Repository) Count(ctx context.Context) (ports.ProductCounts, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active')
		FROM products
	`

	var counts ports.ProductCounts
	if err := r.pool.QueryRow(ctx, query).Scan(&counts.Total, &counts.Active); err != nil {
		return ports.ProductCounts{}, fmt.Errorf("count products: %w", err)
	}

	return counts, nil
}

// DecrementStock floors at zero inside a single UPDATE so concurrent
// reconciliations cannot drive stock negative.
func (r *Repository) DecrementStock(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE products
		SET stock = GREATEST(stock - $1, 0), updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, qty, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) RestoreStock(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE products
		SET stock = stock + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, qty, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) IncrementSales(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE products
		SET sales_count = sales_count + $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, qty, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("increment sales: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}
