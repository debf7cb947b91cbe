package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductStatus captures whether a product is visible in the marketplace.
type ProductStatus string

const (
	StatusActive   ProductStatus = "active"
	StatusInactive ProductStatus = "inactive"
)

const defaultWeightKG = 0.5

// Product is a single artisan listing. Prices are in SAR major units;
// stock never drops below zero and the sales count only ever grows.
type Product struct {
	ID          string        `json:"id"`
	ArtisanID   string        `json:"artisan_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	PriceSAR    float64       `json:"price_sar"`
	Category    string        `json:"category"`
	Stock       int           `json:"stock"`
	SalesCount  int           `json:"sales_count"`
	WeightKG    float64       `json:"weight_kg"`
	Status      ProductStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewProduct builds an active product with a generated id and defaults applied.
func NewProduct(artisanID, name, description, category string, priceSAR float64, stock int, weightKG float64) (Product, error) {
	if weightKG <= 0 {
		weightKG = defaultWeightKG
	}

	now := time.Now().UTC()
	product := Product{
		ID:          NewProductID(),
		ArtisanID:   artisanID,
		Name:        name,
		Description: description,
		PriceSAR:    priceSAR,
		Category:    category,
		Stock:       stock,
		WeightKG:    weightKG,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := product.Validate(); err != nil {
		return Product{}, err
	}
	return product, nil
}

// NewProductID generates a short prefixed identifier, e.g. prod_1f2e3d4c5b6a.
func NewProductID() string {
	id := uuid.New()
	return "prod_" + strings.ReplaceAll(id.String(), "-", "")[:12]
}

// Validate ensures the product adheres to business constraints.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if p.PriceSAR <= 0 {
		return errors.New("price_sar must be positive")
	}
	if p.Stock < 0 {
		return errors.New("stock must not be negative")
	}
	if p.SalesCount < 0 {
		return errors.New("sales_count must not be negative")
	}
	if p.WeightKG <= 0 {
		return errors.New("weight_kg must be positive")
	}
	return nil
}
