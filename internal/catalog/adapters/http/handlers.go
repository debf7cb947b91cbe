package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/turathna/marketplace/internal/catalog/domain"
	"github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/shipping"
)

// Product detail pages quote shipping for the capital by default.
const defaultQuoteCity = "Riyadh"

// Handler exposes HTTP endpoints for the product catalog.
type Handler struct {
	repo        ports.ProductRepository
	adminAPIKey string
}

// NewHandler constructs a Handler. An empty adminAPIKey disables product creation.
func NewHandler(repo ports.ProductRepository, adminAPIKey string) *Handler {
	return &Handler{repo: repo, adminAPIKey: adminAPIKey}
}

// Register binds the catalog handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/products", h.handleProducts)
	mux.HandleFunc("/v1/products/", h.handleProductByID)
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listProducts(w, r)
	case http.MethodPost:
		h.createProduct(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/products/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	quote := shipping.Estimate(defaultQuoteCity, product.WeightKG)
	writeJSON(w, http.StatusOK, map[string]any{
		"product":           product,
		"shipping_estimate": quote,
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	active := domain.StatusActive
	filter := ports.ListFilter{Status: &active}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := domain.ProductStatus(statusParam)
		filter.Status = &status
	}

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if limit, err := strconv.Atoi(limitParam); err == nil {
			filter.Limit = limit
		}
	}

	products, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

type createProductInput struct {
	ArtisanID   string  `json:"artisan_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PriceSAR    float64 `json:"price_sar"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	WeightKG    float64 `json:"weight_kg"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	var payload createProductInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	product, err := domain.NewProduct(
		payload.ArtisanID,
		payload.Name,
		payload.Description,
		payload.Category,
		payload.PriceSAR,
		payload.Stock,
		payload.WeightKG,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.adminAPIKey == "" {
		return false
	}
	key := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.adminAPIKey)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
