package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	catalogmemory "github.com/turathna/marketplace/internal/catalog/adapters/memory"
	catalogdomain "github.com/turathna/marketplace/internal/catalog/domain"
	idemmemory "github.com/turathna/marketplace/internal/idempotency/memory"
	ordershttp "github.com/turathna/marketplace/internal/orders/adapters/http"
	ordersmemory "github.com/turathna/marketplace/internal/orders/adapters/memory"
	"github.com/turathna/marketplace/internal/orders/app"
	"github.com/turathna/marketplace/internal/orders/domain"
	ordersmetrics "github.com/turathna/marketplace/internal/orders/metrics"
	"github.com/turathna/marketplace/internal/orders/ports"
	"go.opentelemetry.io/otel"
)

// fakeGateway verifies any payload shaped as {"id":..,"type":..,"order_id":..}
// when the signature header equals "valid".
type fakeGateway struct {
	session ports.CheckoutSession
}

func (f *fakeGateway) CreateSession(_ context.Context, _ domain.Order) (*ports.CheckoutSession, error) {
	session := f.session
	return &session, nil
}

func (f *fakeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*ports.WebhookEvent, error) {
	if signatureHeader != "valid" {
		return nil, ports.ErrInvalidSignature
	}
	var event ports.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

type fixture struct {
	mux      *http.ServeMux
	products *catalogmemory.Repository
	orders   *ordersmemory.Repository
}

func newFixture(t *testing.T, gateway ports.CheckoutGateway) *fixture {
	t.Helper()

	products := catalogmemory.NewRepository()
	orders := ordersmemory.NewRepository()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := ordersmetrics.NewMetrics(otel.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	service := app.NewService(orders, products, gateway, noopBus{}, idemmemory.NewStore(), nil, logger, m)

	mux := http.NewServeMux()
	ordershttp.NewHandler(service).Register(mux)

	return &fixture{mux: mux, products: products, orders: orders}
}

type noopBus struct{}

func (noopBus) PublishOrderCreated(context.Context, string) error   { return nil }
func (noopBus) PublishOrderPaid(context.Context, string) error      { return nil }
func (noopBus) PublishOrderCancelled(context.Context, string) error { return nil }

func (f *fixture) seedProduct(t *testing.T, id string, price float64, stock int) {
	t.Helper()
	now := time.Now().UTC()
	err := f.products.Create(context.Background(), catalogdomain.Product{
		ID:        id,
		Name:      "Product " + id,
		PriceSAR:  price,
		Stock:     stock,
		WeightKG:  0.5,
		Status:    catalogdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
}

func (f *fixture) createOrder(t *testing.T, body string) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order returned %d: %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec.Body.Bytes())
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

const orderBody = `{
	"lines": [{"product_id": "prod_a", "qty": 2}],
	"buyer_name": "Sara",
	"buyer_email": "sara@example.com",
	"delivery_address": "12 Olaya St",
	"city": "Riyadh"
}`

func TestCreateOrderEndpoint(t *testing.T) {
	t.Run("returns order and checkout url", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{session: ports.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}})
		f.seedProduct(t, "prod_a", 100, 10)

		payload := f.createOrder(t, orderBody)

		if payload["checkout_url"] != "https://checkout.example/cs_1" {
			t.Errorf("expected checkout_url, got %v", payload["checkout_url"])
		}
		order := payload["order"].(map[string]any)
		if order["status"] != "pending_payment" {
			t.Errorf("expected pending_payment, got %v", order["status"])
		}
		// 200 subtotal + 17.5 shipping for 1kg to Riyadh
		if order["total_sar"].(float64) != 217.5 {
			t.Errorf("expected total 217.5, got %v", order["total_sar"])
		}
	})

	t.Run("demo mode returns message instead of checkout url", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})
		f.seedProduct(t, "prod_a", 100, 10)

		payload := f.createOrder(t, orderBody)

		if _, ok := payload["checkout_url"]; ok {
			t.Error("expected no checkout_url in demo mode")
		}
		if payload["message"] == nil {
			t.Error("expected demo mode message")
		}
	})

	t.Run("rejects insufficient stock with details", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})
		f.seedProduct(t, "prod_a", 100, 1)

		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(orderBody)))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		payload := decode(t, rec.Body.Bytes())
		if payload["product_id"] != "prod_a" {
			t.Errorf("expected product_id prod_a, got %v", payload["product_id"])
		}
		if payload["available"].(float64) != 1 {
			t.Errorf("expected available 1, got %v", payload["available"])
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})

		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader("{not json")))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGetOrderEndpoint(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	f.seedProduct(t, "prod_a", 100, 10)
	payload := f.createOrder(t, orderBody)
	orderID := payload["order"].(map[string]any)["id"].(string)

	t.Run("returns existing order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/"+orderID, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("returns 404 for unknown order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/ord_missing", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestListOrdersEndpoint(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	f.seedProduct(t, "prod_a", 100, 10)
	f.createOrder(t, orderBody)
	f.createOrder(t, orderBody)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders?status=pending_payment", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decode(t, rec.Body.Bytes())
	orders := payload["orders"].([]any)
	if len(orders) != 2 {
		t.Errorf("expected 2 orders, got %d", len(orders))
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	f.seedProduct(t, "prod_a", 100, 10)
	payload := f.createOrder(t, orderBody)
	orderID := payload["order"].(map[string]any)["id"].(string)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/"+orderID+"/cancel", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	order, err := f.orders.GetByID(context.Background(), orderID)
	if err != nil {
		t.Fatalf("failed to load order: %v", err)
	}
	if order.Status != domain.StatusCancelled {
		t.Errorf("expected cancelled, got %s", order.Status)
	}

	t.Run("cancelling twice fails", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/"+orderID+"/cancel", nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestWebhookEndpoint(t *testing.T) {
	webhookFor := func(eventID, orderID string) *bytes.Reader {
		return bytes.NewReader([]byte(fmt.Sprintf(
			`{"id": %q, "type": "checkout.session.completed", "order_id": %q}`, eventID, orderID)))
	}

	t.Run("verified event reconciles the order", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})
		f.seedProduct(t, "prod_a", 100, 10)
		payload := f.createOrder(t, orderBody)
		orderID := payload["order"].(map[string]any)["id"].(string)

		req := httptest.NewRequest(http.MethodPost, "/v1/webhook", webhookFor("evt_1", orderID))
		req.Header.Set("Stripe-Signature", "valid")
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		response := decode(t, rec.Body.Bytes())
		if response["outcome"] != "paid" {
			t.Errorf("expected outcome paid, got %v", response["outcome"])
		}

		order, _ := f.orders.GetByID(context.Background(), orderID)
		if order.Status != domain.StatusPaid {
			t.Errorf("expected paid, got %s", order.Status)
		}

		product, _ := f.products.GetByID(context.Background(), "prod_a")
		if product.Stock != 8 || product.SalesCount != 2 {
			t.Errorf("expected stock 8 sales 2, got %d/%d", product.Stock, product.SalesCount)
		}
	})

	t.Run("invalid signature is rejected without mutation", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})
		f.seedProduct(t, "prod_a", 100, 10)
		payload := f.createOrder(t, orderBody)
		orderID := payload["order"].(map[string]any)["id"].(string)

		req := httptest.NewRequest(http.MethodPost, "/v1/webhook", webhookFor("evt_1", orderID))
		req.Header.Set("Stripe-Signature", "forged")
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		order, _ := f.orders.GetByID(context.Background(), orderID)
		if order.Status != domain.StatusPendingPayment {
			t.Errorf("expected pending_payment, got %s", order.Status)
		}
	})

	t.Run("duplicate delivery is acknowledged", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})
		f.seedProduct(t, "prod_a", 100, 10)
		payload := f.createOrder(t, orderBody)
		orderID := payload["order"].(map[string]any)["id"].(string)

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodPost, "/v1/webhook", webhookFor("evt_1", orderID))
			req.Header.Set("Stripe-Signature", "valid")
			rec := httptest.NewRecorder()
			f.mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("delivery %d returned %d", i, rec.Code)
			}
		}

		product, _ := f.products.GetByID(context.Background(), "prod_a")
		if product.Stock != 8 {
			t.Errorf("expected stock decremented once, got %d", product.Stock)
		}
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})

		req := httptest.NewRequest(http.MethodPost, "/v1/webhook", webhookFor("evt_1", "ord_missing"))
		req.Header.Set("Stripe-Signature", "valid")
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		response := decode(t, rec.Body.Bytes())
		if response["outcome"] != "unknown_order" {
			t.Errorf("expected unknown_order, got %v", response["outcome"])
		}
	})

	t.Run("other event types are ignored", func(t *testing.T) {
		f := newFixture(t, &fakeGateway{})

		body := bytes.NewReader([]byte(`{"id": "evt_1", "type": "charge.refunded"}`))
		req := httptest.NewRequest(http.MethodPost, "/v1/webhook", body)
		req.Header.Set("Stripe-Signature", "valid")
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		response := decode(t, rec.Body.Bytes())
		if response["outcome"] != "ignored_type" {
			t.Errorf("expected ignored_type, got %v", response["outcome"])
		}
	})
}

func TestAnalyticsEndpoint(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	f.seedProduct(t, "prod_a", 100, 10)
	payload := f.createOrder(t, orderBody)
	orderID := payload["order"].(map[string]any)["id"].(string)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhook",
		bytes.NewReader([]byte(fmt.Sprintf(`{"id": "evt_1", "type": "checkout.session.completed", "order_id": %q}`, orderID))))
	req.Header.Set("Stripe-Signature", "valid")
	f.mux.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analytics/marketplace", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stats := decode(t, rec.Body.Bytes())
	if stats["total_orders"].(float64) != 1 {
		t.Errorf("expected 1 order, got %v", stats["total_orders"])
	}
	if stats["paid_orders"].(float64) != 1 {
		t.Errorf("expected 1 paid order, got %v", stats["paid_orders"])
	}
	if stats["total_gmv_sar"].(float64) != 217.5 {
		t.Errorf("expected GMV 217.5, got %v", stats["total_gmv_sar"])
	}
	if stats["total_products"].(float64) != 1 {
		t.Errorf("expected 1 product, got %v", stats["total_products"])
	}
}
