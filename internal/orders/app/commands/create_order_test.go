package commands_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	catalogdomain "github.com/turathna/marketplace/internal/catalog/domain"
	catalogports "github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/orders/app/commands"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

type mockOrderRepository struct {
	createFn             func(ctx context.Context, order domain.Order) error
	getByIDFn            func(ctx context.Context, id string) (*domain.Order, error)
	markPaidFn           func(ctx context.Context, id string, paidAt time.Time) error
	updateStatusFn       func(ctx context.Context, id string, status domain.OrderStatus) error
	setCheckoutSessionFn func(ctx context.Context, id, sessionID string) error
}

func (m *mockOrderRepository) Create(ctx context.Context, order domain.Order) error {
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}

func (m *mockOrderRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, id, paidAt)
	}
	return nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockOrderRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	if m.setCheckoutSessionFn != nil {
		return m.setCheckoutSessionFn(ctx, id, sessionID)
	}
	return nil
}

func (m *mockOrderRepository) Stats(ctx context.Context) (ports.OrderStats, error) {
	return ports.OrderStats{}, nil
}

type mockProductRepository struct {
	getByIDFn        func(ctx context.Context, id string) (*catalogdomain.Product, error)
	decrementStockFn func(ctx context.Context, id string, qty int) error
	restoreStockFn   func(ctx context.Context, id string, qty int) error
	incrementSalesFn func(ctx context.Context, id string, qty int) error
}

func (m *mockProductRepository) Create(ctx context.Context, product catalogdomain.Product) error {
	return nil
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*catalogdomain.Product, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, catalogports.ErrNotFound
}

func (m *mockProductRepository) List(ctx context.Context, filter catalogports.ListFilter) ([]catalogdomain.Product, error) {
	return nil, nil
}

func (m *mockProductRepository) Count(ctx context.Context) (catalogports.ProductCounts, error) {
	return catalogports.ProductCounts{}, nil
}

func (m *mockProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	if m.decrementStockFn != nil {
		return m.decrementStockFn(ctx, id, qty)
	}
	return nil
}

func (m *mockProductRepository) RestoreStock(ctx context.Context, id string, qty int) error {
	if m.restoreStockFn != nil {
		return m.restoreStockFn(ctx, id, qty)
	}
	return nil
}

func (m *mockProductRepository) IncrementSales(ctx context.Context, id string, qty int) error {
	if m.incrementSalesFn != nil {
		return m.incrementSalesFn(ctx, id, qty)
	}
	return nil
}

type mockGateway struct {
	createSessionFn func(ctx context.Context, order domain.Order) (*ports.CheckoutSession, error)
}

func (m *mockGateway) CreateSession(ctx context.Context, order domain.Order) (*ports.CheckoutSession, error) {
	if m.createSessionFn != nil {
		return m.createSessionFn(ctx, order)
	}
	return &ports.CheckoutSession{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
}

func (m *mockGateway) VerifyWebhook(payload []byte, signatureHeader string) (*ports.WebhookEvent, error) {
	return nil, ports.ErrInvalidSignature
}

type mockEventBus struct {
	publishOrderCreatedFn func(ctx context.Context, orderID string) error
	publishOrderPaidFn    func(ctx context.Context, orderID string) error
}

func (m *mockEventBus) PublishOrderCreated(ctx context.Context, orderID string) error {
	if m.publishOrderCreatedFn != nil {
		return m.publishOrderCreatedFn(ctx, orderID)
	}
	return nil
}

func (m *mockEventBus) PublishOrderPaid(ctx context.Context, orderID string) error {
	if m.publishOrderPaidFn != nil {
		return m.publishOrderPaidFn(ctx, orderID)
	}
	return nil
}

func (m *mockEventBus) PublishOrderCancelled(ctx context.Context, orderID string) error {
	return nil
}

type mockProcessedEvents struct {
	processedFn func(ctx context.Context, eventID string) (bool, error)
	markFn      func(ctx context.Context, eventID, orderID string) error
}

func (m *mockProcessedEvents) Processed(ctx context.Context, eventID string) (bool, error) {
	if m.processedFn != nil {
		return m.processedFn(ctx, eventID)
	}
	return false, nil
}

func (m *mockProcessedEvents) Mark(ctx context.Context, eventID, orderID string) error {
	if m.markFn != nil {
		return m.markFn(ctx, eventID, orderID)
	}
	return nil
}

func activeProduct(id, name string, price float64, stock int, weight float64) *catalogdomain.Product {
	now := time.Now().UTC()
	return &catalogdomain.Product{
		ID:        id,
		Name:      name,
		PriceSAR:  price,
		Stock:     stock,
		WeightKG:  weight,
		Status:    catalogdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func catalogOf(products ...*catalogdomain.Product) *mockProductRepository {
	byID := make(map[string]*catalogdomain.Product)
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepository{
		getByIDFn: func(_ context.Context, id string) (*catalogdomain.Product, error) {
			p, ok := byID[id]
			if !ok {
				return nil, catalogports.ErrNotFound
			}
			copy := *p
			return &copy, nil
		},
	}
}

func validCommand() commands.CreateOrderCommand {
	return commands.CreateOrderCommand{
		Lines: []commands.LineRequest{
			{ProductID: "prod_a", Qty: 2},
			{ProductID: "prod_b", Qty: 1},
		},
		Buyer: domain.Buyer{
			Name:  "Sara",
			Email: "sara@example.com",
		},
		Destination: domain.Destination{
			Address: "12 Olaya St",
			City:    "Riyadh",
		},
	}
}

func TestCreateOrder(t *testing.T) {
	t.Run("creates pending order with snapshotted prices and totals", func(t *testing.T) {
		products := catalogOf(
			activeProduct("prod_a", "Ceramic Vase", 100, 10, 0.5),
			activeProduct("prod_b", "Woven Basket", 50, 5, 0.5),
		)
		var saved domain.Order
		repo := &mockOrderRepository{
			createFn: func(_ context.Context, order domain.Order) error {
				saved = order
				return nil
			},
		}
		handler := commands.NewCreateOrderCommandHandler(repo, products, &mockGateway{}, &mockEventBus{}, nil)

		result, err := handler.Handle(context.Background(), validCommand())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		order := result.Order
		if order.Status != domain.StatusPendingPayment {
			t.Errorf("expected status %s, got %s", domain.StatusPendingPayment, order.Status)
		}
		if order.SubtotalSAR != 250 {
			t.Errorf("expected subtotal 250, got %v", order.SubtotalSAR)
		}
		// 1.5kg to Riyadh: base 15 + surcharge (1.5-0.5)*5 = 20
		if order.ShippingSAR != 20 {
			t.Errorf("expected shipping 20, got %v", order.ShippingSAR)
		}
		if order.TotalSAR != 270 {
			t.Errorf("expected total 270, got %v", order.TotalSAR)
		}
		if !strings.HasPrefix(order.ID, "ord_") {
			t.Errorf("expected ord_ prefixed id, got %s", order.ID)
		}
		if len(order.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(order.Lines))
		}
		if order.Lines[0].UnitPriceSAR != 100 || order.Lines[0].Name != "Ceramic Vase" {
			t.Errorf("expected price snapshot on first line, got %+v", order.Lines[0])
		}
		if saved.ID != order.ID {
			t.Errorf("expected persisted order %s, got %s", order.ID, saved.ID)
		}
		if result.CheckoutURL == "" {
			t.Error("expected checkout URL to be returned")
		}
	})

	t.Run("later price change does not affect the stored snapshot", func(t *testing.T) {
		product := activeProduct("prod_a", "Ceramic Vase", 100, 10, 0.5)
		products := catalogOf(product)
		repo := &mockOrderRepository{}
		handler := commands.NewCreateOrderCommandHandler(repo, products, &mockGateway{}, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = cmd.Lines[:1]
		result, err := handler.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		product.PriceSAR = 999

		if result.Order.Lines[0].UnitPriceSAR != 100 {
			t.Errorf("expected snapshot price 100, got %v", result.Order.Lines[0].UnitPriceSAR)
		}
		// 200 subtotal + 17.5 shipping (1.0kg to Riyadh)
		if result.Order.TotalSAR != 217.5 {
			t.Errorf("expected total 217.5, got %v", result.Order.TotalSAR)
		}
	})

	t.Run("returns insufficient stock error naming the product", func(t *testing.T) {
		products := catalogOf(activeProduct("prod_a", "Ceramic Vase", 100, 1, 0.5))
		handler := commands.NewCreateOrderCommandHandler(&mockOrderRepository{}, products, &mockGateway{}, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = []commands.LineRequest{{ProductID: "prod_a", Qty: 2}}

		_, err := handler.Handle(context.Background(), cmd)

		var stockErr *commands.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got: %v", err)
		}
		if stockErr.ProductID != "prod_a" || stockErr.Requested != 2 || stockErr.Available != 1 {
			t.Errorf("unexpected error details: %+v", stockErr)
		}
	})

	t.Run("returns not found for unknown product", func(t *testing.T) {
		handler := commands.NewCreateOrderCommandHandler(&mockOrderRepository{}, catalogOf(), &mockGateway{}, &mockEventBus{}, nil)

		cmd := validCommand()
		_, err := handler.Handle(context.Background(), cmd)

		if !errors.Is(err, catalogports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("returns validation error for empty lines", func(t *testing.T) {
		handler := commands.NewCreateOrderCommandHandler(&mockOrderRepository{}, catalogOf(), &mockGateway{}, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = nil

		_, err := handler.Handle(context.Background(), cmd)
		if err == nil || err.Error() != "at least one line is required" {
			t.Fatalf("expected validation error, got: %v", err)
		}
	})

	t.Run("returns validation error for zero quantity", func(t *testing.T) {
		handler := commands.NewCreateOrderCommandHandler(&mockOrderRepository{}, catalogOf(), &mockGateway{}, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = []commands.LineRequest{{ProductID: "prod_a", Qty: 0}}

		_, err := handler.Handle(context.Background(), cmd)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("gateway failure leaves order pending and surfaces provider error", func(t *testing.T) {
		products := catalogOf(activeProduct("prod_a", "Ceramic Vase", 100, 10, 0.5))
		var statusUpdates int
		repo := &mockOrderRepository{
			updateStatusFn: func(context.Context, string, domain.OrderStatus) error {
				statusUpdates++
				return nil
			},
		}
		gateway := &mockGateway{
			createSessionFn: func(context.Context, domain.Order) (*ports.CheckoutSession, error) {
				return nil, &ports.ProviderError{Message: "connection refused"}
			},
		}
		handler := commands.NewCreateOrderCommandHandler(repo, products, gateway, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = cmd.Lines[:1]

		_, err := handler.Handle(context.Background(), cmd)

		var providerErr *ports.ProviderError
		if !errors.As(err, &providerErr) {
			t.Fatalf("expected ProviderError, got: %v", err)
		}
		if statusUpdates != 0 {
			t.Errorf("expected no status change after gateway failure, got %d updates", statusUpdates)
		}
	})

	t.Run("demo gateway session leaves checkout URL empty", func(t *testing.T) {
		products := catalogOf(activeProduct("prod_a", "Ceramic Vase", 100, 10, 0.5))
		sessionSet := false
		repo := &mockOrderRepository{
			setCheckoutSessionFn: func(context.Context, string, string) error {
				sessionSet = true
				return nil
			},
		}
		gateway := &mockGateway{
			createSessionFn: func(context.Context, domain.Order) (*ports.CheckoutSession, error) {
				return &ports.CheckoutSession{}, nil
			},
		}
		handler := commands.NewCreateOrderCommandHandler(repo, products, gateway, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = cmd.Lines[:1]

		result, err := handler.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.CheckoutURL != "" {
			t.Errorf("expected empty checkout URL, got %s", result.CheckoutURL)
		}
		if sessionSet {
			t.Error("expected no session id stored for empty session")
		}
	})

	t.Run("publish failure still returns the created order", func(t *testing.T) {
		products := catalogOf(activeProduct("prod_a", "Ceramic Vase", 100, 10, 0.5))
		events := &mockEventBus{
			publishOrderCreatedFn: func(context.Context, string) error {
				return errors.New("broker unavailable")
			},
		}
		handler := commands.NewCreateOrderCommandHandler(&mockOrderRepository{}, products, &mockGateway{}, events, nil)

		cmd := validCommand()
		cmd.Lines = cmd.Lines[:1]

		result, err := handler.Handle(context.Background(), cmd)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if result == nil || result.Order == nil {
			t.Fatal("expected order despite publish failure")
		}
	})

	t.Run("unknown city falls back to default shipping rate", func(t *testing.T) {
		products := catalogOf(activeProduct("prod_a", "Ceramic Vase", 100, 10, 0.5))
		handler := commands.NewCreateOrderCommandHandler(&mockOrderRepository{}, products, &mockGateway{}, &mockEventBus{}, nil)

		cmd := validCommand()
		cmd.Lines = cmd.Lines[:1]
		cmd.Destination.City = "Hofuf"

		result, err := handler.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		// 1.0kg unknown city: base 40 + surcharge (1.0-0.5)*5 = 42.5
		if result.Order.ShippingSAR != 42.5 {
			t.Errorf("expected shipping 42.5, got %v", result.Order.ShippingSAR)
		}
	})
}
