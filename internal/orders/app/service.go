package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	catalogports "github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/orders/app/commands"
	"github.com/turathna/marketplace/internal/orders/app/queries"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/metrics"
	"github.com/turathna/marketplace/internal/orders/ports"
)

// Service bundles the order/payment use cases exposed via the API.
type Service struct {
	repo             ports.OrderRepository
	events           ports.EventBus
	gateway          ports.CheckoutGateway
	createHandler    commands.CreateOrderHandler
	reconcileHandler commands.ReconcilePaymentHandler
	getHandler       *queries.GetOrderQueryHandler
	statsHandler     *queries.MarketplaceStatsQueryHandler
}

// NewService wires required dependencies.
func NewService(
	repo ports.OrderRepository,
	products catalogports.ProductRepository,
	gateway ports.CheckoutGateway,
	events ports.EventBus,
	processed ports.ProcessedEvents,
	estimate commands.ShippingEstimator,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	createCore := commands.NewCreateOrderCommandHandler(repo, products, gateway, events, estimate)
	reconcileCore := commands.NewReconcilePaymentCommandHandler(repo, products, processed, events)

	return &Service{
		repo:             repo,
		events:           events,
		gateway:          gateway,
		createHandler:    commands.NewObservableCreateOrderHandler(createCore, logger, metrics),
		reconcileHandler: commands.NewObservableReconcilePaymentHandler(reconcileCore, logger, metrics),
		getHandler:       queries.NewGetOrderQueryHandler(repo),
		statsHandler:     queries.NewMarketplaceStatsQueryHandler(repo, products),
	}
}

// CreateOrderInput captures the payload for creating an order.
type CreateOrderInput struct {
	Lines           []commands.LineRequest `json:"lines"`
	BuyerName       string                 `json:"buyer_name"`
	BuyerEmail      string                 `json:"buyer_email"`
	BuyerPhone      string                 `json:"buyer_phone"`
	DeliveryAddress string                 `json:"delivery_address"`
	City            string                 `json:"city"`
	PostalCode      string                 `json:"postal_code"`
}

// CreateOrder orchestrates order creation and checkout-session creation.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*commands.CreateOrderResult, error) {
	cmd := commands.CreateOrderCommand{
		Lines: input.Lines,
		Buyer: domain.Buyer{
			Name:  input.BuyerName,
			Email: input.BuyerEmail,
			Phone: input.BuyerPhone,
		},
		Destination: domain.Destination{
			Address:    input.DeliveryAddress,
			City:       input.City,
			PostalCode: input.PostalCode,
		},
	}
	return s.createHandler.Handle(ctx, cmd)
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getHandler.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	return s.repo.List(ctx, filter)
}

// CancelOrder attempts to cancel an order that has not been paid yet.
func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status != domain.StatusPendingPayment {
		return nil, fmt.Errorf("cannot cancel order in status %s", order.Status)
	}

	if err := s.repo.UpdateStatus(ctx, id, domain.StatusCancelled); err != nil {
		return nil, err
	}

	order.Status = domain.StatusCancelled
	order.UpdatedAt = time.Now().UTC()

	_ = s.events.PublishOrderCancelled(ctx, id)

	return order, nil
}

// HandleWebhook verifies a provider callback against the signing secret and
// hands the decoded event to the reconciliation handler.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (commands.Outcome, error) {
	event, err := s.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		return "", err
	}

	return s.reconcileHandler.Handle(ctx, commands.ReconcilePaymentCommand{
		EventID:   event.ID,
		EventType: event.Type,
		OrderID:   event.OrderID,
	})
}

// MarketplaceStats returns the public marketplace analytics.
func (s *Service) MarketplaceStats(ctx context.Context) (*queries.MarketplaceStats, error) {
	return s.statsHandler.Handle(ctx)
}
