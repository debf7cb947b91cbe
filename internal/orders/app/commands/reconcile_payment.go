package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogports "github.com/turathna/marketplace/internal/catalog/ports"
	"github.com/turathna/marketplace/internal/orders/domain"
	"github.com/turathna/marketplace/internal/orders/ports"
)

// ReconcilePaymentCommand is a verified webhook event to apply to the ledger.
type ReconcilePaymentCommand struct {
	EventID   string
	EventType string
	OrderID   string
}

// Outcome classifies how a webhook event was handled. Everything except
// OutcomePaid is a deliberate no-op; the provider still gets a 2xx.
type Outcome string

const (
	OutcomePaid         Outcome = "paid"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnoredType  Outcome = "ignored_type"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeNotPending   Outcome = "not_pending"
	OutcomeFailed       Outcome = "failed"
)

type ReconcilePaymentHandler interface {
	Handle(ctx context.Context, cmd ReconcilePaymentCommand) (Outcome, error)
}

type ReconcilePaymentCommandHandler struct {
	orders    ports.OrderRepository
	products  catalogports.ProductRepository
	processed ports.ProcessedEvents
	events    ports.EventBus
	locks     *orderLocks
}

func NewReconcilePaymentCommandHandler(
	orders ports.OrderRepository,
	products catalogports.ProductRepository,
	processed ports.ProcessedEvents,
	events ports.EventBus,
) *ReconcilePaymentCommandHandler {
	return &ReconcilePaymentCommandHandler{
		orders:    orders,
		products:  products,
		processed: processed,
		events:    events,
		locks:     newOrderLocks(),
	}
}

// Handle applies a payment confirmation exactly once: mark the order paid,
// decrement stock and increment sales for every line. The per-order lock and
// the processed-event ledger make duplicate and concurrent deliveries safe.
func (h *ReconcilePaymentCommandHandler) Handle(ctx context.Context, cmd ReconcilePaymentCommand) (Outcome, error) {
	if cmd.EventType != ports.EventCheckoutSessionCompleted {
		return OutcomeIgnoredType, nil
	}
	if cmd.OrderID == "" {
		return OutcomeUnknownOrder, nil
	}

	lock := h.locks.get(cmd.OrderID)
	lock.Lock()
	defer lock.Unlock()

	if cmd.EventID != "" {
		seen, err := h.processed.Processed(ctx, cmd.EventID)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("check processed events: %w", err)
		}
		if seen {
			return OutcomeDuplicate, nil
		}
	}

	order, err := h.orders.GetByID(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			// The payment may be orphaned; surfaced via metrics, never
			// failed back to the provider (a retry cannot succeed either).
			return OutcomeUnknownOrder, nil
		}
		return OutcomeFailed, fmt.Errorf("load order %s: %w", cmd.OrderID, err)
	}

	switch order.Status {
	case domain.StatusPaid:
		h.markProcessed(ctx, cmd)
		return OutcomeDuplicate, nil
	case domain.StatusPendingPayment:
		// fall through to the transition
	default:
		return OutcomeNotPending, nil
	}

	paidAt := time.Now().UTC()
	if err := h.orders.MarkPaid(ctx, cmd.OrderID, paidAt); err != nil {
		if errors.Is(err, ports.ErrNotPending) {
			return OutcomeNotPending, nil
		}
		return OutcomeFailed, fmt.Errorf("mark order %s paid: %w", cmd.OrderID, err)
	}

	if err := h.applyStockMutations(ctx, order); err != nil {
		return OutcomeFailed, err
	}

	h.markProcessed(ctx, cmd)

	if err := h.events.PublishOrderPaid(ctx, cmd.OrderID); err != nil {
		return OutcomePaid, fmt.Errorf("order reconciled but failed to publish event: %w", err)
	}

	return OutcomePaid, nil
}

// applyStockMutations decrements stock and increments sales for every order
// line. On partial failure it compensates the decrements already applied and
// reverts the order to pending_payment so a webhook retry starts clean.
func (h *ReconcilePaymentCommandHandler) applyStockMutations(ctx context.Context, order *domain.Order) error {
	applied := make([]domain.Line, 0, len(order.Lines))

	for _, line := range order.Lines {
		if err := h.products.DecrementStock(ctx, line.ProductID, line.Qty); err != nil {
			if errors.Is(err, catalogports.ErrNotFound) {
				// Product delisted since the order was placed; nothing to adjust.
				continue
			}
			h.rollback(ctx, order.ID, applied)
			return fmt.Errorf("decrement stock for %s: %w", line.ProductID, err)
		}
		applied = append(applied, line)

		if err := h.products.IncrementSales(ctx, line.ProductID, line.Qty); err != nil && !errors.Is(err, catalogports.ErrNotFound) {
			h.rollback(ctx, order.ID, applied)
			return fmt.Errorf("increment sales for %s: %w", line.ProductID, err)
		}
	}

	return nil
}

func (h *ReconcilePaymentCommandHandler) rollback(ctx context.Context, orderID string, applied []domain.Line) {
	for _, line := range applied {
		_ = h.products.RestoreStock(ctx, line.ProductID, line.Qty)
	}
	_ = h.orders.UpdateStatus(ctx, orderID, domain.StatusPendingPayment)
}

func (h *ReconcilePaymentCommandHandler) markProcessed(ctx context.Context, cmd ReconcilePaymentCommand) {
	if cmd.EventID == "" {
		return
	}
	// Ledger write failure is tolerable: the order status check catches the
	// replay on the next delivery.
	_ = h.processed.Mark(ctx, cmd.EventID, cmd.OrderID)
}
