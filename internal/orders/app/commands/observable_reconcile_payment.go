package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/turathna/marketplace/internal/orders/metrics"
	"github.com/turathna/marketplace/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableReconcilePaymentHandler struct {
	handler ReconcilePaymentHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableReconcilePaymentHandler(handler ReconcilePaymentHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableReconcilePaymentHandler {
	return &ObservableReconcilePaymentHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableReconcilePaymentHandler) Handle(ctx context.Context, cmd ReconcilePaymentCommand) (Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReconcilePaymentCommand.Handle")
	defer span.End()

	start := time.Now()
	outcome, err := o.handler.Handle(ctx, cmd)
	duration := time.Since(start).Seconds()

	o.metrics.RecordReconciliationDuration(ctx, duration)
	o.metrics.RecordWebhookEvent(ctx, string(outcome))

	telemetry.AddSpanAttributes(span,
		attribute.String("event.id", cmd.EventID),
		attribute.String("event.type", cmd.EventType),
		attribute.String("order.id", cmd.OrderID),
		attribute.String("reconcile.outcome", string(outcome)),
	)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "payment reconciliation failed",
			"error", err,
			"event_id", cmd.EventID,
			"order_id", cmd.OrderID,
		)
		return outcome, err
	}

	switch outcome {
	case OutcomePaid:
		o.metrics.RecordOrderPaid(ctx)
		o.logger.InfoContext(ctx, "order paid",
			"order_id", cmd.OrderID,
			"event_id", cmd.EventID,
		)
	case OutcomeUnknownOrder:
		// Possibly an orphaned payment: nothing to reconcile against.
		o.logger.WarnContext(ctx, "webhook references unknown order",
			"order_id", cmd.OrderID,
			"event_id", cmd.EventID,
		)
	case OutcomeDuplicate:
		o.logger.InfoContext(ctx, "duplicate payment event ignored",
			"order_id", cmd.OrderID,
			"event_id", cmd.EventID,
		)
	case OutcomeNotPending:
		o.logger.WarnContext(ctx, "payment event for non-pending order ignored",
			"order_id", cmd.OrderID,
			"event_id", cmd.EventID,
		)
	default:
		o.logger.DebugContext(ctx, "webhook event ignored",
			"event_type", cmd.EventType,
			"event_id", cmd.EventID,
		)
	}

	telemetry.SetSpanSuccess(span)
	return outcome, nil
}
