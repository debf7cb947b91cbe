package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/turathna/marketplace/internal/orders/metrics"
	"github.com/turathna/marketplace/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableCreateOrderHandler struct {
	handler CreateOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreateOrderHandler(handler CreateOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCreateOrderHandler {
	return &ObservableCreateOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordOrderCreationDuration(ctx, duration)
		o.metrics.RecordOrderCreated(ctx, success)
	}()

	o.logger.InfoContext(ctx, "creating order",
		"buyer_email", cmd.Buyer.Email,
		"lines", len(cmd.Lines),
		"city", cmd.Destination.City,
	)

	result, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create order",
			"error", err,
			"buyer_email", cmd.Buyer.Email,
		)
		return result, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", result.Order.ID),
		attribute.Float64("order.total_sar", result.Order.TotalSAR),
		attribute.Int("order.lines", len(result.Order.Lines)),
		attribute.Bool("order.has_checkout_url", result.CheckoutURL != ""),
	)

	o.logger.InfoContext(ctx, "order created",
		"order_id", result.Order.ID,
		"total_sar", result.Order.TotalSAR,
		"shipping_sar", result.Order.ShippingSAR,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return result, nil
}
