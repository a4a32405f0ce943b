package order

import (
	"context"
	"fmt"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// FulfillmentAlert describes an order the supplier did not accept. These
// orders are paid but will not ship until an operator retries them.
type FulfillmentAlert struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// FulfillmentAlertNotifier delivers fulfillment alerts to operators
type FulfillmentAlertNotifier interface {
	NotifyFulfillmentFailed(ctx context.Context, alert FulfillmentAlert) error
}

// FulfillmentAlertHandler turns fulfillment failed events into operator
// alerts
type FulfillmentAlertHandler struct {
	logger   *zap.Logger
	notifier FulfillmentAlertNotifier
}

// NewFulfillmentAlertHandler creates the handler; without a notifier it only
// logs
func NewFulfillmentAlertHandler(logger *zap.Logger) *FulfillmentAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentAlertHandler{logger: logger}
}

// WithNotifier sets the alert channel
func (h *FulfillmentAlertHandler) WithNotifier(notifier FulfillmentAlertNotifier) *FulfillmentAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes implements shared.EventHandler
func (h *FulfillmentAlertHandler) EventTypes() []string {
	return []string{order.EventTypeFulfillmentFailed}
}

// Handle implements shared.EventHandler. Notifier failures are logged and
// swallowed so one broken channel does not fail the publisher.
func (h *FulfillmentAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	failed, ok := event.(*order.FulfillmentFailedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			order.EventTypeFulfillmentFailed, event.EventType())
	}

	alert := FulfillmentAlert{OrderID: failed.AggregateID().String(), Reason: failed.Reason}
	h.logger.Warn("Fulfillment failed",
		zap.String("order_id", alert.OrderID),
		zap.String("reason", alert.Reason))

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.NotifyFulfillmentFailed(ctx, alert); err != nil {
		h.logger.Error("Failed to send fulfillment alert",
			zap.String("order_id", alert.OrderID),
			zap.Error(err))
	}
	return nil
}

var _ shared.EventHandler = (*FulfillmentAlertHandler)(nil)

// LoggingAlertNotifier writes alerts to the error log, where log based
// alerting picks them up
type LoggingAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingAlertNotifier creates a logging notifier
func NewLoggingAlertNotifier(logger *zap.Logger) *LoggingAlertNotifier {
	return &LoggingAlertNotifier{logger: logger.Named("alerts")}
}

// NotifyFulfillmentFailed implements FulfillmentAlertNotifier
func (n *LoggingAlertNotifier) NotifyFulfillmentFailed(_ context.Context, alert FulfillmentAlert) error {
	n.logger.Error("FULFILLMENT FAILED",
		zap.String("order_id", alert.OrderID),
		zap.String("reason", alert.Reason))
	return nil
}
