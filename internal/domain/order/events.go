package order

import (
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeOrder is the aggregate type for order events
const AggregateTypeOrder = "Order"

// Event types
const (
	EventTypeOrderCreated         = "order.created"
	EventTypeOrderStatusChanged   = "order.status_changed"
	EventTypeFulfillmentSubmitted = "order.fulfillment_submitted"
	EventTypeFulfillmentFailed    = "order.fulfillment_failed"
)

// OrderCreatedEvent is raised when an order is placed
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	Email     string          `json:"email"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	ItemCount int             `json:"item_count"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID),
		Email:           o.Email,
		Total:           o.Total,
		Currency:        o.Currency,
		ItemCount:       len(o.Items),
	}
}

// StatusChangedEvent is raised on every status transition
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	From   Status `json:"from"`
	To     Status `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// NewStatusChangedEvent creates a new StatusChangedEvent
func NewStatusChangedEvent(orderID uuid.UUID, from, to Status, reason string) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, orderID),
		From:            from,
		To:              to,
		Reason:          reason,
	}
}

// FulfillmentSubmittedEvent is raised when the supplier accepts the order
type FulfillmentSubmittedEvent struct {
	shared.BaseDomainEvent
	SupplierOrderID string `json:"supplier_order_id"`
}

// NewFulfillmentSubmittedEvent creates a new FulfillmentSubmittedEvent
func NewFulfillmentSubmittedEvent(orderID uuid.UUID, supplierOrderID string) *FulfillmentSubmittedEvent {
	return &FulfillmentSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFulfillmentSubmitted, AggregateTypeOrder, orderID),
		SupplierOrderID: supplierOrderID,
	}
}

// FulfillmentFailedEvent is raised when the supplier order could not be placed
type FulfillmentFailedEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewFulfillmentFailedEvent creates a new FulfillmentFailedEvent
func NewFulfillmentFailedEvent(orderID uuid.UUID, reason string) *FulfillmentFailedEvent {
	return &FulfillmentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFulfillmentFailed, AggregateTypeOrder, orderID),
		Reason:          reason,
	}
}
