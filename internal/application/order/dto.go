package order

import (
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/google/uuid"
)

// LineRequest is one requested variant and quantity
type LineRequest struct {
	VariantID uuid.UUID
	Quantity  int
}

// CreateOrderInput is a storefront order submission
type CreateOrderInput struct {
	Email    string
	Address  order.Address
	Currency string
	Lines    []LineRequest
}

// PaymentRequest selects how an order is paid
type PaymentRequest struct {
	Method payment.Method
	Card   *payment.CardDetails
}

// PaymentOutcome is the result of a payment attempt. A declined or failed
// attempt is an outcome, not an error: Status is payment_failed and Reason
// explains why.
type PaymentOutcome struct {
	OrderID      uuid.UUID       `json:"order_id"`
	Status       order.Status    `json:"status"`
	Method       payment.Method  `json:"method"`
	Reference    string          `json:"reference,omitempty"`
	PaymentURL   string          `json:"payment_url,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Fulfillment  *DispatchResult `json:"fulfillment,omitempty"`
}

// StockShortage describes a line that cannot be covered by current stock
type StockShortage struct {
	VariantID uuid.UUID `json:"variant_id"`
	SKU       string    `json:"sku"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// DispatchResult is the outcome of a supplier submission
type DispatchResult struct {
	OrderID         uuid.UUID `json:"order_id"`
	Submitted       bool      `json:"submitted"`
	SupplierOrderID string    `json:"supplier_order_id,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// PaymentStatusView is the shopper-facing payment state of an order
type PaymentStatusView struct {
	OrderID    uuid.UUID    `json:"order_id"`
	Status     order.Status `json:"status"`
	Method     string       `json:"method,omitempty"`
	Reference  string       `json:"reference,omitempty"`
	PaymentURL string       `json:"payment_url,omitempty"`
	PaidAt     *time.Time   `json:"paid_at,omitempty"`
	Note       string       `json:"note,omitempty"`
}

// WebhookResult reports what a webhook did
type WebhookResult struct {
	EventID string `json:"event_id"`
	// Outcome is applied, duplicate, ignored, noop or rejected
	Outcome string       `json:"outcome"`
	OrderID string       `json:"order_id,omitempty"`
	Status  order.Status `json:"status,omitempty"`
}

const (
	webhookApplied   = "applied"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookNoop      = "noop"
	webhookRejected  = "rejected"
)
