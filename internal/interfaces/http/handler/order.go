package handler

import (
	"context"
	"errors"
	"io"

	apporder "github.com/dropship/backend/internal/application/order"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Checkout is the order lifecycle used by the storefront
type Checkout interface {
	CreateOrder(ctx context.Context, input apporder.CreateOrderInput) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	SubmitPayment(ctx context.Context, orderID uuid.UUID, req apporder.PaymentRequest) (*apporder.PaymentOutcome, error)
	GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (*apporder.PaymentStatusView, error)
	Ship(ctx context.Context, orderID uuid.UUID, tracking string) (*order.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error)
}

// OrderHandler serves the order and payment endpoints
type OrderHandler struct {
	BaseHandler
	checkout Checkout
}

// NewOrderHandler creates an order handler
func NewOrderHandler(checkout Checkout) *OrderHandler {
	return &OrderHandler{checkout: checkout}
}

// Create places a new order
// POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lines := make([]apporder.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = apporder.LineRequest{VariantID: uuid.MustParse(it.VariantID), Quantity: it.Quantity}
	}

	o, err := h.checkout.CreateOrder(c.Request.Context(), apporder.CreateOrderInput{
		Email:    req.Email,
		Address:  req.Address.ToDomain(),
		Currency: req.Currency,
		Lines:    lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToOrderResponse(o))
}

// Get returns an order
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	o, err := h.checkout.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOrderResponse(o))
}

// SubmitPayment pays an order. A declined attempt still answers 200 with a
// payment_failed outcome.
// POST /api/v1/orders/:id/payments
func (h *OrderHandler) SubmitPayment(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	preq := apporder.PaymentRequest{Method: payment.Method(req.Method)}
	if req.Card != nil {
		preq.Card = &payment.CardDetails{
			Number: req.Card.Number,
			Expiry: req.Card.Expiry,
			CVV:    req.Card.CVV,
			Holder: req.Card.Holder,
		}
	}

	ctx := logger.WithOrderID(c.Request.Context(), id.String())
	outcome, err := h.checkout.SubmitPayment(ctx, id, preq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}

// PaymentStatus returns the payment state of an order
// GET /api/v1/orders/:id/payment-status
func (h *OrderHandler) PaymentStatus(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	view, err := h.checkout.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Ship records the tracking number of a paid order
// POST /api/v1/orders/:id/ship
func (h *OrderHandler) Ship(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ShipRequest
	if !h.BindJSON(c, &req) {
		return
	}
	o, err := h.checkout.Ship(c.Request.Context(), id, req.TrackingNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOrderResponse(o))
}

// Deliver marks a shipped order as delivered
// POST /api/v1/orders/:id/deliver
func (h *OrderHandler) Deliver(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	o, err := h.checkout.Deliver(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOrderResponse(o))
}

// Cancel cancels an order that has not been paid. The body is optional.
// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.HandleValidation(c, err)
		return
	}
	o, err := h.checkout.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToOrderResponse(o))
}
