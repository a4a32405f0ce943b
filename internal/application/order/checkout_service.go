package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Payer runs payment attempts
type Payer interface {
	Pay(ctx context.Context, orderID uuid.UUID, req PaymentRequest) (*PaymentOutcome, error)
}

// Dispatcher submits orders to the supplier
type Dispatcher interface {
	OrderDispatcher
	Dispatch(ctx context.Context, orderID uuid.UUID) DispatchResult
}

// CheckoutService is the storefront entry point for orders
type CheckoutService struct {
	recorder
	products         catalog.ProductRepository
	payments         Payer
	fulfillment      Dispatcher
	currency         string
	dispatchOnCreate bool
}

// NewCheckoutService creates a new CheckoutService. With dispatchOnCreate the
// supplier submission is attempted right after the order is stored.
func NewCheckoutService(
	orders order.Repository,
	products catalog.ProductRepository,
	payments Payer,
	fulfillment Dispatcher,
	publisher shared.EventPublisher,
	currency string,
	dispatchOnCreate bool,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = order.DefaultCurrency
	}
	return &CheckoutService{
		recorder:         recorder{orders: orders, publisher: publisher, logger: logger.Named("checkout")},
		products:         products,
		payments:         payments,
		fulfillment:      fulfillment,
		currency:         currency,
		dispatchOnCreate: dispatchOnCreate,
	}
}

// CreateOrder snapshots the requested variants into a new order
func (s *CheckoutService) CreateOrder(ctx context.Context, input CreateOrderInput) (*order.Order, error) {
	if len(input.Lines) == 0 {
		return nil, order.ErrEmptyOrder
	}

	quantities := make(map[uuid.UUID]int, len(input.Lines))
	ids := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, order.ErrInvalidQuantity
		}
		if _, seen := quantities[line.VariantID]; !seen {
			ids = append(ids, line.VariantID)
		}
		quantities[line.VariantID] += line.Quantity
	}

	variants, err := s.products.FindVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	byID := make(map[uuid.UUID]catalog.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	lines := make([]order.LineInput, 0, len(ids))
	var shortages []StockShortage
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Variant not found").WithDetails(id.String())
		}
		qty := quantities[id]
		if v.Stock < qty {
			shortages = append(shortages, StockShortage{VariantID: id, SKU: v.SKU, Requested: qty, Available: v.Stock})
			continue
		}
		lines = append(lines, order.LineInput{
			VariantID:         v.ID,
			SupplierVariantID: v.SupplierVariantID,
			SKU:               v.SKU,
			Name:              v.Name,
			UnitPrice:         v.Price,
			Quantity:          qty,
		})
	}
	if len(shortages) > 0 {
		return nil, shared.ErrInsufficientStock.WithDetails(shortages)
	}

	currency := strings.TrimSpace(input.Currency)
	if currency == "" {
		currency = s.currency
	}
	o, err := order.NewOrder(input.Email, input.Address, currency, lines)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, o)
	s.logger.Info("Order created",
		zap.String("order_id", o.ID.String()),
		zap.Int("items", o.ItemCount()),
		zap.String("total", o.Total.StringFixed(2)))

	if s.dispatchOnCreate && s.fulfillment != nil {
		s.fulfillment.DispatchOrder(ctx, o)
	}
	return o, nil
}

// GetOrder loads an order
func (s *CheckoutService) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return s.orders.FindByID(ctx, id)
}

// SubmitPayment pays an order and, once paid, hands it to the supplier when
// it has not been submitted yet
func (s *CheckoutService) SubmitPayment(ctx context.Context, orderID uuid.UUID, req PaymentRequest) (*PaymentOutcome, error) {
	outcome, err := s.payments.Pay(ctx, orderID, req)
	if err != nil {
		return nil, err
	}
	if outcome.Status != order.StatusPaid || s.fulfillment == nil {
		return outcome, nil
	}

	result := s.fulfillment.Dispatch(ctx, orderID)
	outcome.Fulfillment = &result
	return outcome, nil
}

// GetPaymentStatus reports the payment state of an order
func (s *CheckoutService) GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (*PaymentStatusView, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{
		OrderID:    o.ID,
		Status:     o.Status,
		Method:     o.PaymentMethod,
		Reference:  o.PaymentReference,
		PaymentURL: o.PaymentURL,
		PaidAt:     o.PaidAt,
		Note:       o.LastNote(),
	}, nil
}

// Ship records the carrier tracking number
func (s *CheckoutService) Ship(ctx context.Context, orderID uuid.UUID, tracking string) (*order.Order, error) {
	if strings.TrimSpace(tracking) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Tracking number cannot be empty")
	}
	return s.mutate(ctx, orderID, func(o *order.Order) error { return o.Ship(strings.TrimSpace(tracking)) })
}

// Deliver marks a shipped order delivered
func (s *CheckoutService) Deliver(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.mutate(ctx, orderID, func(o *order.Order) error { return o.Deliver() })
}

// Cancel cancels an unpaid order
func (s *CheckoutService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error) {
	if reason == "" {
		reason = "requested"
	}
	return s.mutate(ctx, orderID, func(o *order.Order) error { return o.Cancel(reason) })
}

func (s *CheckoutService) mutate(ctx context.Context, orderID uuid.UUID, change func(*order.Order) error) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	expected := o.Status
	if err := change(o); err != nil {
		return nil, err
	}
	if err := s.save(ctx, o, expected); err != nil {
		return nil, err
	}
	return o, nil
}
