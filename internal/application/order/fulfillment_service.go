package order

import (
	"context"
	"errors"
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDispatchTimeout bounds a supplier order submission
const DefaultDispatchTimeout = 20 * time.Second

// FulfillmentService submits orders to the supplier. Submission failures are
// recorded on the order and reported, never raised: a paid order stays paid.
type FulfillmentService struct {
	recorder
	supplier supplier.Client
	timeout  time.Duration
	metrics  *telemetry.PipelineMetrics
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(
	orders order.Repository,
	client supplier.Client,
	publisher shared.EventPublisher,
	timeout time.Duration,
	metrics *telemetry.PipelineMetrics,
	logger *zap.Logger,
) *FulfillmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &FulfillmentService{
		recorder: recorder{orders: orders, publisher: publisher, logger: logger.Named("fulfillment")},
		supplier: client,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Dispatch loads an order and submits it
func (s *FulfillmentService) Dispatch(ctx context.Context, orderID uuid.UUID) DispatchResult {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return DispatchResult{OrderID: orderID, Error: err.Error()}
	}
	return s.DispatchOrder(ctx, o)
}

// DispatchOrder submits an already loaded order. The order is updated in
// place with the supplier order id or a failure note.
func (s *FulfillmentService) DispatchOrder(ctx context.Context, o *order.Order) DispatchResult {
	result := DispatchResult{OrderID: o.ID}
	if o.IsSubmitted() {
		result.Submitted = true
		result.SupplierOrderID = *o.SupplierOrderID
		return result
	}
	if o.Status == order.StatusCancelled {
		result.Error = "order is cancelled"
		return result
	}
	log := s.logger.With(zap.String("order_id", o.ID.String()))

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	created, err := s.supplier.CreateOrder(tctx, supplierRequest(o))
	cancel()

	if err == nil && created.SupplierOrderID == "" {
		err = supplier.ErrSupplierInvalidResponse
	}
	if err != nil {
		log.Warn("Supplier order submission failed", zap.Error(err))
		result.Error = err.Error()
		s.metrics.FulfillmentDispatched(ctx, false)
		if serr := s.apply(ctx, o, func(o *order.Order) error {
			o.RecordSupplierFailure(err.Error())
			return nil
		}); serr != nil {
			log.Error("Failed to record supplier failure", zap.Error(serr))
		}
		return result
	}

	s.metrics.FulfillmentDispatched(ctx, true)
	result.SupplierOrderID = created.SupplierOrderID
	if serr := s.apply(ctx, o, func(o *order.Order) error {
		return o.MarkSubmitted(created.SupplierOrderID)
	}); serr != nil {
		// the supplier holds the order; losing the id here needs manual reconciliation
		log.Error("Supplier accepted order but the id could not be stored",
			zap.String("supplier_order_id", created.SupplierOrderID), zap.Error(serr))
		result.Error = serr.Error()
		return result
	}
	result.Submitted = true
	log.Info("Order submitted to supplier", zap.String("supplier_order_id", created.SupplierOrderID))
	return result
}

// apply mutates and saves the order, reloading once when a concurrent
// update (typically a payment webhook) changed its status in between
func (s *FulfillmentService) apply(ctx context.Context, o *order.Order, mutate func(*order.Order) error) error {
	for attempt := 0; ; attempt++ {
		expected := o.Status
		if err := mutate(o); err != nil {
			return err
		}
		err := s.save(ctx, o, expected)
		if err == nil || attempt > 0 || !errors.Is(err, order.ErrConcurrentModification) {
			return err
		}
		fresh, ferr := s.orders.FindByID(ctx, o.ID)
		if ferr != nil {
			return ferr
		}
		*o = *fresh
	}
}

func supplierRequest(o *order.Order) supplier.CreateOrderRequest {
	a := o.ShippingAddress
	lines := make([]supplier.OrderLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = supplier.OrderLine{SupplierVariantID: it.SupplierVariantID, Quantity: it.Quantity}
	}
	return supplier.CreateOrderRequest{
		Reference: o.ID.String(),
		Address: supplier.ShippingAddress{
			Name:       a.Name,
			Email:      o.Email,
			Phone:      a.Phone,
			Street:     a.Street,
			Number:     a.Number,
			Complement: a.Complement,
			District:   a.District,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		},
		Lines: lines,
	}
}
