package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrOrderLocked is returned when another payment attempt holds the order
var ErrOrderLocked = shared.NewDomainError(shared.CodeOrderLocked, "A payment for this order is already in progress")

// PaymentSettings holds the checkout parameters of the payment service
type PaymentSettings struct {
	// SuccessURL and CancelURL may contain {ORDER_ID}
	SuccessURL string
	CancelURL  string
	LockTTL    time.Duration
}

// PaymentService charges orders. Attempts on the same order are serialized
// by a lock and every status change is a conditional update.
type PaymentService struct {
	recorder
	products catalog.ProductRepository
	charger  payment.Charger
	gateway  payment.Gateway
	locker   shared.Locker
	settings PaymentSettings
	metrics  *telemetry.PipelineMetrics
	newSalt  func() string
}

// NewPaymentService creates a new PaymentService. gateway may be nil when
// hosted checkout is not offered.
func NewPaymentService(
	orders order.Repository,
	products catalog.ProductRepository,
	charger payment.Charger,
	gateway payment.Gateway,
	locker shared.Locker,
	publisher shared.EventPublisher,
	settings PaymentSettings,
	metrics *telemetry.PipelineMetrics,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = 30 * time.Second
	}
	return &PaymentService{
		recorder: recorder{orders: orders, publisher: publisher, logger: logger.Named("payment")},
		products: products,
		charger:  charger,
		gateway:  gateway,
		locker:   locker,
		settings: settings,
		metrics:  metrics,
		newSalt:  uuid.NewString,
	}
}

// Pay runs one payment attempt for an order
func (s *PaymentService) Pay(ctx context.Context, orderID uuid.UUID, req PaymentRequest) (outcome *PaymentOutcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.pay",
		attribute.String("order_id", orderID.String()),
		attribute.String("method", req.Method.String()))
	defer telemetry.End(span, &err)

	if !req.Method.IsValid() {
		return nil, payment.ErrUnsupportedMethod
	}
	if req.Method == payment.MethodCheckout && s.gateway == nil {
		return nil, payment.ErrUnsupportedMethod
	}
	if req.Method != payment.MethodCheckout && s.charger == nil {
		return nil, payment.ErrUnsupportedMethod
	}

	release, err := s.locker.Acquire(ctx, "order:"+orderID.String(), s.settings.LockTTL)
	if err != nil {
		if errors.Is(err, shared.ErrLockNotAcquired) {
			return nil, ErrOrderLocked
		}
		return nil, fmt.Errorf("acquire order lock: %w", err)
	}
	defer release()

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("order_id", o.ID.String()), zap.String("method", req.Method.String()))

	if o.Status.IsPaid() {
		s.metrics.PaymentAttempted(ctx, req.Method.String(), "rejected")
		return nil, order.ErrAlreadyPaid
	}

	shortages, err := s.checkStock(ctx, o)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		log.Info("Payment refused, insufficient stock", zap.Int("lines", len(shortages)))
		if ferr := s.failBeforeCharge(ctx, o, req.Method, "insufficient stock"); ferr != nil {
			return nil, ferr
		}
		return nil, shared.ErrInsufficientStock.WithDetails(shortages)
	}

	if req.Method == payment.MethodCard {
		card := payment.CardDetails{}
		if req.Card != nil {
			card = *req.Card
		}
		if verr := payment.ValidateCard(card); verr != nil {
			if ferr := s.failBeforeCharge(ctx, o, req.Method, verr.Error()); ferr != nil {
				return nil, ferr
			}
			return nil, verr
		}
	}

	expected := o.Status
	if err := o.StartPayment(req.Method.String()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, o, expected); err != nil {
		return nil, err
	}

	outcome = &PaymentOutcome{OrderID: o.ID, Method: req.Method}
	if req.Method == payment.MethodCheckout {
		err = s.startCheckout(ctx, o, outcome)
	} else {
		err = s.charge(ctx, o, req, outcome)
	}
	if err != nil {
		return nil, err
	}

	outcome.Status = o.Status
	s.metrics.PaymentAttempted(ctx, req.Method.String(), metricOutcome(o.Status))
	log.Info("Payment attempt finished", zap.String("status", string(o.Status)), zap.String("reference", outcome.Reference))
	return outcome, nil
}

// charge performs a direct card, pix or boleto charge
func (s *PaymentService) charge(ctx context.Context, o *order.Order, req PaymentRequest, outcome *PaymentOutcome) error {
	result, err := s.charger.Charge(ctx, payment.ChargeRequest{
		OrderID:  o.ID.String(),
		Method:   req.Method,
		Amount:   o.Total,
		Currency: o.Currency,
		Email:    o.Email,
		Card:     req.Card,
	})
	if err != nil {
		s.logger.Warn("Gateway charge failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		outcome.Reason = payment.ErrPaymentFailed.Message
		return s.markFailed(ctx, o, err.Error())
	}

	outcome.Reference = result.Reference
	outcome.PaymentURL = result.PaymentURL
	outcome.Instructions = result.Instructions

	switch result.Status {
	case payment.ChargeStatusApproved:
		if err := o.MarkPaid(result.Reference); err != nil {
			return err
		}
	case payment.ChargeStatusPending:
		o.SetPaymentReference(result.Reference, result.PaymentURL)
	default:
		reason := payment.ErrCardDeclined.Message
		if result.Reason != nil {
			reason = result.Reason.Error()
		}
		outcome.Reason = reason
		o.SetPaymentReference(result.Reference, "")
		if err := o.MarkPaymentFailed(reason); err != nil {
			return err
		}
	}
	return s.save(ctx, o, order.StatusPaymentPending)
}

// startCheckout opens a hosted checkout session. A gateway that rejects the
// derived idempotency key as reused with different parameters gets exactly
// one retry under a salted key.
func (s *PaymentService) startCheckout(ctx context.Context, o *order.Order, outcome *PaymentOutcome) error {
	req := s.checkoutRequest(o)
	key := payment.IdempotencyKey(req)

	session, err := s.gateway.CreateCheckoutSession(ctx, req, key)
	if errors.Is(err, payment.ErrIdempotencyConflict) {
		s.logger.Warn("Checkout idempotency key conflict, retrying with salted key",
			zap.String("order_id", o.ID.String()))
		session, err = s.gateway.CreateCheckoutSession(ctx, req, payment.SaltedKey(key, s.newSalt()))
	}
	if err != nil {
		s.logger.Warn("Checkout session failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		outcome.Reason = payment.ErrPaymentFailed.Message
		return s.markFailed(ctx, o, err.Error())
	}

	o.SetPaymentReference(session.ID, session.URL)
	outcome.Reference = session.ID
	outcome.PaymentURL = session.URL
	return s.save(ctx, o, order.StatusPaymentPending)
}

func (s *PaymentService) checkoutRequest(o *order.Order) payment.CheckoutRequest {
	items := make([]payment.LineItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = payment.LineItem{
			Name:       it.Name,
			UnitAmount: payment.ToMinorUnits(it.UnitPrice),
			Quantity:   int64(it.Quantity),
		}
	}
	id := o.ID.String()
	return payment.CheckoutRequest{
		OrderID:       id,
		CustomerEmail: o.Email,
		LineItems:     items,
		Currency:      o.Currency,
		SuccessURL:    strings.ReplaceAll(s.settings.SuccessURL, "{ORDER_ID}", id),
		CancelURL:     strings.ReplaceAll(s.settings.CancelURL, "{ORDER_ID}", id),
	}
}

// checkStock compares each line with the variant's current stock
func (s *PaymentService) checkStock(ctx context.Context, o *order.Order) ([]StockShortage, error) {
	ids := make([]uuid.UUID, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.VariantID
	}
	variants, err := s.products.FindVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load variant stock: %w", err)
	}
	available := make(map[uuid.UUID]int, len(variants))
	for _, v := range variants {
		available[v.ID] = v.Stock
	}

	var shortages []StockShortage
	for _, it := range o.Items {
		if have := available[it.VariantID]; have < it.Quantity {
			shortages = append(shortages, StockShortage{
				VariantID: it.VariantID,
				SKU:       it.SKU,
				Requested: it.Quantity,
				Available: have,
			})
		}
	}
	return shortages, nil
}

// failBeforeCharge records a rejected attempt that never reached the gateway
func (s *PaymentService) failBeforeCharge(ctx context.Context, o *order.Order, method payment.Method, reason string) error {
	expected := o.Status
	if o.Status != order.StatusPaymentPending {
		if err := o.StartPayment(method.String()); err != nil {
			return err
		}
	}
	if err := o.MarkPaymentFailed(reason); err != nil {
		return err
	}
	s.metrics.PaymentAttempted(ctx, method.String(), "rejected")
	return s.save(ctx, o, expected)
}

func (s *PaymentService) markFailed(ctx context.Context, o *order.Order, reason string) error {
	if err := o.MarkPaymentFailed(reason); err != nil {
		return err
	}
	return s.save(ctx, o, order.StatusPaymentPending)
}

func metricOutcome(status order.Status) string {
	switch status {
	case order.StatusPaid:
		return "paid"
	case order.StatusPaymentPending:
		return "pending"
	default:
		return "failed"
	}
}
