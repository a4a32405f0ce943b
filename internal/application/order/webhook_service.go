package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWebhookTTL is how long processed webhook ids are remembered
const DefaultWebhookTTL = 72 * time.Hour

// OrderDispatcher submits a paid order to the supplier
type OrderDispatcher interface {
	DispatchOrder(ctx context.Context, o *order.Order) DispatchResult
}

// PaymentWebhookService applies verified gateway notifications to orders.
// Each event id is applied at most once; a failed application is forgotten
// so the gateway's redelivery can retry it.
type PaymentWebhookService struct {
	recorder
	verifiers  map[string]payment.WebhookVerifier
	processed  shared.IdempotencyStore
	ttl        time.Duration
	dispatcher OrderDispatcher
	metrics    *telemetry.PipelineMetrics
}

// NewPaymentWebhookService creates a new PaymentWebhookService. verifiers
// are keyed by provider name as it appears in the webhook route.
func NewPaymentWebhookService(
	orders order.Repository,
	verifiers map[string]payment.WebhookVerifier,
	processed shared.IdempotencyStore,
	ttl time.Duration,
	dispatcher OrderDispatcher,
	publisher shared.EventPublisher,
	metrics *telemetry.PipelineMetrics,
	logger *zap.Logger,
) *PaymentWebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultWebhookTTL
	}
	return &PaymentWebhookService{
		recorder:   recorder{orders: orders, publisher: publisher, logger: logger.Named("payment_webhook")},
		verifiers:  verifiers,
		processed:  processed,
		ttl:        ttl,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// Handle verifies and applies one webhook delivery
func (s *PaymentWebhookService) Handle(ctx context.Context, provider string, payload []byte, signature string) (*WebhookResult, error) {
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: no webhook verifier for %q", payment.ErrGatewayNotConfigured, provider)
	}
	ev, err := verifier.Parse(payload, signature)
	if err != nil {
		s.metrics.WebhookHandled(ctx, webhookRejected)
		return nil, err
	}
	log := s.logger.With(zap.String("provider", provider), zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	result := &WebhookResult{EventID: ev.ID, OrderID: ev.OrderID}
	if ev.Outcome == payment.WebhookOutcomeIgnored {
		result.Outcome = webhookIgnored
		s.metrics.WebhookHandled(ctx, webhookIgnored)
		return result, nil
	}

	key := provider + ":" + ev.ID
	fresh, err := s.processed.MarkProcessed(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("webhook idempotency store: %w", err)
	}
	if !fresh {
		log.Info("Duplicate webhook delivery skipped")
		result.Outcome = webhookDuplicate
		s.metrics.WebhookHandled(ctx, webhookDuplicate)
		return result, nil
	}

	if err := s.apply(ctx, ev, result); err != nil {
		if uerr := s.processed.Unmark(ctx, key); uerr != nil {
			log.Error("Failed to unmark webhook after error", zap.Error(uerr))
		}
		log.Warn("Webhook could not be applied", zap.Error(err))
		return nil, err
	}
	log.Info("Webhook handled", zap.String("outcome", result.Outcome), zap.String("status", string(result.Status)))
	s.metrics.WebhookHandled(ctx, result.Outcome)
	return result, nil
}

func (s *PaymentWebhookService) apply(ctx context.Context, ev *payment.WebhookEvent, result *WebhookResult) error {
	o, err := s.findOrder(ctx, ev)
	if err != nil {
		return err
	}
	result.OrderID = o.ID.String()
	expected := o.Status

	switch ev.Outcome {
	case payment.WebhookOutcomePaid:
		if o.Status.IsPaid() {
			result.Outcome, result.Status = webhookNoop, o.Status
			return nil
		}
		if o.Status != order.StatusPaymentPending {
			// money arrived for an order not awaiting it (e.g. a late boleto)
			method := o.PaymentMethod
			if method == "" {
				method = string(payment.MethodCheckout)
			}
			if err := o.StartPayment(method); err != nil {
				return s.reject(o, result, err)
			}
		}
		reference := ""
		if o.PaymentReference == "" {
			reference = ev.Reference
		}
		if err := o.MarkPaid(reference); err != nil {
			return s.reject(o, result, err)
		}

	case payment.WebhookOutcomeFailed:
		if o.Status != order.StatusPaymentPending {
			// a paid order is never reverted by a late failure notice
			result.Outcome, result.Status = webhookNoop, o.Status
			return nil
		}
		reason := ev.Reason
		if reason == "" {
			reason = ev.Type
		}
		if err := o.MarkPaymentFailed(reason); err != nil {
			return err
		}
	}

	if err := s.save(ctx, o, expected); err != nil {
		return err
	}
	result.Outcome, result.Status = webhookApplied, o.Status

	if o.Status == order.StatusPaid && !o.IsSubmitted() && s.dispatcher != nil {
		s.dispatcher.DispatchOrder(ctx, o)
	}
	return nil
}

// reject keeps the event marked: redelivering it would fail the same way
func (s *PaymentWebhookService) reject(o *order.Order, result *WebhookResult, cause error) error {
	s.logger.Warn("Webhook does not apply to order state",
		zap.String("order_id", o.ID.String()),
		zap.String("status", string(o.Status)),
		zap.Error(cause))
	result.Outcome, result.Status = webhookRejected, o.Status
	return nil
}

// findOrder resolves the order by the id the gateway echoed back, falling
// back to the stored payment reference
func (s *PaymentWebhookService) findOrder(ctx context.Context, ev *payment.WebhookEvent) (*order.Order, error) {
	if id, err := uuid.Parse(ev.OrderID); err == nil {
		o, err := s.orders.FindByID(ctx, id)
		if err == nil || !errors.Is(err, order.ErrOrderNotFound) {
			return o, err
		}
	}
	if ev.Reference != "" {
		return s.orders.FindByPaymentReference(ctx, ev.Reference)
	}
	return nil, order.ErrOrderNotFound
}
