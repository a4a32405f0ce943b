package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/infrastructure/config"
)

// metadataOrderID is the metadata key carrying the local order id
const metadataOrderID = "order_id"

// StripeGateway creates hosted checkout sessions through the Stripe API
type StripeGateway struct {
	sessions session.Client
	logger   *zap.Logger
}

// NewStripeGateway creates a gateway using the default Stripe API backend
func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) (*StripeGateway, error) {
	return NewStripeGatewayWithBackend(cfg, stripe.GetBackend(stripe.APIBackend), logger)
}

// NewStripeGatewayWithBackend creates a gateway with an explicit backend
func NewStripeGatewayWithBackend(cfg config.StripeConfig, backend stripe.Backend, logger *zap.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, payment.ErrGatewayNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeGateway{
		sessions: session.Client{B: backend, Key: cfg.SecretKey},
		logger:   logger,
	}, nil
}

// CreateCheckoutSession creates a payment-mode checkout session. The key is
// sent as the Idempotency-Key header.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest, idempotencyKey string) (*payment.CheckoutSession, error) {
	if len(req.LineItems) == 0 {
		return nil, fmt.Errorf("%w: no line items", payment.ErrGatewayRequestFailed)
	}

	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataOrderID: req.OrderID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	params.AddMetadata(metadataOrderID, req.OrderID)
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	g.logger.Debug("Stripe checkout session created",
		zap.String("order_id", req.OrderID),
		zap.String("session_id", s.ID))

	return &payment.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// mapStripeError translates Stripe API errors into payment sentinels
func mapStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	switch {
	case serr.Type == stripe.ErrorTypeIdempotency:
		return fmt.Errorf("%w: %s", payment.ErrIdempotencyConflict, serr.Msg)
	case serr.HTTPStatusCode == 0 || serr.HTTPStatusCode >= 500 || serr.HTTPStatusCode == 429:
		return fmt.Errorf("%w: %s", payment.ErrGatewayUnavailable, serr.Msg)
	}
	return fmt.Errorf("%w: %s", payment.ErrGatewayRequestFailed, serr.Msg)
}

// StripeWebhookVerifier authenticates Stripe webhook deliveries
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier creates a verifier for the endpoint signing secret
func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// Parse verifies the Stripe-Signature header and maps the event to an outcome
func (v *StripeWebhookVerifier) Parse(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if v.secret == "" {
		return nil, payment.ErrGatewayNotConfigured
	}
	// Events are rendered with the endpoint's API version, which may lag the
	// library's pinned version.
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhookSignature, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", payment.ErrInvalidWebhookPayload, event.ID)
	}

	out := &payment.WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Outcome: payment.WebhookOutcomeIgnored,
	}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhookPayload, err)
		}
		out.Reference = s.ID
		out.OrderID = s.ClientReferenceID
		if out.OrderID == "" {
			out.OrderID = s.Metadata[metadataOrderID]
		}
		switch string(event.Type) {
		case "checkout.session.async_payment_failed":
			out.Outcome = payment.WebhookOutcomeFailed
			out.Reason = "async payment failed"
		case "checkout.session.completed":
			// Delayed methods complete the session before the money arrives
			if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusUnpaid {
				out.Outcome = payment.WebhookOutcomePaid
			}
		default:
			out.Outcome = payment.WebhookOutcomePaid
		}

	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhookPayload, err)
		}
		out.OrderID = pi.Metadata[metadataOrderID]
		out.Reference = pi.ID
		if string(event.Type) == "payment_intent.succeeded" {
			out.Outcome = payment.WebhookOutcomePaid
		} else {
			out.Outcome = payment.WebhookOutcomeFailed
			out.Reason = "payment failed"
			if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
				out.Reason = pi.LastPaymentError.Msg
			}
		}
	}

	return out, nil
}

var (
	_ payment.Gateway         = (*StripeGateway)(nil)
	_ payment.WebhookVerifier = (*StripeWebhookVerifier)(nil)
)
