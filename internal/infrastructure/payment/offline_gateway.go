package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropship/backend/internal/domain/payment"
)

// Offline webhook event types
const (
	OfflineEventPaymentSucceeded = "payment.succeeded"
	OfflineEventPaymentFailed    = "payment.failed"
)

// OfflineGateway simulates card, pix and boleto charges and hosted checkout
// without contacting a real processor
type OfflineGateway struct {
	boletoBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

// NewOfflineGateway creates the simulator. boletoBaseURL prefixes generated slip links.
func NewOfflineGateway(boletoBaseURL string, logger *zap.Logger) *OfflineGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if boletoBaseURL == "" {
		boletoBaseURL = "https://boleto.local"
	}
	return &OfflineGateway{
		boletoBaseURL: strings.TrimRight(boletoBaseURL, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

// Charge applies the deterministic simulation rules. Card data is expected to
// be validated by the caller.
func (g *OfflineGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}

	switch req.Method {
	case payment.MethodCard:
		if req.Card == nil {
			return nil, fmt.Errorf("%w: card details missing", payment.ErrGatewayRequestFailed)
		}
		ref := "card_" + shortID()
		if reason := payment.SimulateCard(req.Card.Number); reason != nil {
			g.logger.Info("Simulated card declined",
				zap.String("order_id", req.OrderID),
				zap.String("last4", req.Card.Last4()),
				zap.String("reason", reason.Error()))
			return &payment.ChargeResult{Status: payment.ChargeStatusDeclined, Reference: ref, Reason: reason}, nil
		}
		return &payment.ChargeResult{Status: payment.ChargeStatusApproved, Reference: ref}, nil

	case payment.MethodPix:
		ref := "pix_" + shortID()
		return &payment.ChargeResult{
			Status:       payment.ChargeStatusApproved,
			Reference:    ref,
			Instructions: "00020126580014BR.GOV.BCB.PIX0136" + ref,
		}, nil

	case payment.MethodBoleto:
		ref := "bol_" + shortID()
		return &payment.ChargeResult{
			Status:       payment.ChargeStatusPending,
			Reference:    ref,
			PaymentURL:   g.boletoBaseURL + "/" + ref,
			Instructions: digitableLine(ref, payment.ToMinorUnits(req.Amount), g.now()),
		}, nil
	}

	return &payment.ChargeResult{Status: payment.ChargeStatusDeclined, Reason: payment.ErrUnsupportedMethod}, nil
}

// CreateCheckoutSession returns a local session whose URL points at the
// success page. The idempotency key doubles as the session id, so a retry
// with the same key yields the same session.
func (g *OfflineGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest, idempotencyKey string) (*payment.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	if len(req.LineItems) == 0 {
		return nil, fmt.Errorf("%w: no line items", payment.ErrGatewayRequestFailed)
	}
	id := "cs_offline_" + strings.TrimPrefix(idempotencyKey, "chk_")
	if len(id) > 40 {
		id = id[:40]
	}
	return &payment.CheckoutSession{ID: id, URL: req.SuccessURL}, nil
}

// digitableLine renders a boleto-like line from the reference, amount and due date
func digitableLine(ref string, cents int64, now time.Time) string {
	sum := sha256.Sum256([]byte(ref))
	digits := make([]byte, 0, 36)
	for _, b := range sum[:18] {
		digits = append(digits, '0'+b%10)
	}
	due := now.AddDate(0, 0, 3).Format("020106")
	return fmt.Sprintf("%s.%s %s.%s %s %010d", digits[:5], digits[5:10], digits[10:15], digits[15:18], due, cents)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// offlineEvent is the JSON body of an offline gateway notification
type offlineEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

// HMACWebhookVerifier authenticates offline gateway notifications signed with
// hex(HMAC-SHA256(secret, body))
type HMACWebhookVerifier struct {
	secret []byte
}

// NewHMACWebhookVerifier creates a verifier for the shared secret
func NewHMACWebhookVerifier(secret string) *HMACWebhookVerifier {
	return &HMACWebhookVerifier{secret: []byte(secret)}
}

// Sign returns the signature for a payload
func (v *HMACWebhookVerifier) Sign(payload []byte) string {
	return hex.EncodeToString(v.mac(payload))
}

func (v *HMACWebhookVerifier) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(payload)
	return m.Sum(nil)
}

// Parse verifies the signature and decodes the notification
func (v *HMACWebhookVerifier) Parse(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if len(v.secret) == 0 {
		return nil, payment.ErrGatewayNotConfigured
	}
	got, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(signature, "sha256=")))
	if err != nil || !hmac.Equal(got, v.mac(payload)) {
		return nil, payment.ErrInvalidWebhookSignature
	}

	var ev offlineEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhookPayload, err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", payment.ErrInvalidWebhookPayload)
	}

	out := &payment.WebhookEvent{
		ID:        ev.ID,
		Type:      ev.Type,
		OrderID:   ev.OrderID,
		Reference: ev.Reference,
		Reason:    ev.Reason,
		Outcome:   payment.WebhookOutcomeIgnored,
	}
	switch ev.Type {
	case OfflineEventPaymentSucceeded:
		out.Outcome = payment.WebhookOutcomePaid
	case OfflineEventPaymentFailed:
		out.Outcome = payment.WebhookOutcomeFailed
	}
	return out, nil
}

// SignedEvent builds a signed notification, used by the simulator to confirm
// boleto payments and by tests
func (v *HMACWebhookVerifier) SignedEvent(eventType, orderID, reference string) (payload []byte, signature string, err error) {
	payload, err = json.Marshal(offlineEvent{
		ID:        "evt_" + shortID(),
		Type:      eventType,
		OrderID:   orderID,
		Reference: reference,
	})
	if err != nil {
		return nil, "", err
	}
	return payload, v.Sign(payload), nil
}

var (
	_ payment.Charger         = (*OfflineGateway)(nil)
	_ payment.Gateway         = (*OfflineGateway)(nil)
	_ payment.WebhookVerifier = (*HMACWebhookVerifier)(nil)
)
