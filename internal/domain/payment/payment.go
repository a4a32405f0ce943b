package payment

import (
	"context"
	"errors"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Payment Errors
// ---------------------------------------------------------------------------

var (
	ErrGatewayNotConfigured    = errors.New("payment: gateway not configured")
	ErrGatewayUnavailable      = errors.New("payment: gateway temporarily unavailable")
	ErrGatewayRequestFailed    = errors.New("payment: gateway request failed")
	ErrGatewayInvalidResponse  = errors.New("payment: invalid gateway response")
	ErrInvalidWebhookSignature = errors.New("payment: invalid webhook signature")
	ErrInvalidWebhookPayload   = errors.New("payment: invalid webhook payload")

	// ErrIdempotencyConflict means the gateway refused a reused idempotency
	// key because the request parameters differ from the original request
	ErrIdempotencyConflict = errors.New("payment: idempotency key reused with different parameters")
)

// Error codes for user-facing payment rejections
const (
	CodeInvalidCardNumber = "INVALID_CARD_NUMBER"
	CodeInvalidCardExpiry = "INVALID_CARD_EXPIRY"
	CodeInvalidCVV        = "INVALID_CVV"
	CodeCardDeclined      = "CARD_DECLINED"
	CodeInsufficientLimit = "INSUFFICIENT_LIMIT"
	CodeUnsupportedMethod = "UNSUPPORTED_PAYMENT_METHOD"
	CodePaymentFailed     = "PAYMENT_FAILED"
)

// User-facing rejections. Messages are shown to shoppers as is.
var (
	ErrInvalidCardNumber = shared.NewDomainError(CodeInvalidCardNumber, "Número do cartão inválido")
	ErrInvalidCardExpiry = shared.NewDomainError(CodeInvalidCardExpiry, "Validade do cartão inválida")
	ErrInvalidCVV        = shared.NewDomainError(CodeInvalidCVV, "CVV inválido")
	ErrCardDeclined      = shared.NewDomainError(CodeCardDeclined, "Cartão recusado")
	ErrInsufficientLimit = shared.NewDomainError(CodeInsufficientLimit, "Limite insuficiente")
	ErrUnsupportedMethod = shared.NewDomainError(CodeUnsupportedMethod, "Forma de pagamento não suportada")
	ErrPaymentFailed     = shared.NewDomainError(CodePaymentFailed, "Não foi possível processar o pagamento")
)

// Method is how the shopper pays
type Method string

const (
	// MethodCard charges a credit card
	MethodCard Method = "card"
	// MethodPix is an instant transfer, confirmed synchronously
	MethodPix Method = "pix"
	// MethodBoleto is a bank slip, confirmed out of band
	MethodBoleto Method = "boleto"
	// MethodCheckout redirects to a hosted gateway checkout session
	MethodCheckout Method = "checkout"
)

// IsValid returns true if the method is supported
func (m Method) IsValid() bool {
	switch m {
	case MethodCard, MethodPix, MethodBoleto, MethodCheckout:
		return true
	}
	return false
}

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// ChargeStatus is the gateway's verdict on a charge
type ChargeStatus string

const (
	ChargeStatusApproved ChargeStatus = "approved"
	ChargeStatusPending  ChargeStatus = "pending"
	ChargeStatusDeclined ChargeStatus = "declined"
)

// ChargeRequest is a direct charge for card, pix or boleto
type ChargeRequest struct {
	OrderID  string
	Method   Method
	Amount   decimal.Decimal
	Currency string
	Email    string
	Card     *CardDetails
}

// ChargeResult is the outcome of a direct charge
type ChargeResult struct {
	Status    ChargeStatus
	Reference string
	// Reason is set for declined charges
	Reason error
	// PaymentURL points at the boleto slip or pix QR when the shopper must act
	PaymentURL string
	// Instructions carries the boleto digitable line or the pix copy-paste code
	Instructions string
}

// Charger performs direct charges
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// LineItem is one checkout session line. UnitAmount is in minor units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutRequest creates a hosted checkout session
type CheckoutRequest struct {
	OrderID       string
	CustomerEmail string
	LineItems     []LineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is a created hosted checkout session
type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway creates hosted checkout sessions. Implementations map a gateway
// rejection of a reused idempotency key to ErrIdempotencyConflict.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest, idempotencyKey string) (*CheckoutSession, error)
}

// WebhookOutcome is what a webhook event means for the order
type WebhookOutcome string

const (
	WebhookOutcomePaid    WebhookOutcome = "paid"
	WebhookOutcomeFailed  WebhookOutcome = "failed"
	WebhookOutcomeIgnored WebhookOutcome = "ignored"
)

// WebhookEvent is a verified, gateway-neutral payment notification
type WebhookEvent struct {
	ID        string
	Type      string
	Outcome   WebhookOutcome
	OrderID   string
	Reference string
	Reason    string
}

// WebhookVerifier authenticates and decodes a gateway webhook
type WebhookVerifier interface {
	Parse(payload []byte, signature string) (*WebhookEvent, error)
}

// ToMinorUnits converts an amount to integer cents
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
