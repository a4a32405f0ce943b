package handler

import (
	"context"
	"io"

	apporder "github.com/dropship/backend/internal/application/order"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// MaxWebhookBodyBytes bounds a webhook payload; Stripe documents 64KB
const MaxWebhookBodyBytes = 64 * 1024

// signatureHeaders maps a provider to the header carrying its signature
var signatureHeaders = map[string]string{
	"stripe": "Stripe-Signature",
}

const defaultSignatureHeader = "X-Signature"

// WebhookProcessor applies verified payment provider events
type WebhookProcessor interface {
	Handle(ctx context.Context, provider string, payload []byte, signature string) (*apporder.WebhookResult, error)
}

// WebhookHandler receives payment provider callbacks
type WebhookHandler struct {
	BaseHandler
	processor WebhookProcessor
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Payment receives one provider event. The raw body is verified before
// anything is decoded, so it must reach the processor untouched.
// POST /webhooks/payments/:provider
func (h *WebhookHandler) Payment(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBodyBytes+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(payload) > MaxWebhookBodyBytes {
		h.Error(c, dto.ErrCodePayloadTooLarge, "Webhook payload too large")
		return
	}

	header, ok := signatureHeaders[provider]
	if !ok {
		header = defaultSignatureHeader
	}

	result, err := h.processor.Handle(c.Request.Context(), provider, payload, c.GetHeader(header))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
