package handler

import (
	"errors"
	"net/http"

	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// BindJSON binds and validates the body, writing the 400 response itself on
// failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.HandleValidation(c, err)
		return false
	}
	return true
}

// HandleValidation sends a 400 describing binding errors
func (h *BaseHandler) HandleValidation(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// ParseID reads a uuid path parameter, writing the 400 response itself on
// failure
func (h *BaseHandler) ParseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// HandleError converts an application error into an HTTP response. Domain
// errors keep their message and details; anything unrecognised becomes a
// logged 500 with a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		resp := dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID)
		resp.Error.Details = domainErr.Details
		c.JSON(dto.GetHTTPStatus(code), resp)
		return
	}

	switch {
	case errors.Is(err, supplier.ErrSupplierUnavailable),
		errors.Is(err, supplier.ErrSupplierRequestFailed),
		errors.Is(err, supplier.ErrSupplierRateLimited),
		errors.Is(err, supplier.ErrSupplierNotConfigured),
		errors.Is(err, payment.ErrGatewayUnavailable):
		logger.L(c.Request.Context()).Warn("Upstream failure", zap.String("endpoint", c.FullPath()), zap.Error(err))
		h.Error(c, dto.ErrCodeUpstream, "Upstream service is temporarily unavailable")
	case errors.Is(err, payment.ErrInvalidWebhookSignature), errors.Is(err, payment.ErrInvalidWebhookPayload):
		h.Error(c, dto.ErrCodeInvalidSignature, "Webhook could not be verified")
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		h.Error(c, dto.ErrCodeNotFound, "Payment provider not configured")
	default:
		logger.L(c.Request.Context()).Error("Unhandled error",
			zap.String("endpoint", c.FullPath()),
			zap.String("id", c.Param("id")),
			zap.Error(err))
		h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}
