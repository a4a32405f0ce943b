package order

import "github.com/dropship/backend/internal/domain/shared"

var (
	ErrOrderNotFound          = shared.NewDomainError(shared.CodeNotFound, "Order not found")
	ErrAlreadyPaid            = shared.NewDomainError(shared.CodeAlreadyPaid, "Order is already paid")
	ErrInvalidTransition      = shared.NewDomainError(shared.CodeInvalidState, "Order status does not allow this operation")
	ErrConcurrentModification = shared.NewDomainError(shared.CodeConcurrencyConflict, "Order was modified by another request")
	ErrEmptyOrder             = shared.NewDomainError(shared.CodeInvalidInput, "Order must contain at least one item")
	ErrInvalidQuantity        = shared.NewDomainError(shared.CodeInvalidInput, "Item quantity must be positive")
	ErrInvalidPrice           = shared.NewDomainError(shared.CodeInvalidInput, "Item price cannot be negative")
	ErrInvalidEmail           = shared.NewDomainError(shared.CodeInvalidInput, "Invalid customer email")
	ErrInvalidAddress         = shared.NewDomainError(shared.CodeInvalidInput, "Shipping address is incomplete")
)
