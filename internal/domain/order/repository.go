package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists orders. Items are written once on Create and never
// touched again.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*Order, error)

	// Update writes the mutable order fields only if the stored status still
	// equals expected; otherwise it returns ErrConcurrentModification
	Update(ctx context.Context, o *Order, expected Status) error
}
