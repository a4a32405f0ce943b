package catalog

import (
	"context"
	"errors"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRepository persists products and their variants
type ProductRepository interface {
	// Upsert inserts or updates the product keyed on its supplier product id
	// and every variant keyed on its supplier variant id. On return the
	// product and variant ids are the persisted ones.
	Upsert(ctx context.Context, product *Product) error

	// FindByID loads a product with its variants
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindBySupplierProductID loads a product with its variants
	FindBySupplierProductID(ctx context.Context, supplierProductID string) (*Product, error)

	// List returns a page of products with their variants
	List(ctx context.Context, filter shared.Filter) ([]Product, int64, error)

	// FindVariantsByIDs loads variants; unknown ids are skipped
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]Variant, error)

	// ListStockTargets pages over variants that carry a supplier variant id
	ListStockTargets(ctx context.Context, offset, limit int) ([]Variant, error)

	// UpdateVariantStock writes stock levels by variant id
	UpdateVariantStock(ctx context.Context, stock map[uuid.UUID]int) error
}

// ErrProductNotFound is returned when a product lookup misses
var ErrProductNotFound = shared.NewDomainError(shared.CodeNotFound, "Product not found")

// ErrDuplicateSKU is returned when a variant's SKU already belongs to another variant
var ErrDuplicateSKU = errors.New("catalog: sku already used by another variant")
