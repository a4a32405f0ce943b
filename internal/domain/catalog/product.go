package catalog

import (
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a storefront product sourced from the supplier. Products are
// created and refreshed by catalog sync and never hard-deleted by it.
type Product struct {
	shared.BaseEntity
	// SupplierProductID is nil once the supplier delists the product
	SupplierProductID *string
	Name              string
	RawName           string
	Description       string
	Images            []string
	MinPrice          decimal.Decimal
	MaxPrice          decimal.Decimal
	Variants          []Variant
}

// Variant is a purchasable configuration of a product
type Variant struct {
	shared.BaseEntity
	ProductID         uuid.UUID
	SupplierVariantID string
	SKU               string
	Name              string
	Price             decimal.Decimal
	Stock             int
	Color             Color
	Size              Size
	Image             string
	StockSyncedAt     *time.Time
}

// NewProduct creates a product for a supplier product id
func NewProduct(supplierProductID, name string) (*Product, error) {
	supplierProductID = strings.TrimSpace(supplierProductID)
	if supplierProductID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Supplier product id cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Product name cannot be empty")
	}
	return &Product{
		BaseEntity:        shared.NewBaseEntity(),
		SupplierProductID: &supplierProductID,
		Name:              name,
		MinPrice:          decimal.Zero,
		MaxPrice:          decimal.Zero,
	}, nil
}

// NewVariant creates a variant; stock is clamped to zero
func NewVariant(productID uuid.UUID, supplierVariantID, sku string, price decimal.Decimal, stock int) (*Variant, error) {
	supplierVariantID = strings.TrimSpace(supplierVariantID)
	if supplierVariantID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Supplier variant id cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Variant price cannot be negative")
	}
	v := &Variant{
		BaseEntity:        shared.NewBaseEntity(),
		ProductID:         productID,
		SupplierVariantID: supplierVariantID,
		SKU:               strings.TrimSpace(sku),
		Price:             price,
		Size:              SizeSingle,
	}
	if v.SKU == "" {
		v.SKU = supplierVariantID
	}
	v.SetStock(stock)
	return v, nil
}

// SetStock records a stock level, clamping negatives to zero
func (v *Variant) SetStock(stock int) {
	if stock < 0 {
		stock = 0
	}
	v.Stock = stock
}

// HasColor reports whether a color was inferred for the variant
func (v *Variant) HasColor() bool {
	return v.Color.IsValid()
}

// AddVariant attaches a variant to the product
func (p *Product) AddVariant(v Variant) {
	v.ProductID = p.ID
	p.Variants = append(p.Variants, v)
}

// AggregateStock is the sum of variant stock
func (p *Product) AggregateStock() int {
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// IsAvailable reports whether any variant has stock
func (p *Product) IsAvailable() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

// RecalculatePriceRange derives min/max from variant prices, using fallback
// when the product has no priced variants
func (p *Product) RecalculatePriceRange(fallback decimal.Decimal) {
	first := true
	for _, v := range p.Variants {
		if v.Price.IsZero() {
			continue
		}
		if first {
			p.MinPrice, p.MaxPrice = v.Price, v.Price
			first = false
			continue
		}
		p.MinPrice = decimal.Min(p.MinPrice, v.Price)
		p.MaxPrice = decimal.Max(p.MaxPrice, v.Price)
	}
	if first {
		p.MinPrice, p.MaxPrice = fallback, fallback
	}
}

// FindVariant returns the variant with the given id
func (p *Product) FindVariant(id uuid.UUID) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}
