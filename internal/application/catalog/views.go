package catalog

import (
	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductView is the storefront representation of a product
type ProductView struct {
	ID                uuid.UUID             `json:"id"`
	SupplierProductID string                `json:"supplier_product_id,omitempty"`
	Name              string                `json:"name"`
	Description       string                `json:"description,omitempty"`
	Images            []string              `json:"images"`
	MinPrice          decimal.Decimal       `json:"min_price"`
	MaxPrice          decimal.Decimal       `json:"max_price"`
	Stock             int                   `json:"stock"`
	Available         bool                  `json:"available"`
	Placeholder       bool                  `json:"placeholder,omitempty"`
	Variants          []VariantView         `json:"variants"`
	Matrix            []catalog.MatrixEntry `json:"matrix"`
}

// VariantView is the storefront representation of a variant
type VariantView struct {
	ID         uuid.UUID       `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Color      catalog.Color   `json:"color,omitempty"`
	ColorLabel string          `json:"color_label,omitempty"`
	Size       catalog.Size    `json:"size"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Image      string          `json:"image,omitempty"`
}

// ToProductView converts a product aggregate
func ToProductView(p *catalog.Product) ProductView {
	view := ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Images:      p.Images,
		MinPrice:    p.MinPrice,
		MaxPrice:    p.MaxPrice,
		Stock:       p.AggregateStock(),
		Available:   p.IsAvailable(),
		Variants:    make([]VariantView, len(p.Variants)),
		Matrix:      catalog.BuildMatrix(p.Variants),
	}
	if p.SupplierProductID != nil {
		view.SupplierProductID = *p.SupplierProductID
	}
	if view.Images == nil {
		view.Images = []string{}
	}
	for i, v := range p.Variants {
		vv := VariantView{
			ID:    v.ID,
			SKU:   v.SKU,
			Name:  v.Name,
			Color: v.Color,
			Size:  v.Size,
			Price: v.Price,
			Stock: v.Stock,
			Image: v.Image,
		}
		if v.HasColor() {
			vv.ColorLabel = v.Color.Label()
		}
		view.Variants[i] = vv
	}
	return view
}
