package catalog

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatrixEntry is one (color, size) cell of the storefront selector backed by
// an existing variant. Direct is false when the cell borrows another variant.
type MatrixEntry struct {
	Color             Color           `json:"color,omitempty"`
	Size              Size            `json:"size"`
	VariantID         uuid.UUID       `json:"variant_id"`
	SupplierVariantID string          `json:"supplier_variant_id"`
	SKU               string          `json:"sku"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	Image             string          `json:"image,omitempty"`
	Direct            bool            `json:"direct"`
}

// BuildMatrix projects variants onto the color × size grid. Each cell is
// backed by exactly one existing variant: the exact match, else one of the
// same size, else any variant with stock. Without any color signal the result
// is one entry per size with no color.
func BuildMatrix(variants []Variant) []MatrixEntry {
	if len(variants) == 0 {
		return nil
	}

	var colors []Color
	seenColor := map[Color]bool{}
	seenSize := map[Size]bool{}
	var sizes []Size
	for _, v := range variants {
		if v.HasColor() && !seenColor[v.Color] {
			seenColor[v.Color] = true
			colors = append(colors, v.Color)
		}
		size := v.Size
		if size == "" {
			size = SizeSingle
		}
		if !seenSize[size] {
			seenSize[size] = true
			sizes = append(sizes, size)
		}
	}
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i].Rank() < sizes[j].Rank() })

	if len(colors) == 0 {
		entries := make([]MatrixEntry, 0, len(sizes))
		for _, size := range sizes {
			v := pick(variants, func(v Variant) bool { return sizeOf(v) == size })
			entries = append(entries, entryFor("", size, *v, true))
		}
		return entries
	}

	entries := make([]MatrixEntry, 0, len(colors)*len(sizes))
	for _, color := range colors {
		for _, size := range sizes {
			if v := pick(variants, func(v Variant) bool { return v.Color == color && sizeOf(v) == size }); v != nil {
				entries = append(entries, entryFor(color, size, *v, true))
				continue
			}
			v := pick(variants, func(v Variant) bool { return sizeOf(v) == size })
			if v == nil {
				v = pick(variants, func(Variant) bool { return true })
			}
			entries = append(entries, entryFor(color, size, *v, false))
		}
	}
	return entries
}

// pick returns the first matching variant with stock, else the first match
func pick(variants []Variant, match func(Variant) bool) *Variant {
	var fallback *Variant
	for i := range variants {
		if !match(variants[i]) {
			continue
		}
		if variants[i].Stock > 0 {
			return &variants[i]
		}
		if fallback == nil {
			fallback = &variants[i]
		}
	}
	return fallback
}

func sizeOf(v Variant) Size {
	if v.Size == "" {
		return SizeSingle
	}
	return v.Size
}

func entryFor(color Color, size Size, v Variant, direct bool) MatrixEntry {
	return MatrixEntry{
		Color:             color,
		Size:              size,
		VariantID:         v.ID,
		SupplierVariantID: v.SupplierVariantID,
		SKU:               v.SKU,
		Price:             v.Price,
		Stock:             v.Stock,
		Image:             v.Image,
		Direct:            direct,
	}
}
