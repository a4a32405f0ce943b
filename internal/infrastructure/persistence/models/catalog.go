package models

import (
	"encoding/json"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for catalog.Product
type ProductModel struct {
	BaseModel
	SupplierProductID *string         `gorm:"type:varchar(64);uniqueIndex"`
	Name              string          `gorm:"type:varchar(300);not null;index"`
	RawName           string          `gorm:"type:text"`
	Description       string          `gorm:"type:text"`
	ImagesJSON        string          `gorm:"column:images;type:text;not null;default:'[]'"`
	MinPrice          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MaxPrice          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Variants          []VariantModel  `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// VariantModel is the persistence model for catalog.Variant
type VariantModel struct {
	BaseModel
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	SupplierVariantID string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	SKU               string          `gorm:"column:sku;type:varchar(100);not null;uniqueIndex"`
	Name              string          `gorm:"type:varchar(300);not null"`
	Price             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Stock             int             `gorm:"not null;default:0"`
	Color             string          `gorm:"type:varchar(20)"`
	Size              string          `gorm:"type:varchar(32);not null"`
	Image             string          `gorm:"type:text"`
	StockSyncedAt     *time.Time
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "product_variants"
}

// ProductModelFromDomain converts a product and its variants
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	images, _ := json.Marshal(nonNilStrings(p.Images))
	m := &ProductModel{
		SupplierProductID: p.SupplierProductID,
		Name:              p.Name,
		RawName:           p.RawName,
		Description:       p.Description,
		ImagesJSON:        string(images),
		MinPrice:          p.MinPrice,
		MaxPrice:          p.MaxPrice,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	for i := range p.Variants {
		m.Variants = append(m.Variants, *VariantModelFromDomain(&p.Variants[i]))
	}
	return m
}

// ToDomain converts the model, including any preloaded variants
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		BaseEntity:        m.BaseModel.ToDomain(),
		SupplierProductID: m.SupplierProductID,
		Name:              m.Name,
		RawName:           m.RawName,
		Description:       m.Description,
		MinPrice:          m.MinPrice,
		MaxPrice:          m.MaxPrice,
	}
	if m.ImagesJSON != "" {
		// malformed image lists are dropped rather than failing the read
		_ = json.Unmarshal([]byte(m.ImagesJSON), &p.Images)
	}
	for i := range m.Variants {
		p.Variants = append(p.Variants, *m.Variants[i].ToDomain())
	}
	return p
}

// VariantModelFromDomain converts a variant
func VariantModelFromDomain(v *catalog.Variant) *VariantModel {
	m := &VariantModel{
		ProductID:         v.ProductID,
		SupplierVariantID: v.SupplierVariantID,
		SKU:               v.SKU,
		Name:              v.Name,
		Price:             v.Price,
		Stock:             v.Stock,
		Color:             string(v.Color),
		Size:              string(v.Size),
		Image:             v.Image,
		StockSyncedAt:     v.StockSyncedAt,
	}
	m.FromDomainBaseEntity(v.BaseEntity)
	return m
}

// ToDomain converts the model
func (m *VariantModel) ToDomain() *catalog.Variant {
	return &catalog.Variant{
		BaseEntity:        m.BaseModel.ToDomain(),
		ProductID:         m.ProductID,
		SupplierVariantID: m.SupplierVariantID,
		SKU:               m.SKU,
		Name:              m.Name,
		Price:             m.Price,
		Stock:             m.Stock,
		Color:             catalog.Color(m.Color),
		Size:              catalog.Size(m.Size),
		Image:             m.Image,
		StockSyncedAt:     m.StockSyncedAt,
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
