package models

import (
	"encoding/json"
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root
type OrderModel struct {
	AggregateModel
	Email            string          `gorm:"type:varchar(254);not null;index"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	Total            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ShippingJSON     string          `gorm:"column:shipping_address;type:text;not null"`
	SupplierOrderID  *string         `gorm:"type:varchar(64);index"`
	PaymentMethod    string          `gorm:"type:varchar(20)"`
	PaymentReference string          `gorm:"type:varchar(255);index"`
	PaymentURL       string          `gorm:"type:text"`
	PaidAt           *time.Time
	TrackingNumber   string           `gorm:"type:varchar(100)"`
	NotesJSON        string           `gorm:"column:notes;type:text;not null;default:'[]'"`
	Items            []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is an immutable order line
type OrderItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position          int             `gorm:"not null;default:0"`
	VariantID         uuid.UUID       `gorm:"type:uuid;not null"`
	SupplierVariantID string          `gorm:"type:varchar(64);not null"`
	SKU               string          `gorm:"column:sku;type:varchar(100);not null"`
	Name              string          `gorm:"type:varchar(300);not null"`
	Quantity          int             `gorm:"not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderModelFromDomain converts an order and its items
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{
		Email:            o.Email,
		Status:           string(o.Status),
		Currency:         o.Currency,
		Total:            o.Total,
		ShippingJSON:     mustJSON(o.ShippingAddress),
		SupplierOrderID:  o.SupplierOrderID,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		PaymentURL:       o.PaymentURL,
		PaidAt:           o.PaidAt,
		TrackingNumber:   o.TrackingNumber,
		NotesJSON:        mustJSON(nonNilNotes(o.Notes)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:                it.ID,
			OrderID:           o.ID,
			Position:          i,
			VariantID:         it.VariantID,
			SupplierVariantID: it.SupplierVariantID,
			SKU:               it.SKU,
			Name:              it.Name,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
		})
	}
	return m
}

// MutableColumns are the order fields that change after creation
func (m *OrderModel) MutableColumns() map[string]any {
	return map[string]any{
		"status":            m.Status,
		"supplier_order_id": m.SupplierOrderID,
		"payment_method":    m.PaymentMethod,
		"payment_reference": m.PaymentReference,
		"payment_url":       m.PaymentURL,
		"paid_at":           m.PaidAt,
		"tracking_number":   m.TrackingNumber,
		"notes":             m.NotesJSON,
		"version":           m.Version,
		"updated_at":        m.UpdatedAt,
	}
}

// ToDomain converts the model, including any preloaded items
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Email:             m.Email,
		Status:            order.Status(m.Status),
		Currency:          m.Currency,
		Total:             m.Total,
		SupplierOrderID:   m.SupplierOrderID,
		PaymentMethod:     m.PaymentMethod,
		PaymentReference:  m.PaymentReference,
		PaymentURL:        m.PaymentURL,
		PaidAt:            m.PaidAt,
		TrackingNumber:    m.TrackingNumber,
	}
	_ = json.Unmarshal([]byte(m.ShippingJSON), &o.ShippingAddress)
	_ = json.Unmarshal([]byte(m.NotesJSON), &o.Notes)
	for _, it := range m.Items {
		o.Items = append(o.Items, order.Item{
			ID:                it.ID,
			OrderID:           it.OrderID,
			VariantID:         it.VariantID,
			SupplierVariantID: it.SupplierVariantID,
			SKU:               it.SKU,
			Name:              it.Name,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
		})
	}
	return o
}

func nonNilNotes(n []order.Note) []order.Note {
	if n == nil {
		return []order.Note{}
	}
	return n
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
