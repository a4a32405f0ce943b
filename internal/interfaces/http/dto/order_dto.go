package dto

import (
	"time"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/google/uuid"
)

// AddressRequest is the shipping address of a new order
type AddressRequest struct {
	Name       string `json:"name" binding:"required,max=120"`
	Phone      string `json:"phone" binding:"omitempty,max=30"`
	Street     string `json:"street" binding:"required,max=200"`
	Number     string `json:"number" binding:"omitempty,max=20"`
	Complement string `json:"complement" binding:"omitempty,max=100"`
	District   string `json:"district" binding:"omitempty,max=100"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"omitempty,max=50"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"omitempty,len=2"`
}

// ToDomain converts the request into an order address
func (a AddressRequest) ToDomain() order.Address {
	return order.Address{
		Name:       a.Name,
		Phone:      a.Phone,
		Street:     a.Street,
		Number:     a.Number,
		Complement: a.Complement,
		District:   a.District,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// OrderLineRequest is one requested variant
type OrderLineRequest struct {
	VariantID string `json:"variant_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=999"`
}

// CreateOrderRequest is the storefront checkout payload
type CreateOrderRequest struct {
	Email    string             `json:"email" binding:"required,email"`
	Currency string             `json:"currency" binding:"omitempty,len=3"`
	Address  AddressRequest     `json:"address" binding:"required"`
	Items    []OrderLineRequest `json:"items" binding:"required,min=1,max=50,dive"`
}

// CardRequest carries raw card data for a direct charge. Only size bounds are
// checked here; the payment service validates the card and fails the order.
type CardRequest struct {
	Number string `json:"number" binding:"required,max=32"`
	Expiry string `json:"expiry" binding:"required,max=8"`
	CVV    string `json:"cvv" binding:"required,max=8"`
	Holder string `json:"holder" binding:"omitempty,max=120"`
}

// PaymentRequest selects how an order is paid
type PaymentRequest struct {
	Method string       `json:"method" binding:"required,oneof=card pix boleto checkout"`
	Card   *CardRequest `json:"card" binding:"required_if=Method card"`
}

// ShipRequest records the carrier tracking number
type ShipRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required,max=64"`
}

// CancelRequest optionally explains a cancellation
type CancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=200"`
}

// OrderItemResponse is one order line
type OrderItemResponse struct {
	VariantID uuid.UUID `json:"variant_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
}

// OrderResponse is the public view of an order
type OrderResponse struct {
	ID               uuid.UUID           `json:"id"`
	Status           order.Status        `json:"status"`
	Email            string              `json:"email"`
	Currency         string              `json:"currency"`
	Total            string              `json:"total"`
	ShippingAddress  order.Address       `json:"shipping_address"`
	Items            []OrderItemResponse `json:"items"`
	SupplierOrderID  string              `json:"supplier_order_id,omitempty"`
	PaymentMethod    string              `json:"payment_method,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	PaymentURL       string              `json:"payment_url,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	TrackingNumber   string              `json:"tracking_number,omitempty"`
	Notes            []order.Note        `json:"notes"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ToOrderResponse converts an order into its public view
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			VariantID: it.VariantID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Subtotal:  it.Subtotal().StringFixed(2),
		}
	}
	resp := OrderResponse{
		ID:               o.ID,
		Status:           o.Status,
		Email:            o.Email,
		Currency:         o.Currency,
		Total:            o.Total.StringFixed(2),
		ShippingAddress:  o.ShippingAddress,
		Items:            items,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		PaymentURL:       o.PaymentURL,
		PaidAt:           o.PaidAt,
		TrackingNumber:   o.TrackingNumber,
		Notes:            o.Notes,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.SupplierOrderID != nil {
		resp.SupplierOrderID = *o.SupplierOrderID
	}
	return resp
}

// StockRefreshRequest selects the variants to reconcile: a list of variant
// ids or a product id
type StockRefreshRequest struct {
	VariantIDs []string `json:"variant_ids" binding:"omitempty,max=500,dive,uuid"`
	ProductID  string   `json:"product_id" binding:"omitempty,uuid"`
}

// CatalogSyncRequest triggers a supplier catalog sync
type CatalogSyncRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1,max=20,dive,required,max=80"`
	Pages    int      `json:"pages" binding:"omitempty,min=1,max=50"`
	PageSize int      `json:"page_size" binding:"omitempty,min=1,max=200"`
}
