package supplier

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Supplier Errors
// ---------------------------------------------------------------------------

var (
	ErrSupplierNotConfigured   = errors.New("supplier: not configured")
	ErrSupplierUnavailable     = errors.New("supplier: temporarily unavailable")
	ErrSupplierRequestFailed   = errors.New("supplier: request failed")
	ErrSupplierInvalidResponse = errors.New("supplier: invalid response")
	ErrSupplierAuthFailed      = errors.New("supplier: authentication failed")
	ErrSupplierRateLimited     = errors.New("supplier: rate limited")
	ErrOrderRejected           = errors.New("supplier: order rejected")
	ErrInvalidProductRecord    = errors.New("supplier: invalid product record")
)

// Record is a loosely-structured JSON object as returned by the supplier.
// Field names differ between endpoints; read it through the First* helpers.
type Record map[string]any

// ListQuery selects one page of the keyword search
type ListQuery struct {
	Keyword  string
	Page     int
	PageSize int
}

// ListPage is one page of supplier products
type ListPage struct {
	Items []Record
	Total int
}

// StockLevel is the live stock of one supplier variant
type StockLevel struct {
	VariantID string
	Stock     int
}

// ShippingAddress is the delivery address sent with a supplier order
type ShippingAddress struct {
	Name       string
	Email      string
	Phone      string
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderLine is one supplier variant and quantity in a supplier order
type OrderLine struct {
	SupplierVariantID string
	Quantity          int
}

// CreateOrderRequest asks the supplier to ship a set of variants
type CreateOrderRequest struct {
	// Reference is the local order id, sent so supplier-side duplicates can be traced
	Reference string
	Address   ShippingAddress
	Lines     []OrderLine
}

// CreateOrderResult is the supplier's acknowledgement of an order
type CreateOrderResult struct {
	SupplierOrderID string
}

// Client is the port to the dropshipping supplier's catalog, stock and order APIs
type Client interface {
	// ListProducts returns one page of products matching a keyword
	ListProducts(ctx context.Context, query ListQuery) (*ListPage, error)

	// GetProduct returns a single product with its variants
	GetProduct(ctx context.Context, supplierProductID string) (Record, error)

	// QueryStock returns live stock for the given supplier variant ids. A
	// missing or malformed list in the response yields an empty slice.
	QueryStock(ctx context.Context, variantIDs []string) ([]StockLevel, error)

	// CreateOrder submits an order for fulfillment
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error)
}

// ---------------------------------------------------------------------------
// Sync result
// ---------------------------------------------------------------------------

// SyncStatus represents the outcome of a sync run
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// SyncFailure describes one item that could not be synced
type SyncFailure struct {
	ItemID       string `json:"item_id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// PageError records a list page that could not be fetched
type PageError struct {
	Keyword string `json:"keyword"`
	Page    int    `json:"page"`
	Error   string `json:"error"`
}

// SyncResult summarizes a catalog sync run
type SyncResult struct {
	Status       SyncStatus    `json:"status"`
	TotalCount   int           `json:"total_count"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	FailedItems  []SyncFailure `json:"failed_items,omitempty"`
	PageErrors   []PageError   `json:"page_errors,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	SyncedAt     time.Time     `json:"synced_at"`
}

// Finalize derives the status from the counters and page errors
func (r *SyncResult) Finalize() {
	r.FailedCount = r.TotalCount - r.SuccessCount
	switch {
	case r.TotalCount == 0 && len(r.PageErrors) > 0:
		r.Status = SyncStatusFailed
	case r.SuccessCount == 0 && r.TotalCount > 0:
		r.Status = SyncStatusFailed
	case r.FailedCount > 0 || len(r.PageErrors) > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusSuccess
	}
	r.SyncedAt = time.Now()
}

// ProductData is a supplier product after tolerant extraction
type ProductData struct {
	ID          string
	Name        string
	Description string
	Images      []string
	SellPrice   decimal.Decimal
	Variants    []VariantData
}

// VariantData is a supplier variant after tolerant extraction
type VariantData struct {
	ID    string
	SKU   string
	Name  string
	Price decimal.Decimal
	Stock int
	Image string
	// AltTexts are other free-text fields (variant key, localized names)
	// that may carry a color or size signal
	AltTexts []string
}
