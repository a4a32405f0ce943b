package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appcatalog "github.com/dropship/backend/internal/application/catalog"
	apporder "github.com/dropship/backend/internal/application/order"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockCheckout is a mock implementation of Checkout
type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) CreateOrder(ctx context.Context, input apporder.CreateOrderInput) (*order.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckout) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckout) SubmitPayment(ctx context.Context, orderID uuid.UUID, req apporder.PaymentRequest) (*apporder.PaymentOutcome, error) {
	args := m.Called(ctx, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.PaymentOutcome), args.Error(1)
}

func (m *MockCheckout) GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (*apporder.PaymentStatusView, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.PaymentStatusView), args.Error(1)
}

func (m *MockCheckout) Ship(ctx context.Context, orderID uuid.UUID, tracking string) (*order.Order, error) {
	args := m.Called(ctx, orderID, tracking)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckout) Deliver(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCheckout) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

// MockCatalog implements CatalogQuerier, StockReconciler and CatalogSyncer
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) List(ctx context.Context, filter shared.Filter) (shared.Paginated[appcatalog.ProductView], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[appcatalog.ProductView]), args.Error(1)
}

func (m *MockCatalog) Get(ctx context.Context, ref string, refresh bool) (*appcatalog.ProductView, error) {
	args := m.Called(ctx, ref, refresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcatalog.ProductView), args.Error(1)
}

func (m *MockCatalog) Reconcile(ctx context.Context, variantIDs []uuid.UUID) (*appcatalog.StockResult, error) {
	args := m.Called(ctx, variantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcatalog.StockResult), args.Error(1)
}

func (m *MockCatalog) ReconcileProduct(ctx context.Context, productID uuid.UUID) (*appcatalog.StockResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcatalog.StockResult), args.Error(1)
}

func (m *MockCatalog) SyncKeywords(ctx context.Context, req appcatalog.SyncRequest) (*supplier.SyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.SyncResult), args.Error(1)
}

// MockWebhookProcessor is a mock implementation of WebhookProcessor
type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) Handle(ctx context.Context, provider string, payload []byte, signature string) (*apporder.WebhookResult, error) {
	args := m.Called(ctx, provider, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.WebhookResult), args.Error(1)
}

func testOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.NewOrder("Ana@Example.com", order.Address{
		Name:       "Ana Souza",
		Street:     "Rua das Flores",
		Number:     "42",
		City:       "São Paulo",
		State:      "SP",
		PostalCode: "01001-000",
	}, "", []order.LineInput{{
		VariantID: uuid.New(),
		SKU:       "TEE-BLK-M",
		Name:      "Camiseta Preta M",
		UnitPrice: decimal.RequireFromString("59.90"),
		Quantity:  2,
	}})
	require.NoError(t, err)
	return o
}

func performRequest(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
