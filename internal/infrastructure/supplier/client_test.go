package supplier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.SupplierConfig{
		BaseURL:     srv.URL,
		AccessToken: "token-123",
		Timeout:     2 * time.Second,
	}, nil)
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"code":    200,
		"result":  true,
		"message": "Success",
		"data":    data,
	}))
}

func TestHTTPClient_ListProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/product/list", r.URL.Path)
		assert.Equal(t, "token-123", r.Header.Get(AccessTokenHeader))
		assert.Equal(t, "sweater", r.URL.Query().Get("productNameEn"))
		assert.Equal(t, "2", r.URL.Query().Get("pageNum"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		writeEnvelope(t, w, map[string]any{
			"total": 12,
			"list": []any{
				map[string]any{"pid": "P1", "productNameEn": "Knit Sweater"},
				map[string]any{"pid": "P2", "productNameEn": "Ribbed Sweater"},
			},
		})
	})

	page, err := client.ListProducts(context.Background(), supplier.ListQuery{Keyword: "sweater", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "P1", supplier.FirstString(page.Items[0], "pid"))
}

func TestHTTPClient_LargeNumericIDsKeepPrecision(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":200,"result":true,"message":"Success","data":{"total":1,"list":[`+
			`{"pid":1234567890123456789,"productNameEn":"Knit Sweater","sellPrice":59.9}]}}`)
	})

	page, err := client.ListProducts(context.Background(), supplier.ListQuery{Keyword: "sweater", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1234567890123456789", supplier.FirstString(page.Items[0], "pid"))
	price, ok := supplier.FirstDecimal(page.Items[0], "sellPrice")
	require.True(t, ok)
	assert.Equal(t, "59.9", price.String())
}

func TestHTTPClient_GetProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product/query", r.URL.Path)
		assert.Equal(t, "P1", r.URL.Query().Get("pid"))
		writeEnvelope(t, w, map[string]any{
			"pid":           "P1",
			"productNameEn": "Knit Sweater",
			"variants":      []any{map[string]any{"vid": "V1", "variantSku": "SW-BLK-M"}},
		})
	})

	rec, err := client.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.True(t, supplier.HasVariantList(rec))

	_, err = client.GetProduct(context.Background(), " ")
	assert.ErrorIs(t, err, supplier.ErrSupplierRequestFailed)
}

func TestHTTPClient_QueryStock(t *testing.T) {
	tests := []struct {
		name string
		data any
		want []supplier.StockLevel
	}{
		{
			name: "bare list",
			data: []any{
				map[string]any{"vid": "V1", "storageNum": 7},
				map[string]any{"vid": "V2", "storageNum": "3"},
			},
			want: []supplier.StockLevel{{VariantID: "V1", Stock: 7}, {VariantID: "V2", Stock: 3}},
		},
		{
			name: "wrapped list with negative stock",
			data: map[string]any{"list": []any{map[string]any{"vid": "V1", "inventory": -4}}},
			want: []supplier.StockLevel{{VariantID: "V1", Stock: 0}},
		},
		{
			name: "null data",
			data: nil,
			want: []supplier.StockLevel{},
		},
		{
			name: "malformed list",
			data: map[string]any{"list": "oops"},
			want: []supplier.StockLevel{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				var body map[string][]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, []string{"V1", "V2"}, body["vids"])
				writeEnvelope(t, w, tt.data)
			})

			got, err := client.QueryStock(context.Background(), []string{"V1", "V2"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPClient_QueryStock_EmptyInputSkipsCall(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	got, err := client.QueryStock(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, called)
}

func TestHTTPClient_CreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shopping/order/createOrder", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "order-1", body["orderNumber"])
		assert.Equal(t, "Rua A 10", body["shippingAddress"])
		products := body["products"].([]any)
		require.Len(t, products, 1)
		assert.Equal(t, "V1", products[0].(map[string]any)["vid"])
		writeEnvelope(t, w, map[string]any{"orderId": "CJ-42"})
	})

	res, err := client.CreateOrder(context.Background(), supplier.CreateOrderRequest{
		Reference: "order-1",
		Address:   supplier.ShippingAddress{Name: "Ana", Street: "Rua A", Number: "10", City: "SP", PostalCode: "01000-000", Country: "BR"},
		Lines:     []supplier.OrderLine{{SupplierVariantID: "V1", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CJ-42", res.SupplierOrderID)
}

func TestHTTPClient_CreateOrder_MissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, map[string]any{})
	})

	_, err := client.CreateOrder(context.Background(), supplier.CreateOrderRequest{
		Lines: []supplier.OrderLine{{SupplierVariantID: "V1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, supplier.ErrSupplierInvalidResponse)

	_, err = client.CreateOrder(context.Background(), supplier.CreateOrderRequest{})
	assert.ErrorIs(t, err, supplier.ErrOrderRejected)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, supplier.ErrSupplierAuthFailed},
		{"forbidden", http.StatusForbidden, `{}`, supplier.ErrSupplierAuthFailed},
		{"rate limited", http.StatusTooManyRequests, `{}`, supplier.ErrSupplierRateLimited},
		{"server error", http.StatusBadGateway, `{}`, supplier.ErrSupplierUnavailable},
		{"bad request", http.StatusBadRequest, `{}`, supplier.ErrSupplierRequestFailed},
		{"invalid json", http.StatusOK, `not json`, supplier.ErrSupplierInvalidResponse},
		{"business failure", http.StatusOK, `{"code":1600300,"result":false,"message":"bad param"}`, supplier.ErrSupplierRequestFailed},
		{"token expired", http.StatusOK, `{"code":1600001,"result":false,"message":"token expired"}`, supplier.ErrSupplierAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.ListProducts(context.Background(), supplier.ListQuery{Keyword: "x"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPClient_NotConfigured(t *testing.T) {
	client := NewHTTPClient(config.SupplierConfig{}, nil)

	_, err := client.ListProducts(context.Background(), supplier.ListQuery{})
	assert.ErrorIs(t, err, supplier.ErrSupplierNotConfigured)
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(config.SupplierConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)

	_, err := client.QueryStock(context.Background(), []string{"V1"})
	assert.ErrorIs(t, err, supplier.ErrSupplierUnavailable)
	assert.True(t, IsRetryable(err))
}
