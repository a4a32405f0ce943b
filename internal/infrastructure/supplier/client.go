package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/config"
)

// AccessTokenHeader carries the supplier API token
const AccessTokenHeader = "CJ-Access-Token"

// API paths relative to the configured base URL
const (
	pathProductList  = "/product/list"
	pathProductQuery = "/product/query"
	pathStockQuery   = "/product/stock/queryByVids"
	pathCreateOrder  = "/shopping/order/createOrder"
)

const defaultMaxResponseSize = 10 * 1024 * 1024 // 10MB

// envelope is the wrapper every supplier response comes in
type envelope struct {
	Code    int             `json:"code"`
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HTTPClient implements supplier.Client over the supplier's JSON API
type HTTPClient struct {
	baseURL         string
	accessToken     string
	maxResponseSize int64
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewHTTPClient creates a supplier client. An empty base URL yields a client
// whose every call fails with ErrSupplierNotConfigured.
func NewHTTPClient(cfg config.SupplierConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxSize := cfg.MaxResponseSize
	if maxSize <= 0 {
		maxSize = defaultMaxResponseSize
	}
	return &HTTPClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:     cfg.AccessToken,
		maxResponseSize: maxSize,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// ListProducts returns one page of products matching a keyword
func (c *HTTPClient) ListProducts(ctx context.Context, query supplier.ListQuery) (*supplier.ListPage, error) {
	params := url.Values{}
	if query.Keyword != "" {
		params.Set("productNameEn", query.Keyword)
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	params.Set("pageNum", strconv.Itoa(page))
	if query.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(query.PageSize))
	}

	var data supplier.Record
	if err := c.do(ctx, http.MethodGet, pathProductList, params, nil, &data); err != nil {
		return nil, err
	}

	out := &supplier.ListPage{Items: supplier.FirstList(data, "list", "content", "products")}
	if total, ok := supplier.FirstInt(data, "total", "totalRecords"); ok {
		out.Total = total
	}
	return out, nil
}

// GetProduct returns a single product with its variants
func (c *HTTPClient) GetProduct(ctx context.Context, supplierProductID string) (supplier.Record, error) {
	if strings.TrimSpace(supplierProductID) == "" {
		return nil, fmt.Errorf("%w: empty product id", supplier.ErrSupplierRequestFailed)
	}
	params := url.Values{"pid": []string{supplierProductID}}

	var data supplier.Record
	if err := c.do(ctx, http.MethodGet, pathProductQuery, params, nil, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: product %s has no data", supplier.ErrSupplierInvalidResponse, supplierProductID)
	}
	return data, nil
}

// QueryStock returns live stock for the given supplier variant ids
func (c *HTTPClient) QueryStock(ctx context.Context, variantIDs []string) ([]supplier.StockLevel, error) {
	if len(variantIDs) == 0 {
		return []supplier.StockLevel{}, nil
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, pathStockQuery, nil, map[string]any{"vids": variantIDs}, &raw); err != nil {
		return nil, err
	}
	return parseStockData(raw), nil
}

// CreateOrder submits an order for fulfillment
func (c *HTTPClient) CreateOrder(ctx context.Context, req supplier.CreateOrderRequest) (*supplier.CreateOrderResult, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no lines", supplier.ErrOrderRejected)
	}

	products := make([]map[string]any, 0, len(req.Lines))
	for _, l := range req.Lines {
		products = append(products, map[string]any{"vid": l.SupplierVariantID, "quantity": l.Quantity})
	}
	a := req.Address
	body := map[string]any{
		"orderNumber":          req.Reference,
		"shippingCustomerName": a.Name,
		"email":                a.Email,
		"shippingPhone":        a.Phone,
		"shippingAddress":      strings.TrimSpace(a.Street + " " + a.Number),
		"shippingAddress2":     strings.TrimSpace(a.Complement + " " + a.District),
		"shippingCity":         a.City,
		"shippingProvince":     a.State,
		"shippingZip":          a.PostalCode,
		"shippingCountryCode":  a.Country,
		"products":             products,
	}

	var data supplier.Record
	if err := c.do(ctx, http.MethodPost, pathCreateOrder, nil, body, &data); err != nil {
		return nil, err
	}
	id := supplier.ParseOrderID(data)
	if id == "" {
		return nil, fmt.Errorf("%w: order response carries no order id", supplier.ErrSupplierInvalidResponse)
	}
	return &supplier.CreateOrderResult{SupplierOrderID: id}, nil
}

// parseStockData accepts either a bare list or an object wrapping one
func parseStockData(raw json.RawMessage) []supplier.StockLevel {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []supplier.StockLevel{}
	}
	if trimmed[0] == '[' {
		var list []any
		if err := decodeJSON(trimmed, &list); err != nil {
			return []supplier.StockLevel{}
		}
		return supplier.ParseStockLevels(supplier.Record{"list": list})
	}
	var obj supplier.Record
	if err := decodeJSON(trimmed, &obj); err != nil {
		return []supplier.StockLevel{}
	}
	return supplier.ParseStockLevels(obj)
}

// do performs one API call and decodes the envelope's data into out
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c.baseURL == "" {
		return supplier.ErrSupplierNotConfigured
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("supplier: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("supplier: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set(AccessTokenHeader, c.accessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", supplier.ErrSupplierUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: %v", supplier.ErrSupplierUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: %v", supplier.ErrSupplierUnavailable, err)
	}

	c.logger.Debug("supplier request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", supplier.ErrSupplierInvalidResponse, err)
	}
	if !env.Result && env.Code != http.StatusOK {
		return envelopeError(env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = env.Data
		return nil
	}
	if bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return nil
	}
	if err := decodeJSON(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", supplier.ErrSupplierInvalidResponse, err)
	}
	return nil
}

// decodeJSON keeps numbers as json.Number so long supplier ids survive intact
func decodeJSON(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", supplier.ErrSupplierAuthFailed, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", supplier.ErrSupplierRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", supplier.ErrSupplierUnavailable, status)
	case status >= 400:
		return fmt.Errorf("%w: HTTP %d", supplier.ErrSupplierRequestFailed, status)
	}
	return nil
}

// envelopeError maps a business-level failure reported inside a 200 response
func envelopeError(env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = "code " + strconv.Itoa(env.Code)
	}
	switch {
	case env.Code == http.StatusUnauthorized || env.Code == 1600001:
		return fmt.Errorf("%w: %s", supplier.ErrSupplierAuthFailed, msg)
	case env.Code == http.StatusTooManyRequests || env.Code == 1600200:
		return fmt.Errorf("%w: %s", supplier.ErrSupplierRateLimited, msg)
	}
	return fmt.Errorf("%w: %s", supplier.ErrSupplierRequestFailed, msg)
}

// IsRetryable reports whether a supplier error is transient
func IsRetryable(err error) bool {
	return errors.Is(err, supplier.ErrSupplierUnavailable) || errors.Is(err, supplier.ErrSupplierRateLimited)
}

var _ supplier.Client = (*HTTPClient)(nil)
