package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	handler := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/test", handler)
	r.POST("/test", handler)
	return r
}

func TestCORSWithConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://shop.example.com"}
	router := okRouter(CORSWithConfig(cfg))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", http.MethodGet, "https://shop.example.com", http.StatusOK, "https://shop.example.com"},
		{"unknown origin", http.MethodGet, "https://evil.example.com", http.StatusOK, ""},
		{"same origin", http.MethodGet, "", http.StatusOK, ""},
		{"preflight allowed", http.MethodOptions, "https://shop.example.com", http.StatusNoContent, "https://shop.example.com"},
		{"preflight unknown", http.MethodOptions, "https://evil.example.com", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Len(t, seen, 32)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "client-abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "client-abc", seen)

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, MaxRequestIDLength)
}

func TestSecure(t *testing.T) {
	w := httptest.NewRecorder()
	okRouter(Secure()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestBodyLimit(t *testing.T) {
	router := okRouter(BodyLimit(100))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader([]byte("small body"))))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(bytes.Repeat([]byte("x"), 200)))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodePayloadTooLarge)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(time.Hour)
	rl.Allow("c")
	rl.mu.Lock()
	_, kept := rl.clients["a"]
	rl.mu.Unlock()
	assert.False(t, kept)
}

func TestRateLimitMiddleware(t *testing.T) {
	router := okRouter(RateLimit(NewRateLimiter(1, 1)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
}

type checkoutPayload struct {
	Email   string `json:"email" binding:"required,email"`
	Country string `json:"country" binding:"required,len=2"`
	Items   []struct {
		Quantity int `json:"quantity" binding:"min=1"`
	} `json:"items" binding:"dive"`
}

func TestValidation(t *testing.T) {
	SetupValidator()

	r := gin.New()
	r.POST("/v", func(c *gin.Context) {
		var p checkoutPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantFields []string
	}{
		{"valid", `{"email":"a@b.com","country":"BR","items":[{"quantity":1}]}`, http.StatusOK, nil},
		{"bad country and email", `{"email":"nope","country":"BRA"}`, http.StatusBadRequest, []string{"email", "country"}},
		{"nested item", `{"email":"a@b.com","country":"BR","items":[{"quantity":0}]}`, http.StatusBadRequest, []string{"items[0].quantity"}},
		{"malformed json", `{"email":`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v", strings.NewReader(tt.body)))
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				return
			}

			var resp struct {
				Error struct {
					Code    string                 `json:"code"`
					Details []dto.ValidationDetail `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			fields := make([]string, 0, len(resp.Error.Details))
			for _, d := range resp.Error.Details {
				fields = append(fields, d.Field)
			}
			if tt.wantFields == nil {
				assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
				return
			}
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	router := okRouter(HTTPMetrics(provider.Meter("test")))
	for range 3 {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name == "http_server_request_total" {
				sum := m.Data.(metricdata.Sum[int64])
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(3), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["http_server_request_total"])
	assert.True(t, found["http_server_request_duration_seconds"])

	// no meter: pass-through
	w := httptest.NewRecorder()
	okRouter(HTTPMetrics(nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSpanErrorMarkerWithoutSpan(t *testing.T) {
	r := gin.New()
	r.Use(SpanErrorMarker(), TracingAttributes())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
