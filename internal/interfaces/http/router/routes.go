package router

import (
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/interfaces/http/handler"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	Health  *handler.HealthHandler
	Catalog *handler.CatalogHandler
	Order   *handler.OrderHandler
	Webhook *handler.WebhookHandler
}

// EngineConfig controls the global middleware chain
type EngineConfig struct {
	ServiceName    string
	Logger         *zap.Logger
	Meter          metric.Meter // nil disables HTTP metrics
	CORS           middleware.CORSConfig
	TrustedProxies []string
	MaxBodySize    int64
	// RateLimiter applies to /api routes; nil disables rate limiting
	RateLimiter *middleware.RateLimiter
}

// NewEngine builds the gin engine with the global middleware chain and every
// route mounted. Webhooks and health probes are not rate limited.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(cfg.ServiceName),
		middleware.TracingAttributes(),
		// after tracing so request logs carry the trace id
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SpanErrorMarker(),
	)
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter))
	}
	engine.Use(
		middleware.CORSWithConfig(cfg.CORS),
		middleware.Secure(),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/health", h.Health.Live)
	engine.GET("/health/ready", h.Health.Ready)

	engine.POST("/webhooks/payments/:provider", h.Webhook.Payment)

	r := NewRouter(engine)
	r.Register(apiRoutes(cfg, h))
	r.Setup()

	return engine, nil
}

func apiRoutes(cfg EngineConfig, h Handlers) *DomainGroup {
	api := NewDomainGroup("api", "")
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	api.Group("catalog", "/products").
		GET("", h.Catalog.List).
		POST("/stock/refresh", h.Catalog.RefreshStock).
		GET("/:id", h.Catalog.Get)

	api.Group("orders", "/orders").
		POST("", h.Order.Create).
		GET("/:id", h.Order.Get).
		POST("/:id/payments", h.Order.SubmitPayment).
		GET("/:id/payment-status", h.Order.PaymentStatus).
		POST("/:id/ship", h.Order.Ship).
		POST("/:id/deliver", h.Order.Deliver).
		POST("/:id/cancel", h.Order.Cancel)

	api.Group("admin", "/admin").
		POST("/catalog/sync", h.Catalog.Sync)

	return api
}
