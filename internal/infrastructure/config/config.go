package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Supplier    SupplierConfig
	Payment     PaymentConfig
	Stripe      StripeConfig
	RabbitMQ    RabbitMQConfig
	Scheduler   SchedulerConfig
	Fulfillment FulfillmentConfig
	Telemetry   TelemetryConfig
	Features    FeaturesConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	MigrateOnStart  bool // run the embedded postgres migrations at server startup
}

// RedisConfig holds Redis connection settings. With Enabled=false the
// in-memory idempotency store and order lock are used (single instance only).
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
	// RateLimitPerMinute is the per-client request budget; burst is the
	// bucket size
	RateLimitPerMinute int
	RateLimitBurst     int
}

// SupplierConfig holds dropshipping supplier API settings
type SupplierConfig struct {
	BaseURL         string
	AccessToken     string
	Timeout         time.Duration
	PacingInterval  time.Duration // fixed delay between successive list requests
	StockBatchSize  int
	MaxResponseSize int64
	DefaultPageSize int
}

// PaymentConfig holds payment orchestration settings
type PaymentConfig struct {
	Provider             string // offline or stripe
	Currency             string
	SuccessURL           string // may contain {ORDER_ID}
	CancelURL            string // may contain {ORDER_ID}
	OrderLockTTL         time.Duration
	WebhookIdempotentTTL time.Duration
	OfflineWebhookSecret string
	BoletoBaseURL        string
}

// StripeConfig holds Stripe API settings
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// RabbitMQConfig holds the fulfillment event publisher settings
type RabbitMQConfig struct {
	Enabled  bool
	URL      string
	Exchange string
	Queue    string
}

// SchedulerConfig holds the periodic stock reconciliation settings
type SchedulerConfig struct {
	StockSyncEnabled  bool
	StockSyncInterval time.Duration
	JobTimeout        time.Duration
}

// FulfillmentConfig holds supplier order submission settings
type FulfillmentConfig struct {
	Timeout          time.Duration
	DispatchOnCreate bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
	LogsEnabled       bool    // Export zap logs through the OTLP log bridge
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	// DegradedCatalog serves placeholder products built from an image
	// manifest when a product is missing from the database
	DegradedCatalog     bool
	PlaceholderManifest string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DROPSHIP_ prefix (e.g., DROPSHIP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("DROPSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// booleans that default to true can't be told apart from unset in applyDefaults
	v.SetDefault("fulfillment.dispatch_on_create", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			MigrateOnStart:  v.GetBool("database.migrate_on_start"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitPerMinute: v.GetInt("http.rate_limit_per_minute"),
			RateLimitBurst:     v.GetInt("http.rate_limit_burst"),
		},
		Supplier: SupplierConfig{
			BaseURL:         v.GetString("supplier.base_url"),
			AccessToken:     v.GetString("supplier.access_token"),
			Timeout:         v.GetDuration("supplier.timeout"),
			PacingInterval:  v.GetDuration("supplier.pacing_interval"),
			StockBatchSize:  v.GetInt("supplier.stock_batch_size"),
			MaxResponseSize: v.GetInt64("supplier.max_response_size"),
			DefaultPageSize: v.GetInt("supplier.default_page_size"),
		},
		Payment: PaymentConfig{
			Provider:             v.GetString("payment.provider"),
			Currency:             v.GetString("payment.currency"),
			SuccessURL:           v.GetString("payment.success_url"),
			CancelURL:            v.GetString("payment.cancel_url"),
			OrderLockTTL:         v.GetDuration("payment.order_lock_ttl"),
			WebhookIdempotentTTL: v.GetDuration("payment.webhook_idempotent_ttl"),
			OfflineWebhookSecret: v.GetString("payment.offline_webhook_secret"),
			BoletoBaseURL:        v.GetString("payment.boleto_base_url"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  v.GetBool("rabbitmq.enabled"),
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
			Queue:    v.GetString("rabbitmq.queue"),
		},
		Scheduler: SchedulerConfig{
			StockSyncEnabled:  v.GetBool("scheduler.stock_sync_enabled"),
			StockSyncInterval: v.GetDuration("scheduler.stock_sync_interval"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
		},
		Fulfillment: FulfillmentConfig{
			Timeout:          v.GetDuration("fulfillment.timeout"),
			DispatchOnCreate: v.GetBool("fulfillment.dispatch_on_create"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
		Features: FeaturesConfig{
			DegradedCatalog:     v.GetBool("features.degraded_catalog"),
			PlaceholderManifest: v.GetString("features.placeholder_manifest"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dropship-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "dropship"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "dropship.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second // catalog sync runs inline
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitPerMinute == 0 {
		cfg.HTTP.RateLimitPerMinute = 120
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 30
	}
	if cfg.Supplier.Timeout == 0 {
		cfg.Supplier.Timeout = 15 * time.Second
	}
	if cfg.Supplier.PacingInterval == 0 {
		cfg.Supplier.PacingInterval = 1200 * time.Millisecond
	}
	if cfg.Supplier.StockBatchSize == 0 {
		cfg.Supplier.StockBatchSize = 50
	}
	if cfg.Supplier.MaxResponseSize == 0 {
		cfg.Supplier.MaxResponseSize = 10 << 20 // 10MB
	}
	if cfg.Supplier.DefaultPageSize == 0 {
		cfg.Supplier.DefaultPageSize = 20
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "offline"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "BRL"
	}
	if cfg.Payment.SuccessURL == "" {
		cfg.Payment.SuccessURL = "http://localhost:3000/pedido/{ORDER_ID}/sucesso"
	}
	if cfg.Payment.CancelURL == "" {
		cfg.Payment.CancelURL = "http://localhost:3000/pedido/{ORDER_ID}/cancelado"
	}
	if cfg.Payment.OrderLockTTL == 0 {
		cfg.Payment.OrderLockTTL = 30 * time.Second
	}
	if cfg.Payment.WebhookIdempotentTTL == 0 {
		cfg.Payment.WebhookIdempotentTTL = 72 * time.Hour
	}
	if cfg.Payment.BoletoBaseURL == "" {
		cfg.Payment.BoletoBaseURL = "http://localhost:8080/boletos"
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "dropship.orders"
	}
	if cfg.RabbitMQ.Queue == "" {
		cfg.RabbitMQ.Queue = "fulfillment"
	}
	if cfg.Scheduler.StockSyncInterval == 0 {
		cfg.Scheduler.StockSyncInterval = 30 * time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Fulfillment.Timeout == 0 {
		cfg.Fulfillment.Timeout = 20 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "dropship-backend"
	}
	if cfg.Features.PlaceholderManifest == "" {
		cfg.Features.PlaceholderManifest = "assets/placeholder_manifest.json"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.HTTP.RateLimitPerMinute < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("http.rate_limit_per_minute and http.rate_limit_burst cannot be negative")
	}
	if c.Supplier.StockBatchSize < 1 {
		return fmt.Errorf("supplier.stock_batch_size must be positive")
	}

	switch c.Payment.Provider {
	case "offline":
	case "stripe":
		if !strings.HasPrefix(c.Stripe.SecretKey, "sk_test_") && !strings.HasPrefix(c.Stripe.SecretKey, "sk_live_") {
			return fmt.Errorf("stripe.secret_key must start with sk_test_ or sk_live_")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("stripe.webhook_secret is required when payment.provider is stripe")
		}
	default:
		return fmt.Errorf("payment.provider must be offline or stripe, got %q", c.Payment.Provider)
	}

	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq.url is required when rabbitmq is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Payment.Provider == "offline" {
			return fmt.Errorf("payment.provider offline is not allowed in production")
		}
		if !c.Redis.Enabled {
			return fmt.Errorf("redis must be enabled in production (webhook idempotency and order locks)")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// SimulatedPayments reports whether direct card, pix and boleto charges may
// go to the offline simulator. Only the offline provider outside production
// qualifies; otherwise direct charges are refused.
func (c *Config) SimulatedPayments() bool {
	return c.Payment.Provider == "offline" && !c.IsProduction()
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
