package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Token store backends.
const (
	TokenStoreMemory   = "memory"
	TokenStoreFile     = "file"
	TokenStoreRedis    = "redis"
	TokenStoreSQLite   = "sqlite"
	TokenStorePostgres = "postgres"
)

var tokenStores = []string{TokenStoreMemory, TokenStoreFile, TokenStoreRedis, TokenStoreSQLite, TokenStorePostgres}

// Config holds all configuration for the storefront client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development" yaml:"environment"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	// API
	APIBaseURL   string        `env:"STOREFRONT_API_BASE_URL" envDefault:"http://localhost:8000/api/v1" yaml:"api_base_url"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s" yaml:"http_timeout"`
	RateLimitRPS float64       `env:"API_RATE_LIMIT_RPS" envDefault:"10" yaml:"api_rate_limit_rps"`
	RateBurst    int           `env:"API_RATE_BURST" envDefault:"20" yaml:"api_rate_burst"`

	// Cart
	CartDebounce time.Duration `env:"CART_DEBOUNCE" envDefault:"750ms" yaml:"cart_debounce"`

	// Credentials
	TokenStore  string `env:"TOKEN_STORE" envDefault:"file" yaml:"token_store"`
	TokenFile   string `env:"TOKEN_FILE" yaml:"token_file"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379" yaml:"redis_addr"`
	RedisPass   string `env:"REDIS_PASSWORD" envDefault:"" yaml:"redis_password"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0" yaml:"redis_db"`
	SQLiteDSN   string `env:"SQLITE_DSN" envDefault:"storefront.sqlite" yaml:"sqlite_dsn"`
	PostgresDSN string `env:"POSTGRES_DSN" yaml:"postgres_dsn"`

	// Kafka analytics forwarding; disabled when KafkaTopic is empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:"," yaml:"kafka_brokers"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" yaml:"kafka_topic"`

	// Observability
	MetricsAddr    string  `env:"METRICS_ADDR" yaml:"metrics_addr"`
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false" yaml:"otel_enabled"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318" yaml:"otel_endpoint"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0" yaml:"otel_sample_rate"`

	// Payments
	PaymentCurrency      string `env:"PAYMENT_CURRENCY" envDefault:"INR" yaml:"payment_currency"`
	SandboxPaymentSecret string `env:"SANDBOX_PAYMENT_SECRET" yaml:"sandbox_payment_secret"`
}

// Load reads configuration from environment variables and, when path is
// non-empty, the YAML file at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithFile(cfg, path); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STOREFRONT_API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.CartDebounce < 0 {
		return fmt.Errorf("CART_DEBOUNCE must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("API_RATE_LIMIT_RPS must not be negative")
	}
	if !slices.Contains(tokenStores, c.TokenStore) {
		return fmt.Errorf("TOKEN_STORE must be one of %v, got %q", tokenStores, c.TokenStore)
	}
	if c.TokenStore == TokenStorePostgres && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when TOKEN_STORE=postgres")
	}
	if c.KafkaTopic != "" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_TOPIC is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// MockAPIConfig holds configuration for the development API server.
type MockAPIConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development" yaml:"environment"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	HTTPPort int           `env:"MOCKAPI_HTTP_PORT" envDefault:"8000" yaml:"http_port"`
	BasePath string        `env:"MOCKAPI_BASE_PATH" envDefault:"/api/v1" yaml:"base_path"`
	Latency  time.Duration `env:"MOCKAPI_LATENCY" envDefault:"0s" yaml:"latency"`

	JWTSecret            string        `env:"MOCKAPI_JWT_SECRET" envDefault:"dev-jwt-secret" yaml:"jwt_secret"`
	AccessTokenTTL       time.Duration `env:"MOCKAPI_ACCESS_TTL" envDefault:"15m" yaml:"access_ttl"`
	RefreshTokenTTL      time.Duration `env:"MOCKAPI_REFRESH_TTL" envDefault:"168h" yaml:"refresh_ttl"`
	SandboxPaymentSecret string        `env:"SANDBOX_PAYMENT_SECRET" envDefault:"sandbox-secret" yaml:"sandbox_payment_secret"`
	PaymentCurrency      string        `env:"PAYMENT_CURRENCY" envDefault:"INR" yaml:"payment_currency"`

	// Seed data
	SeedDemoData bool `env:"MOCKAPI_SEED" envDefault:"true" yaml:"seed"`

	CORSOrigins   []string `env:"MOCKAPI_CORS_ORIGINS" envDefault:"*" envSeparator:"," yaml:"cors_origins"`
	CatalogMaxAge int      `env:"MOCKAPI_CATALOG_MAX_AGE" envDefault:"60" yaml:"catalog_max_age"`
	PprofCIDRs    []string `env:"MOCKAPI_PPROF_CIDRS" envSeparator:"," yaml:"pprof_cidrs"`

	OTELEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false" yaml:"otel_enabled"`
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318" yaml:"otel_endpoint"`
}

// LoadMockAPI reads the development server configuration.
func LoadMockAPI(path string) (*MockAPIConfig, error) {
	cfg := &MockAPIConfig{}
	if err := pkgconfig.LoadWithFile(cfg, path); err != nil {
		return nil, fmt.Errorf("load mockapi config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("MOCKAPI_JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	if cfg.Latency < 0 {
		return nil, fmt.Errorf("MOCKAPI_LATENCY must not be negative")
	}
	return cfg, nil
}
