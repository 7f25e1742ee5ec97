package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	pkgconfig "github.com/AlejandroAndrade98/embipos/pkg/config"
)

// Infra holds settings shared with the rest of the deployment.
type Infra struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL, used only when the ledger backend is postgres.
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"embipos"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"embipos"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"embipos"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"2"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker around the remote POS API
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128,10.0.0.0/8,192.168.0.0/16" envSeparator:","`

	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Terminal holds the service's own settings, read with the POS_ prefix.
type Terminal struct {
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"http://localhost:4000"`
	APITimeout    time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	APIMaxRetries int           `env:"API_MAX_RETRIES" envDefault:"2"`

	PaymentMethods []string `env:"PAYMENT_METHODS" envDefault:"cash,card,transfer,nequi" envSeparator:","`
	StockPolicy    string   `env:"STOCK_POLICY" envDefault:"none"`

	Timezone           string `env:"TIMEZONE" envDefault:"America/Bogota"`
	ReportMaxRangeDays int    `env:"REPORT_MAX_RANGE_DAYS" envDefault:"92"`

	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	CartIdleTTL time.Duration `env:"CART_IDLE_TTL" envDefault:"12h"`
	SKUCacheTTL time.Duration `env:"SKU_CACHE_TTL" envDefault:"30s"`

	// LedgerBackend selects where checkout attempts are recorded.
	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"memory"`

	EventsEnabled bool   `env:"EVENTS_ENABLED" envDefault:"true"`
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"embipos-terminal"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	LoginRateLimitRPS   float64 `env:"LOGIN_RATE_LIMIT_RPS" envDefault:"1"`
	LoginRateLimitBurst int     `env:"LOGIN_RATE_LIMIT_BURST" envDefault:"5"`
}

// Config is the full service configuration.
type Config struct {
	Infra
	Terminal
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(&cfg.Infra); err != nil {
		return nil, fmt.Errorf("load infra config: %w", err)
	}
	if err := pkgconfig.LoadWithPrefix(&cfg.Terminal, "POS_"); err != nil {
		return nil, fmt.Errorf("load terminal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.ParseRequestURI(c.APIBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid POS_API_BASE_URL %q", c.APIBaseURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("POS_API_TIMEOUT must be positive")
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("POS_API_MAX_RETRIES must not be negative")
	}
	if len(c.PaymentMethods) == 0 {
		return fmt.Errorf("POS_PAYMENT_METHODS is required")
	}
	if !slices.Contains([]string{"none", "warn", "reject"}, c.StockPolicy) {
		return fmt.Errorf("POS_STOCK_POLICY must be one of none, warn, reject, got %q", c.StockPolicy)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid POS_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.ReportMaxRangeDays < 1 {
		return fmt.Errorf("POS_REPORT_MAX_RANGE_DAYS must be at least 1")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("POS_SESSION_TTL must be positive")
	}
	if !slices.Contains([]string{"memory", "postgres"}, c.LedgerBackend) {
		return fmt.Errorf("POS_LEDGER_BACKEND must be memory or postgres, got %q", c.LedgerBackend)
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when events are enabled")
	}
	if c.LoginRateLimitRPS < 0 {
		return fmt.Errorf("POS_LOGIN_RATE_LIMIT_RPS must not be negative")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Location returns the configured business timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// APIBase returns the remote API base URL without a trailing slash.
func (c *Config) APIBase() string {
	return strings.TrimRight(c.APIBaseURL, "/")
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
