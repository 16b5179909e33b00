package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis (rate limiting + event fan-out)
	RedisURL string `env:"REDIS_URL,required"`

	// JWT
	JWTSecret           string `env:"JWT_SECRET,required"`
	JWTIssuer           string `env:"JWT_ISSUER" envDefault:"taskdeck-api"`
	JWTAudience         string `env:"JWT_AUDIENCE" envDefault:"taskdeck-web"`
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`

	// OpenTelemetry
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"taskdeck-api"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`

	// Server
	Port     string `env:"PORT" envDefault:"3002"`
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Rate limiting
	RateLimitPerUserPerMin int `env:"RATE_LIMIT_PER_USER_PER_MIN" envDefault:"120"`

	// Prometheus scrape endpoint; open when empty, token-gated when set
	MetricsToken string `env:"METRICS_TOKEN"`
}

// LoadConfig reads and validates configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs the checks env tags cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	if c.JWTClockSkewSeconds < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW_SECONDS must be non-negative")
	}

	if c.JWTAccessTTLMinutes <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL_MINUTES must be positive")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	if c.RateLimitPerUserPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_USER_PER_MIN must be positive")
	}

	switch c.AppEnv {
	case "dev", "staging", "production":
	default:
		return fmt.Errorf("APP_ENV must be one of dev, staging, production")
	}

	return nil
}

// TelemetryEnabled reports whether the OTLP exporters should be started.
func (c *Config) TelemetryEnabled() bool {
	return c.OTELEnabled && c.OTELExporterEndpoint != ""
}

// ClockSkew returns the JWT validation leeway as a duration.
func (c *Config) ClockSkew() time.Duration {
	return time.Duration(c.JWTClockSkewSeconds) * time.Second
}

// AccessTTL returns the access token lifetime as a duration.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}
