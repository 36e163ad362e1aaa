package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-voice/internal/vendure"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" usage:"API server listen address"`
	// DatabaseURL selects the PostgreSQL fallback catalog. When empty the
	// embedded fixture catalog is served.
	DatabaseURL       string        `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RefreshInterval   time.Duration `default:"0s" usage:"Live catalog refresh interval, zero disables periodic refresh" flag:"refresh-interval"`
	DynamicCategories bool          `default:"false" usage:"Match categories against live collection names" flag:"dynamic-categories"`
	Vendure           VendureConfig
	RateLimit         RateLimitConfig
	CORS              CORSConfig
	Graceful          GracefulConfig
}

// VendureConfig configures the live shop API client.
type VendureConfig struct {
	URL             string        `usage:"Shop API GraphQL endpoint"`
	ChannelToken    string        `usage:"Channel token sent as vendure-token" flag:"vendure-channel-token"`
	Timeout         time.Duration `default:"10s" usage:"Shop API request timeout"`
	Take            int           `default:"5"  usage:"Products fetched on refresh"`
	SearchTake      int           `default:"20" usage:"Products fetched per voice search" flag:"vendure-search-take"`
	CollectionsTake int           `default:"20" usage:"Collections fetched for category terms" flag:"vendure-collections-take"`
	Disabled        bool          `default:"false" usage:"Serve the fallback catalog only"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.RefreshInterval < 0:
		return errors.Errorf("refresh interval must not be negative, got %s", c.RefreshInterval)
	case c.Vendure.Take < 0 || c.Vendure.SearchTake < 0 || c.Vendure.CollectionsTake < 0:
		return errors.New("vendure take limits must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Vendure.URL == "" {
		c.Vendure.URL = vendure.DefaultURL
	}
}
