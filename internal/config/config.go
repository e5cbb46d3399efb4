package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Prefix is prepended to every environment variable name.
const Prefix = "scenelog"

// Config represents the application configuration structure
type Config struct {
	SupabaseURL   string        `envconfig:"SUPABASE_URL"`
	AnonKey       string        `envconfig:"ANON_KEY" required:"true"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RefreshLeeway time.Duration `envconfig:"REFRESH_LEEWAY" default:"60s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"console"`
	LogFile       string        `envconfig:"LOG_FILE"`
	DefaultEmail  string        `envconfig:"DEFAULT_EMAIL"`
}

// Load reads SCENELOG_* variables, falling back to a .env file in the working
// directory. apiURL, when set, takes the place of SUPABASE_URL.
func Load(apiURL string) (*Config, error) {
	// Variables already set in the environment win over the .env file
	_ = godotenv.Load()

	cfg := new(Config)
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if apiURL != "" {
		cfg.SupabaseURL = apiURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.SupabaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SUPABASE_URL %q is not an http(s) URL", c.SupabaseURL)
	}
	if c.AnonKey == "" {
		return fmt.Errorf("ANON_KEY is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.RefreshLeeway < 0 {
		return fmt.Errorf("REFRESH_LEEWAY must not be negative, got %s", c.RefreshLeeway)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
