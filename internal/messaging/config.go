package messaging

import (
	"fmt"
	"os"
	"time"
)

// Variant selects which gateway transport implementation a deployment uses.
type Variant string

const (
	// VariantCloud is the multi-tenant cloud gateway (one instance name
	// per barbershop, bare-MSISDN addressing).
	VariantCloud Variant = "cloud"

	// VariantSession is the self-hosted session gateway (chat-ID
	// addressing with a simulated typing delay before each send).
	VariantSession Variant = "session"
)

// Config holds gateway configuration read from the environment at process
// start. Missing required values are a fatal misconfiguration, reported once
// at startup and never retried per send.
type Config struct {
	// Variant selects the gateway transport implementation.
	Variant Variant

	// BaseURL is the gateway API base URL (required).
	BaseURL string

	// APIKey is the gateway API credential (required).
	APIKey string

	// DefaultSession is the shared default session/instance name used when
	// a barbershop has no dedicated session (required).
	DefaultSession string

	// CountryCode is prefixed to national phone numbers. Default: 55
	CountryCode string

	// MinMessageDelay and MaxMessageDelay bound the randomized pause
	// between batch sends. Defaults: 5s and 15s.
	MinMessageDelay time.Duration
	MaxMessageDelay time.Duration
}

// ConfigFromEnv creates a Config from environment variables, validating that
// all required values are present.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Variant:         Variant(getEnvOrDefault("WHATSAPP_VARIANT", string(VariantCloud))),
		BaseURL:         os.Getenv("WHATSAPP_GATEWAY_URL"),
		APIKey:          os.Getenv("WHATSAPP_API_KEY"),
		DefaultSession:  os.Getenv("WHATSAPP_DEFAULT_SESSION"),
		CountryCode:     getEnvOrDefault("WHATSAPP_COUNTRY_CODE", "55"),
		MinMessageDelay: getEnvDuration("WHATSAPP_MIN_MESSAGE_DELAY", 5*time.Second),
		MaxMessageDelay: getEnvDuration("WHATSAPP_MAX_MESSAGE_DELAY", 15*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for fatal misconfiguration.
func (c Config) Validate() error {
	if c.Variant != VariantCloud && c.Variant != VariantSession {
		return fmt.Errorf("invalid WHATSAPP_VARIANT %q (want %q or %q)", c.Variant, VariantCloud, VariantSession)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("WHATSAPP_GATEWAY_URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("WHATSAPP_API_KEY is required")
	}
	if c.DefaultSession == "" {
		return fmt.Errorf("WHATSAPP_DEFAULT_SESSION is required")
	}
	if c.MinMessageDelay <= 0 || c.MaxMessageDelay < c.MinMessageDelay {
		return fmt.Errorf("invalid message delay bounds: min=%s max=%s", c.MinMessageDelay, c.MaxMessageDelay)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
