package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration, loaded from PEPPER_* environment
// variables. Process configuration beyond these knobs (TLS termination,
// rate limits) belongs to the surrounding deployment.
type Config struct {
	// ClientID is the Azure AD application (client) id.
	ClientID string `env:"PEPPER_CLIENT_ID"`

	// TenantID is the Azure AD tenant id.
	TenantID string `env:"PEPPER_TENANT_ID"`

	// ClientSecret authenticates the client at the token endpoint.
	// Optional for public clients relying on PKCE alone.
	ClientSecret string `env:"PEPPER_CLIENT_SECRET"`

	// RedirectURI is the callback URL registered with the application.
	RedirectURI string `env:"PEPPER_REDIRECT_URI" envDefault:"http://localhost:8000/auth/callback"`

	// Scopes are the Microsoft Graph scopes requested at login.
	Scopes []string `env:"PEPPER_SCOPES" envSeparator:"," envDefault:"User.Read,Mail.ReadWrite,Mail.Send,Calendars.ReadWrite,MailboxSettings.Read"`

	// SecretKey is the secret the credential encryption key is derived from.
	SecretKey string `env:"PEPPER_SECRET_KEY"`

	// ListenAddr is the address the auth HTTP server binds to.
	ListenAddr string `env:"PEPPER_LISTEN_ADDR" envDefault:":8000"`

	// MetricsAddr is the address the Prometheus metrics server binds to.
	MetricsAddr string `env:"PEPPER_METRICS_ADDR" envDefault:":9090"`

	// StateTTL is how long a pending login may wait for its callback.
	StateTTL time.Duration `env:"PEPPER_STATE_TTL" envDefault:"10m"`

	// StateCapacity bounds the number of pending logins held at once.
	StateCapacity int `env:"PEPPER_STATE_CAPACITY" envDefault:"10000"`

	// HTTPTimeout bounds calls to the identity provider's token endpoint.
	HTTPTimeout time.Duration `env:"PEPPER_HTTP_TIMEOUT" envDefault:"30s"`

	// Debug enables debug-level logging.
	Debug bool `env:"PEPPER_DEBUG" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// MissingVars returns the names of required environment variables that are
// not set. Surfaced by the health endpoint and by startup validation.
func (c *Config) MissingVars() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "PEPPER_CLIENT_ID")
	}
	if c.TenantID == "" {
		missing = append(missing, "PEPPER_TENANT_ID")
	}
	if c.SecretKey == "" {
		missing = append(missing, "PEPPER_SECRET_KEY")
	}
	return missing
}

// Validate reports missing required settings as a single error.
func (c *Config) Validate() error {
	if missing := c.MissingVars(); len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
