package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - services.go: Gateway, spec cache and registry seed configuration
type AppConfig struct {
	// IsDev records development mode: DEV=true, or NODE_ENV=development.
	// No gateway component changes its behavior on it.
	IsDev bool `env:"DEV" envDefault:"false"`

	// SecretsEncryptionKey is parsed from the environment; no gateway
	// component reads it and startup does not require it.
	SecretsEncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Cross-origin and host validation configuration
	CORS  CORSConfig
	Hosts HostConfig

	// Gateway request-dispatch and mesh-orchestration configuration
	Gateway GatewayConfig

	// Spec cache configuration
	SpecCache SpecCacheConfig

	// Registry seed configuration
	RegistrySeed RegistrySeedConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	// Sanitize HTTP server configuration
	c.HTTP.Sanitize()

	c.Gateway.Sanitize()
	c.SpecCache.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
