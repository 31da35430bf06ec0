package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://app.example.com").
	// It is parsed from the environment; no gateway component reads it.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is parsed from the environment; the gateway sets no
	// cookies and no component reads it.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CompressionEnabled enables gzip compression for text-based assets.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	// Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	// Clamp compression level to valid gzip range (1-9)
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}
}

// CORSConfig controls cross-origin access to the gateway.
type CORSConfig struct {
	// AllowAll opens the gateway to any origin. Development only.
	AllowAll bool `env:"CORS_ORIGIN_ALLOW_ALL" envDefault:"false"`

	// Whitelist is the set of origins allowed when AllowAll is false.
	Whitelist []string `env:"CORS_ORIGIN_WHITELIST" envSeparator:";"`
}

// HostConfig controls Host-header validation and transport hardening.
type HostConfig struct {
	// AllowedHosts restricts which Host headers the gateway serves. Empty
	// allows any host.
	AllowedHosts []string `env:"ALLOWED_HOSTS" envSeparator:";"`

	// SecureSSLRedirect redirects plain HTTP requests to HTTPS.
	SecureSSLRedirect bool `env:"SECURE_SSL_REDIRECT" envDefault:"false"`

	// SecureHSTSSeconds sets the Strict-Transport-Security max-age. Zero
	// disables the header.
	SecureHSTSSeconds int `env:"SECURE_HSTS_SECONDS" envDefault:"0"`
}
