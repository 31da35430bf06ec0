package config

import (
	"time"
)

// GatewayConfig contains request-dispatch and mesh-orchestration tuning.
type GatewayConfig struct {
	// MaxHops is the relationship traversal depth. The registry is a directed
	// graph and cycles are possible, so GET expansion is always one hop:
	// Sanitize clamps this value to 1 and the orchestrator does not read it.
	MaxHops int `env:"GATEWAY_MAX_HOPS" envDefault:"1"`

	// FanoutConcurrency bounds the number of relationships the mesh orchestrator
	// dispatches to backend logic modules concurrently for a single request.
	FanoutConcurrency int `env:"GATEWAY_FANOUT_CONCURRENCY" envDefault:"8"`

	// BackendTimeout bounds a single backend logic-module round trip.
	BackendTimeout time.Duration `env:"GATEWAY_BACKEND_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to gateway configuration values.
func (g *GatewayConfig) Sanitize() {
	if g.MaxHops != 1 {
		g.MaxHops = 1
	}
	if g.FanoutConcurrency < 1 {
		g.FanoutConcurrency = 1
	}
	if g.BackendTimeout < time.Second {
		g.BackendTimeout = time.Second
	}
}

// SpecCacheConfig contains OpenAPI spec cache configuration.
type SpecCacheConfig struct {
	// TTL is how long a fetched spec document is considered fresh.
	TTL time.Duration `env:"SPEC_CACHE_TTL" envDefault:"1h"`

	// FetchTimeout bounds a single spec document fetch.
	FetchTimeout time.Duration `env:"SPEC_CACHE_FETCH_TIMEOUT" envDefault:"10s"`

	// RedisAddr is parsed but not read: the spec cache's shared Redis tier
	// uses the client bootstrap connects from the REDIS_* settings.
	RedisAddr string `env:"SPEC_CACHE_REDIS_ADDR"`

	// DocsTokenURL, DocsClientID, and DocsClientSecret configure OAuth2
	// client-credentials for fetching protected docs endpoints. Empty
	// DocsTokenURL fetches specs unauthenticated.
	DocsTokenURL     string `env:"SPEC_DOCS_TOKEN_URL"`
	DocsClientID     string `env:"SPEC_DOCS_CLIENT_ID"`
	DocsClientSecret string `env:"SPEC_DOCS_CLIENT_SECRET"`
}

// Sanitize applies guardrails to spec cache configuration values.
func (s *SpecCacheConfig) Sanitize() {
	if s.TTL < time.Second {
		s.TTL = time.Minute
	}
	if s.FetchTimeout < time.Second {
		s.FetchTimeout = 10 * time.Second
	}
}

// RegistrySeedConfig controls bulk import of the service registry at startup.
type RegistrySeedConfig struct {
	// Path is the filesystem path to a seed document describing logic modules,
	// logic module models, and relationships to import: YAML when the file
	// ends in .yaml or .yml, JSON otherwise. Empty disables seeding.
	Path string `env:"REGISTRY_SEED_PATH"`

	// FailOnError aborts startup if the seed document is present but invalid.
	// When false, seed errors are logged and startup continues.
	FailOnError bool `env:"REGISTRY_SEED_FAIL_ON_ERROR" envDefault:"true"`
}

// Enabled reports whether a registry seed document has been configured.
func (r *RegistrySeedConfig) Enabled() bool {
	return r.Path != ""
}
