package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "oauth")
	t.Setenv("ADMIN_GROUP", "cn=admins,ou=groups,dc=example,dc=org")
	t.Setenv("USER_GROUP", "cn=users,ou=groups,dc=example,dc=org")
	t.Setenv("OAUTH_CLIENT_ID", "app-client")
	t.Setenv("OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("OAUTH_REDIRECT_URL", "https://app.example.com/auth/callback")
	t.Setenv("OAUTH_DISCOVERY_URL", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("OAUTH_SCOPE", "openid profile email")
	t.Setenv("DEV_AUTH_USER_ID", "dev-user")
	t.Setenv("DEV_AUTH_EMAIL", "dev@example.com")
	t.Setenv("DEV_AUTH_GROUPS", "admins;devs")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode: AuthModeOAuth,
		OAuth: OAuthConfig{
			ClientID:     "app-client",
			ClientSecret: "super-secret",
			RedirectURL:  "https://app.example.com/auth/callback",
			Scope:        "openid profile email",
			DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
		},
		DevAuth: DevAuthConfig{
			UserID: "dev-user",
			Email:  "dev@example.com",
			Groups: []string{"admins", "devs"},
		},
		AdminGroup: "cn=admins,ou=groups,dc=example,dc=org",
		UserGroup:  "cn=users,ou=groups,dc=example,dc=org",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestGatewayConfig_Sanitize(t *testing.T) {
	cfg := GatewayConfig{MaxHops: 0, FanoutConcurrency: -1, BackendTimeout: 0}
	cfg.Sanitize()

	if cfg.MaxHops != 1 {
		t.Fatalf("expected MaxHops clamped to 1, got %d", cfg.MaxHops)
	}
	if cfg.FanoutConcurrency != 1 {
		t.Fatalf("expected FanoutConcurrency clamped to 1, got %d", cfg.FanoutConcurrency)
	}
	if cfg.BackendTimeout != time.Second {
		t.Fatalf("expected BackendTimeout clamped to 1s, got %v", cfg.BackendTimeout)
	}
}

func TestSpecCacheConfig_Sanitize(t *testing.T) {
	cfg := SpecCacheConfig{TTL: 0, FetchTimeout: 0}
	cfg.Sanitize()

	if cfg.TTL != time.Minute {
		t.Fatalf("expected TTL to fall back to 1m, got %v", cfg.TTL)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Fatalf("expected FetchTimeout to fall back to 10s, got %v", cfg.FetchTimeout)
	}
}

func TestRegistrySeedConfig_Enabled(t *testing.T) {
	cfg := RegistrySeedConfig{}
	if cfg.Enabled() {
		t.Fatalf("expected seeding disabled without a path")
	}
	cfg.Path = "/etc/gateway/registry-seed.json"
	if !cfg.Enabled() {
		t.Fatalf("expected seeding enabled once a path is set")
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "meshgate" {
		t.Fatalf("expected metric prefix default, got %q", cfg.Prefix)
	}
}
