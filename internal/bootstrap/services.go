package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/openmesh/meshgate/config"
	"github.com/openmesh/meshgate/internal/adapters/authctx"
	redisadapter "github.com/openmesh/meshgate/internal/adapters/redis"
	"github.com/openmesh/meshgate/internal/adapters/speccache"
	"github.com/openmesh/meshgate/internal/adapters/swaggerclient"
	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/data/postgres"
	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/observability/statsd"
	"github.com/openmesh/meshgate/internal/ports"
	"github.com/openmesh/meshgate/internal/service"
)

// ServiceContainer holds the gateway's wired service graph.
type ServiceContainer struct {
	Registry     *service.RegistryService
	Joins        *service.JoinService
	Dispatcher   *service.Dispatcher
	Orchestrator *service.Orchestrator
	SpecCache    *speccache.Cache
	Locals       *service.LocalRegistry
	Verifier     ports.TokenVerifier
	// DB backs the readiness probe.
	DB *sql.DB
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters, and the orchestration layer.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := service.NewRegistryService(service.RegistryServiceOptions{
		Modules: postgres.NewLogicModuleRepo(deps.DB),
		Models:  postgres.NewLogicModuleModelRepo(deps.DB),
		Rels:    postgres.NewRelationshipRepo(deps.DB),
	})
	joins := service.NewJoinService(postgres.NewJoinRecordRepo(deps.DB))

	var kv speccache.KV
	if deps.RedisClient != nil {
		kv = redisadapter.NewStore(deps.RedisClient, "speccache:")
	}
	clock := &data.RealTimeProvider{}
	specCache := speccache.New(speccache.Options{
		HTTPClient:   specFetchClient(ctx, cfg.SpecCache),
		TTL:          cfg.SpecCache.TTL,
		FetchTimeout: cfg.SpecCache.FetchTimeout,
		KV:           kv,
		Logger:       logger,
		Now:          clock.Now,
	})

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  cfg.Observability.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("connect statsd sink: %w", err)
	}

	locals := service.NewLocalRegistry()
	router := &service.BackendRouter{
		Registry: registry,
		Specs:    specCache,
		Backend: swaggerclient.New(swaggerclient.Options{
			Timeout: cfg.Gateway.BackendTimeout,
			Logger:  logger,
		}),
		Locals: locals,
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return ServiceContainer{}, err
	}

	services := ServiceContainer{
		Registry:   registry,
		Joins:      joins,
		Dispatcher: service.NewDispatcher(router, logger),
		Orchestrator: service.NewOrchestrator(service.OrchestratorOptions{
			Registry:    registry,
			Joins:       joins,
			Router:      router,
			Concurrency: cfg.Gateway.FanoutConcurrency,
			Logger:      logger,
			Metrics:     metrics,
		}),
		SpecCache: specCache,
		Locals:    locals,
		Verifier:  verifier,
		DB:        deps.DB,
	}

	if cfg.RegistrySeed.Enabled() {
		seeder := &service.Seeder{Registry: registry, Joins: joins, Logger: logger}
		if err := seeder.SeedFromFile(ctx, cfg.RegistrySeed.Path); err != nil {
			if cfg.RegistrySeed.FailOnError {
				return ServiceContainer{}, fmt.Errorf("apply registry seed: %w", err)
			}
			logger.ErrorContext(ctx, "registry seed failed, continuing", "error", err)
		}
	}

	return services, nil
}

// specFetchClient builds the HTTP client the spec cache fetches docs with.
// When a token URL is configured, fetches authenticate via OAuth2 client
// credentials; the token source caches and refreshes tokens transparently.
func specFetchClient(ctx context.Context, cfg config.SpecCacheConfig) *http.Client {
	if cfg.DocsTokenURL == "" {
		return &http.Client{}
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.DocsClientID,
		ClientSecret: cfg.DocsClientSecret,
		TokenURL:     cfg.DocsTokenURL,
	}
	return cc.Client(ctx)
}

// newVerifier selects the bearer-token verifier for the configured auth
// mode.
//
//nolint:ireturn // the auth mode decides the concrete verifier at runtime.
func newVerifier(ctx context.Context, cfg *config.AppConfig) (ports.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return authctx.NewMockVerifier(domainauth.Context{
			Subject: cfg.Auth.DevAuth.UserID,
			Groups:  cfg.Auth.DevAuth.Groups,
		}), nil
	default:
		v, err := authctx.NewOIDCVerifier(ctx, authctx.OIDCVerifierConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build oidc verifier: %w", err)
		}
		return v, nil
	}
}
