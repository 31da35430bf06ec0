package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmesh/meshgate/internal/ports"
	"github.com/openmesh/meshgate/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Dispatcher   *service.Dispatcher
	Orchestrator *service.Orchestrator
	Registry     *service.RegistryService
	Joins        *service.JoinService
	Specs        SpecInvalidator
	Verifier     ports.TokenVerifier

	// AdminGroup gates the /admin registry surface; empty leaves it open to
	// any authenticated caller.
	AdminGroup string
	// RequestTimeout is the overall per-request budget for gateway traffic.
	RequestTimeout time.Duration
	// Ready backs the readiness probe; nil reports always ready.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter wires the gateway surface: health endpoints (unauthenticated),
// the admin registry API, and the catch-all logic-module dispatch route.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	health := &HealthHandlers{Ready: services.Ready}
	mux.Handle("GET /healthz", http.HandlerFunc(health.Live))
	mux.Handle("HEAD /healthz", http.HandlerFunc(health.Live))
	mux.Handle("GET /readyz", http.HandlerFunc(health.Readyz))

	authMW := Auth(services.Verifier)
	adminGate := func(next http.Handler) http.Handler {
		return authMW(RequireGroup(services.AdminGroup)(next))
	}
	registerAdminRoutes(mux, &AdminHandlers{
		Registry: services.Registry,
		Joins:    services.Joins,
		Specs:    services.Specs,
	}, adminGate)

	gateway := &GatewayHandler{
		Dispatcher:     services.Dispatcher,
		Orchestrator:   services.Orchestrator,
		RequestTimeout: services.RequestTimeout,
		Logger:         services.Logger,
	}
	mux.Handle("/", authMW(gateway))

	return mux
}
