package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmesh/meshgate/config"
	httpx "github.com/openmesh/meshgate/internal/http"
)

// shutdownGrace bounds how long in-flight requests may run after a shutdown
// signal.
const shutdownGrace = 15 * time.Second

// requestBudget derives the overall per-request budget from the per-backend
// timeout: one primary call plus a fanned-out round of relationship calls.
func requestBudget(cfg *config.AppConfig) time.Duration {
	budget := 2 * cfg.Gateway.BackendTimeout
	if budget < time.Minute {
		budget = time.Minute
	}
	return budget
}

// RunServer builds the HTTP handler stack, serves it, and blocks until the
// process receives SIGINT/SIGTERM or the listener fails.
func RunServer(ctx context.Context, cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) error {
	var ready func(context.Context) error
	if services.DB != nil {
		ready = services.DB.PingContext
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Dispatcher:     services.Dispatcher,
		Orchestrator:   services.Orchestrator,
		Registry:       services.Registry,
		Joins:          services.Joins,
		Specs:          services.SpecCache,
		Verifier:       services.Verifier,
		AdminGroup:     cfg.Auth.AdminGroup,
		RequestTimeout: requestBudget(cfg),
		Ready:          ready,
		Logger:         logger,
	})

	// Order: Recover -> Logging -> AllowedHosts -> CORS -> Compression -> Router
	h := http.Handler(router)
	if cfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel})(h)
	}
	h = httpx.CORS(cfg.CORS)(h)
	h = httpx.AllowedHosts(cfg.Hosts)(h)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-signalCtx.Done():
	}

	logger.InfoContext(ctx, "shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
