package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/labtrack/lims/internal/adapters/auth"
	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/api/handlers"
	"github.com/labtrack/lims/internal/api/routes"
	"github.com/labtrack/lims/internal/bootstrap"
	"github.com/labtrack/lims/internal/domain/catalog"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	"github.com/labtrack/lims/pkg/config"
)

const demoPassword = "demo-password"

func main() {
	if err := run(); err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	cat, err := catalog.FromPath(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	infra, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing backends")
		}
	}()

	if infra.Memory != nil {
		hash, err := auth.HashPassword(demoPassword)
		if err != nil {
			return err
		}
		infra.Memory.Load(memory.DemoFixtures(hash))
		logger.Warn().Msg("in-memory store loaded with demo fixtures; data is lost on restart")
	}

	svc, err := bootstrap.NewServices(infra, cat, cfg.Auth, metrics)
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.Handlers{
		Auth:     handlers.NewAuthHandler(svc.Auth),
		Patients: handlers.NewPatientHandler(svc.Patients),
		Results:  handlers.NewResultHandler(svc.Results),
		Billing:  handlers.NewBillingHandler(svc.Billing),
		Audit:    handlers.NewAuditHandler(svc.Audit),
		Users:    handlers.NewUserHandler(svc.Users),
		Catalog:  handlers.NewCatalogHandler(cat),
	}, svc.Auth, svc.Billing, cfg.Server.AllowedOrigins, metrics)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: the audit stream is long-lived
		IdleTimeout: 120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Store.Backend).
			Str("event_bus", cfg.Store.EventBus).
			Bool("search_index", infra.Search != nil).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server exited")
	return nil
}
