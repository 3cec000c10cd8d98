// Package bootstrap assembles the store, event bus, search index and services
// from configuration. Both the API server and labctl build on it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labtrack/lims/internal/adapters/auth"
	"github.com/labtrack/lims/internal/adapters/cache"
	"github.com/labtrack/lims/internal/adapters/database"
	"github.com/labtrack/lims/internal/adapters/events"
	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/adapters/search"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/catalog"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	redisclient "github.com/labtrack/lims/internal/infrastructure/clients/redis"
	tsclient "github.com/labtrack/lims/internal/infrastructure/clients/typesense"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	"github.com/labtrack/lims/pkg/config"
)

// Repositories is one persistence backend
type Repositories struct {
	Patients  repositories.PatientRepository
	Results   repositories.TestResultRepository
	Billing   repositories.BillingRepository
	AuditLogs repositories.AuditLogRepository
	Users     repositories.UserRepository

	// Memory is set when the in-process store backs the repositories
	Memory *memory.Store
}

// MemoryRepositories wraps an in-process store
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Patients:  store.Patients(),
		Results:   store.TestResults(),
		Billing:   store.Billing(),
		AuditLogs: store.AuditLogs(),
		Users:     store.Users(),
		Memory:    store,
	}
}

// PostgresRepositories wraps the goqu adapters over client
func PostgresRepositories(client *postgres.Client) Repositories {
	return Repositories{
		Patients:  database.NewPatientAdapter(client),
		Results:   database.NewTestResultAdapter(client),
		Billing:   database.NewBillingAdapter(client),
		AuditLogs: database.NewAuditLogAdapter(client),
		Users:     database.NewUserAdapter(client),
	}
}

// Infrastructure holds every opened backend. Close releases them.
type Infrastructure struct {
	Repositories

	Postgres *postgres.Client
	Redis    *redisclient.Client
	Bus      providers.EventBus
	Cache    providers.CacheProvider
	// Search is nil when no search index is configured or reachable
	Search providers.PatientSearchProvider

	closers []func() error
}

// Open connects the backends cfg selects. Typesense is optional: if it cannot be
// reached the service runs with repository search.
func Open(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	logger := observability.GetLogger()
	infra := &Infrastructure{}

	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		pg, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		infra.Postgres = pg
		infra.closers = append(infra.closers, pg.Close)
		infra.Repositories = PostgresRepositories(pg)
	default:
		infra.Repositories = MemoryRepositories(memory.NewStore())
	}

	switch cfg.Store.EventBus {
	case config.EventBusRedis:
		rc, err := redisclient.NewClient(ctx, &cfg.Redis)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = rc
		infra.closers = append(infra.closers, rc.Close)
		bus := events.NewRedisEventBus(rc)
		infra.closers = append(infra.closers, bus.Close)
		infra.Bus = bus
		infra.Cache = cache.NewRedisAdapter(rc, "lims:")
	default:
		bus := events.NewMemoryEventBus()
		infra.closers = append(infra.closers, bus.Close)
		infra.Bus = bus
		infra.Cache = cache.NewMemoryAdapter()
	}

	if infra.Postgres != nil {
		infra.Users = database.NewCachedUserAdapter(infra.Users, infra.Cache)
	}

	if cfg.Typesense.URL != "" {
		ts, err := tsclient.NewClient(ctx, &cfg.Typesense)
		if err == nil {
			err = ts.InitSchema(ctx)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("patient search index unavailable, using repository search")
		} else {
			infra.Search = search.NewTypesenseAdapter(ts)
		}
	}

	return infra, nil
}

// Close releases the backends in reverse opening order
func (i *Infrastructure) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

// Services is the assembled workflow engine
type Services struct {
	Audit    *services.AuditService
	Billing  *services.BillingService
	Results  *services.ResultService
	Patients *services.PatientService
	Users    *services.UserService
	Auth     *services.AuthService
	Catalog  catalog.Catalog
}

// NewServices wires the workflow services over infra. An empty JWT secret is
// replaced by a random one, so sessions do not survive a restart.
func NewServices(infra *Infrastructure, cat catalog.Catalog, authCfg config.AuthConfig, metrics *observability.Metrics) (*Services, error) {
	secret := authCfg.JWTSecret
	if secret == "" {
		observability.GetLogger().Warn().Msg("AUTH_JWT_SECRET not set, using an ephemeral signing key")
		secret = uuid.NewString()
	}
	provider, err := auth.NewJWTProvider(auth.JWTConfig{
		Secret: secret,
		Issuer: authCfg.Issuer,
		TTL:    authCfg.SessionTTL,
	}, infra.Users, infra.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	watchAuthEvents(provider, observability.GetLogger(), metrics)

	audit := services.NewAuditService(infra.AuditLogs, infra.Bus, metrics)
	billing := services.NewBillingService(infra.Billing, audit, metrics)
	return &Services{
		Audit:    audit,
		Billing:  billing,
		Results:  services.NewResultService(infra.Results, infra.Patients, billing, audit, cat, metrics),
		Patients: services.NewPatientService(infra.Patients, infra.Results, billing, audit, infra.Search, cat),
		Users:    services.NewUserService(infra.Users, audit, auth.HashPassword),
		Auth:     services.NewAuthService(provider, infra.Users, audit),
		Catalog:  cat,
	}, nil
}

// watchAuthEvents logs and counts every sign-in and sign-out the provider reports.
// The listener lives as long as the provider.
func watchAuthEvents(provider providers.AuthProvider, logger *zerolog.Logger, metrics *observability.Metrics) {
	provider.OnAuthStateChange(func(event entities.AuthEvent) {
		entry := logger.Info().Str("event", string(event.Type))
		if event.Session != nil && event.Session.User != nil {
			entry = entry.Str("user_id", event.Session.User.ID).Str("email", event.Session.User.Email)
		}
		entry.Msg("auth state changed")
		metrics.RecordAuthEvent(context.Background(), string(event.Type))
	})
}
