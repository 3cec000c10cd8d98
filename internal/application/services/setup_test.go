package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/labtrack/lims/internal/adapters/events"
	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/catalog"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
)

var repositoriesAuditAll = repositories.AuditLogFilter{}

var medtech = entities.Actor{UserID: "u-medtech", Name: "Ana Villanueva", EncryptionKey: "ENC-1b8e44d0", IPAddress: "10.0.0.7"}

type testEnv struct {
	store    *memory.Store
	bus      *events.MemoryEventBus
	audit    *services.AuditService
	billing  *services.BillingService
	results  *services.ResultService
	patients *services.PatientService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	bus := events.NewMemoryEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	audit := services.NewAuditService(store.AuditLogs(), bus, nil)
	billing := services.NewBillingService(store.Billing(), audit, nil)
	cat := catalog.Default()

	return &testEnv{
		store:    store,
		bus:      bus,
		audit:    audit,
		billing:  billing,
		results:  services.NewResultService(store.TestResults(), store.Patients(), billing, audit, cat, nil),
		patients: services.NewPatientService(store.Patients(), store.TestResults(), billing, audit, nil, cat),
	}
}

func (e *testEnv) auditEntries(t *testing.T) []*entities.AuditLogEntry {
	t.Helper()
	entries, err := e.store.AuditLogs().List(context.Background(), repositories.AuditLogFilter{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return entries
}

func (e *testEnv) billingEntries(t *testing.T) []*entities.BillingEntry {
	t.Helper()
	entries, err := e.store.Billing().List(context.Background(), repositories.BillingFilter{})
	if err != nil {
		t.Fatalf("list billing: %v", err)
	}
	return entries
}

// Mocks

type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Append(ctx context.Context, entry *entities.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLogEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditLogEntry), args.Error(1)
}

// MockBillingRepository fails Create and delegates everything else
type MockBillingRepository struct {
	mock.Mock
	repositories.BillingRepository
}

func (m *MockBillingRepository) Create(ctx context.Context, entry *entities.BillingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockPatientSearchProvider struct {
	mock.Mock
}

func (m *MockPatientSearchProvider) Index(ctx context.Context, patient *entities.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

func (m *MockPatientSearchProvider) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPatientSearchProvider) Search(ctx context.Context, query string, limit int) ([]string, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
