package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/labtrack/lims/internal/adapters/events"
	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

func appendEdit(t *testing.T, svc *services.AuditService, description string) *entities.AuditLogEntry {
	t.Helper()
	entry, err := svc.Append(context.Background(), services.AuditInput{
		Actor:        medtech,
		Action:       entities.AuditActionEdit,
		Resource:     "Blood Glucose",
		ResourceType: entities.ResourceTypeTestResult,
		Description:  description,
	})
	require.NoError(t, err)
	return entry
}

func TestAuditService_SubscribeDeliversNewEntriesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := memory.NewStore()
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	svc := services.NewAuditService(store.AuditLogs(), bus, nil)

	appendEdit(t, svc, "before subscribing")

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 10)
	unsubscribe, err := svc.Subscribe(context.Background(), func(e *entities.AuditLogEntry) {
		mu.Lock()
		got = append(got, e.Description)
		mu.Unlock()
		received <- struct{}{}
	})
	require.NoError(t, err)

	first := appendEdit(t, svc, "first")
	second := appendEdit(t, svc, "second")
	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for audit delivery")
		}
	}

	unsubscribe()
	unsubscribe()
	appendEdit(t, svc, "after unsubscribe")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{first.Description, second.Description}, got)
	assert.Equal(t, 0, bus.Subscribers("audit:logs"))
}

func TestAuditService_SubscribeEndsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := events.NewMemoryEventBus()
	defer bus.Close()
	svc := services.NewAuditService(memory.NewStore().AuditLogs(), bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe, err := svc.Subscribe(ctx, func(*entities.AuditLogEntry) {})
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool { return bus.Subscribers("audit:logs") == 0 }, time.Second, 10*time.Millisecond)
	unsubscribe()
}

func TestAuditService_SubscribeWithoutBus(t *testing.T) {
	svc := services.NewAuditService(memory.NewStore().AuditLogs(), nil, nil)
	_, err := svc.Subscribe(context.Background(), func(*entities.AuditLogEntry) {})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestAuditService_AppendValidatesAndAttributes(t *testing.T) {
	svc := services.NewAuditService(memory.NewStore().AuditLogs(), nil, nil)

	_, err := svc.Append(context.Background(), services.AuditInput{Actor: medtech, Action: "approve"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Append(context.Background(), services.AuditInput{Action: entities.AuditActionView})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	entry := appendEdit(t, svc, "attributed")
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-medtech", *entry.UserID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.7", *entry.IPAddress)
	assert.Equal(t, "ENC-1b8e44d0", entry.EncryptionKey)
}

func TestAuditService_ListFiltersMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	svc := services.NewAuditService(memory.NewStore().AuditLogs(), nil, nil)

	appendEdit(t, svc, "one")
	svc.Record(ctx, entities.SystemActor, entities.AuditActionLogin, "system", entities.ResourceTypeSession, "two")
	appendEdit(t, svc, "three")

	all, err := svc.List(ctx, repositories.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0].Description)
	assert.Equal(t, "one", all[2].Description)

	edits, err := svc.List(ctx, repositories.AuditLogFilter{Action: entities.AuditActionEdit})
	require.NoError(t, err)
	assert.Len(t, edits, 2)

	byName, err := svc.List(ctx, repositories.AuditLogFilter{UserName: "villa"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	_, err = svc.List(ctx, repositories.AuditLogFilter{Action: "approve"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestAuditService_RecordSwallowsStoreFailures(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAuditLogRepository)
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	store := memory.NewStore()
	audit := services.NewAuditService(repo, nil, nil)
	billing := services.NewBillingService(store.Billing(), audit, nil)

	entry, err := billing.Create(ctx, services.BillingInput{
		PatientName: "Juan Dela Cruz",
		TestName:    "ESR",
		Section:     "HEMATOLOGY",
		Amount:      150,
	}, medtech)

	require.NoError(t, err)
	assert.Equal(t, entities.BillingStatusUnpaid, entry.Status)
	repo.AssertNumberOfCalls(t, "Append", 1)

	_, err = audit.Append(ctx, services.AuditInput{Actor: medtech, Action: entities.AuditActionEdit})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}
