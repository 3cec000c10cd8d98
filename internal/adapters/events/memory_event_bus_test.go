package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan *entities.AuditLogEntry) *entities.AuditLogEntry {
	t.Helper()
	select {
	case entry, ok := <-ch:
		require.True(t, ok, "subscription closed early")
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
		return nil
	}
}

func TestMemoryEventBus_DeliversInPublishOrder(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, providers.EventChannelAuditLogs)
	require.NoError(t, err)

	// Publish far more entries than any channel buffer would hold before reading.
	for i := 0; i < 500; i++ {
		require.NoError(t, bus.Publish(ctx, providers.EventChannelAuditLogs, &entities.AuditLogEntry{ID: fmt.Sprintf("a-%d", i)}))
	}

	for i := 0; i < 500; i++ {
		assert.Equal(t, fmt.Sprintf("a-%d", i), receive(t, ch).ID)
	}
}

func TestMemoryEventBus_FansOutToEverySubscriber(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx, providers.EventChannelAuditLogs)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, providers.EventChannelAuditLogs)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, providers.EventChannelAuditLogs, &entities.AuditLogEntry{ID: "a-1"}))

	assert.Equal(t, "a-1", receive(t, first).ID)
	assert.Equal(t, "a-1", receive(t, second).ID)

	select {
	case entry := <-other:
		t.Fatalf("unexpected entry on other channel: %v", entry)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryEventBus_ClosesChannelWhenContextEnds(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, providers.EventChannelAuditLogs)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers(providers.EventChannelAuditLogs))

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel was not closed")
	}
	assert.Eventually(t, func() bool {
		return bus.Subscribers(providers.EventChannelAuditLogs) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryEventBus_CloseStopsSubscriptions(t *testing.T) {
	bus := NewMemoryEventBus()

	ch, err := bus.Subscribe(context.Background(), providers.EventChannelAuditLogs)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelAuditLogs, &entities.AuditLogEntry{ID: "unread"}))

	require.NoError(t, bus.Close())

	for range ch {
	}
	assert.ErrorIs(t, bus.Publish(context.Background(), providers.EventChannelAuditLogs, &entities.AuditLogEntry{}), errBusClosed)
	_, err = bus.Subscribe(context.Background(), providers.EventChannelAuditLogs)
	assert.ErrorIs(t, err, errBusClosed)
	assert.NoError(t, bus.Close())
}
