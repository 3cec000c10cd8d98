//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/adapters/cache"
	"github.com/labtrack/lims/internal/adapters/events"
	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
)

func TestRedisEventBus_AuditSubscriptionAcrossReplicas(t *testing.T) {
	client := newTestRedisClient(t)
	store := memory.NewStore()

	// Two buses over one Redis stand in for two API replicas
	writerBus := events.NewRedisEventBus(client)
	defer writerBus.Close()
	readerBus := events.NewRedisEventBus(client)
	defer readerBus.Close()

	writer := services.NewAuditService(store.AuditLogs(), writerBus, nil)
	reader := services.NewAuditService(store.AuditLogs(), readerBus, nil)

	received := make(chan *entities.AuditLogEntry, 4)
	unsubscribe, err := reader.Subscribe(context.Background(), func(e *entities.AuditLogEntry) { received <- e })
	require.NoError(t, err)
	defer unsubscribe()
	time.Sleep(100 * time.Millisecond)

	for _, resource := range []string{"CBC", "ESR"} {
		_, err := writer.Append(context.Background(), auditInput(resource))
		require.NoError(t, err)
	}

	for _, want := range []string{"CBC", "ESR"} {
		select {
		case e := <-received:
			assert.Equal(t, want, e.Resource)
		case <-time.After(3 * time.Second):
			t.Fatalf("audit entry %s not delivered", want)
		}
	}

	unsubscribe()
	_, err = writer.Append(context.Background(), auditInput("Urinalysis"))
	require.NoError(t, err)
	select {
	case e := <-received:
		t.Fatalf("delivery after unsubscribe: %s", e.Resource)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRedisCache_RevocationRoundTrip(t *testing.T) {
	client := newTestRedisClient(t)
	adapter := cache.NewRedisAdapter(client, "lims-it:")
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "auth:revoked:jti-1", []byte("1"), 60))
	exists, err := adapter.Exists(ctx, "auth:revoked:jti-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, adapter.Delete(ctx, "auth:revoked:jti-1"))
	exists, err = adapter.Exists(ctx, "auth:revoked:jti-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
