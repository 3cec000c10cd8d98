package providers

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// EventBus carries newly appended audit entries to live subscribers.
// It is independent of the persistence backend's own change feed.
type EventBus interface {
	// Publish delivers an entry to every current subscriber of channel
	Publish(ctx context.Context, channel string, entry *entities.AuditLogEntry) error

	// Subscribe returns a channel of entries published after the call.
	// The returned channel is closed once ctx is done or the bus is closed.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AuditLogEntry, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelAuditLogs is the channel every appended audit entry is published on
const EventChannelAuditLogs = "audit:logs"
