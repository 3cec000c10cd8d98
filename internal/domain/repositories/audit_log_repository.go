package repositories

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// AuditLogRepository defines the interface for the append-only audit log.
// There is deliberately no update or delete.
type AuditLogRepository interface {
	// Append stores a new audit entry
	Append(ctx context.Context, entry *entities.AuditLogEntry) error

	// List retrieves audit entries, most recent first
	List(ctx context.Context, filter AuditLogFilter) ([]*entities.AuditLogEntry, error)
}

// AuditLogFilter defines filters for listing audit entries
type AuditLogFilter struct {
	Action entities.AuditAction
	// UserName matches a case-insensitive substring of the actor name
	UserName     string
	ResourceType string
	Limit        int
}
