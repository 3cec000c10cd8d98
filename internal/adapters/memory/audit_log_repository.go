package memory

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
)

type auditLogRepo struct{ s *Store }

var _ repositories.AuditLogRepository = (*auditLogRepo)(nil)

func cloneAudit(e *entities.AuditLogEntry) *entities.AuditLogEntry {
	c := *e
	if e.UserID != nil {
		id := *e.UserID
		c.UserID = &id
	}
	if e.IPAddress != nil {
		ip := *e.IPAddress
		c.IPAddress = &ip
	}
	return &c
}

func (r *auditLogRepo) Append(_ context.Context, entry *entities.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&entry.ID, &entry.CreatedAt, nil)
	r.s.audit = append(r.s.audit, cloneAudit(entry))
	return nil
}

// List walks the log backwards, so entries with equal timestamps still come out most recent first.
func (r *auditLogRepo) List(_ context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.AuditLogEntry, 0)
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		entry := r.s.audit[i]
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.UserName != "" && !containsFold(entry.UserName, filter.UserName) {
			continue
		}
		if filter.ResourceType != "" && entry.ResourceType != filter.ResourceType {
			continue
		}
		out = append(out, cloneAudit(entry))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
