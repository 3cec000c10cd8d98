package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

var auditLogColumns = columns(
	"id", "user_id", "user_name", "encryption_key", "action", "resource", "resource_type",
	"description", "ip_address", "created_at",
)

// AuditLogAdapter implements the append-only AuditLogRepository on Postgres
type AuditLogAdapter struct {
	base
}

// NewAuditLogAdapter creates a new audit log adapter
func NewAuditLogAdapter(client *postgres.Client) *AuditLogAdapter {
	return &AuditLogAdapter{base: newBase(client)}
}

var _ repositories.AuditLogRepository = (*AuditLogAdapter)(nil)

// Append inserts an audit entry
func (a *AuditLogAdapter) Append(ctx context.Context, entry *entities.AuditLogEntry) error {
	record := goqu.Record{
		"id":             entry.ID,
		"user_id":        nullString(entry.UserID),
		"user_name":      entry.UserName,
		"encryption_key": entry.EncryptionKey,
		"action":         entry.Action,
		"resource":       entry.Resource,
		"resource_type":  entry.ResourceType,
		"description":    entry.Description,
		"ip_address":     nullString(entry.IPAddress),
		"created_at":     entry.CreatedAt,
	}

	query, args, err := a.db.Insert(tableAuditLogs).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build audit insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(fmt.Sprintf("audit entry %s already exists", entry.ID), "failed to append audit entry", err)
	}
	return nil
}

// List retrieves audit entries most recent first. seq breaks created_at ties in insertion order.
func (a *AuditLogAdapter) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLogEntry, error) {
	ds := a.db.From(tableAuditLogs).Prepared(true).Select(auditLogColumns...)

	if filter.Action != "" {
		ds = ds.Where(goqu.Ex{"action": filter.Action})
	}
	if filter.UserName != "" {
		ds = ds.Where(goqu.C("user_name").ILike("%" + filter.UserName + "%"))
	}
	if filter.ResourceType != "" {
		ds = ds.Where(goqu.Ex{"resource_type": filter.ResourceType})
	}

	query, args, err := paginate(ds.Order(goqu.C("created_at").Desc(), goqu.C("seq").Desc()), filter.Limit, 0).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entries := []*entities.AuditLogEntry{}
	if err := a.client.DBx().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list audit entries", err)
	}
	return entries, nil
}
