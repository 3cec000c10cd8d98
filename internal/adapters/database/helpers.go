package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

const (
	tablePatients    = "patients"
	tableTestResults = "test_results"
	tableBilling     = "billing"
	tableAuditLogs   = "audit_logs"
	tableUsers       = "users"
)

// pqUniqueViolation is the SQLSTATE Postgres reports for a duplicate key
const pqUniqueViolation = "23505"

// base carries what every adapter needs
type base struct {
	client *postgres.Client
	db     *goqu.Database
}

func newBase(client *postgres.Client) base {
	return base{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// writeError wraps a failed insert/update, turning duplicate keys into a CONFLICT
func writeError(conflictMessage, internalMessage string, err error) error {
	if isUniqueViolation(err) {
		return apperrors.NewConflictError(conflictMessage)
	}
	return apperrors.NewInternalError(internalMessage, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func columns(names ...string) []interface{} {
	out := make([]interface{}, len(names))
	for i, name := range names {
		out[i] = name
	}
	return out
}

func paginate(ds *goqu.SelectDataset, limit, offset int) *goqu.SelectDataset {
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	return ds
}
