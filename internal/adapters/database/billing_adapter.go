package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

var billingColumns = columns(
	"id", "patient_id", "patient_name", "result_id", "test_name", "section", "amount", "status",
	"description", "or_number", "date_paid", "created_at", "updated_at",
)

// BillingAdapter implements BillingRepository on Postgres
type BillingAdapter struct {
	base
}

// NewBillingAdapter creates a new billing adapter
func NewBillingAdapter(client *postgres.Client) *BillingAdapter {
	return &BillingAdapter{base: newBase(client)}
}

var _ repositories.BillingRepository = (*BillingAdapter)(nil)

// Create inserts a billing entry
func (a *BillingAdapter) Create(ctx context.Context, entry *entities.BillingEntry) error {
	record := goqu.Record{
		"id":           entry.ID,
		"patient_id":   entry.PatientID,
		"patient_name": entry.PatientName,
		"result_id":    entry.ResultID,
		"test_name":    entry.TestName,
		"section":      entry.Section,
		"amount":       entry.Amount,
		"status":       entry.Status,
		"description":  entry.Description,
		"or_number":    entry.ORNumber,
		"date_paid":    nullTime(entry.DatePaid),
		"created_at":   entry.CreatedAt,
		"updated_at":   entry.UpdatedAt,
	}

	query, args, err := a.db.Insert(tableBilling).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build billing insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(fmt.Sprintf("billing entry %s already exists", entry.ID), "failed to create billing entry", err)
	}
	return nil
}

// GetByID retrieves a billing entry by ID
func (a *BillingAdapter) GetByID(ctx context.Context, id string) (*entities.BillingEntry, error) {
	return a.getOne(ctx, a.db.From(tableBilling).Where(goqu.Ex{"id": id}),
		fmt.Sprintf("billing entry with id %s not found", id))
}

// FindByPatientAndTest returns the newest entry for an exact (patient name, test name) pair
func (a *BillingAdapter) FindByPatientAndTest(ctx context.Context, patientName, testName string) (*entities.BillingEntry, error) {
	ds := a.db.From(tableBilling).
		Where(goqu.Ex{"patient_name": patientName, "test_name": testName}).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(1)
	return a.getOne(ctx, ds, fmt.Sprintf("no billing entry for %s / %s", patientName, testName))
}

func (a *BillingAdapter) getOne(ctx context.Context, ds *goqu.SelectDataset, notFound string) (*entities.BillingEntry, error) {
	query, args, err := ds.Prepared(true).Select(billingColumns...).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var entry entities.BillingEntry
	err = a.client.DBx().GetContext(ctx, &entry, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get billing entry", err)
	}
	return &entry, nil
}

// GetByIDs retrieves multiple billing entries by their IDs
func (a *BillingAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.BillingEntry, error) {
	if len(ids) == 0 {
		return []*entities.BillingEntry{}, nil
	}

	query, args, err := a.db.From(tableBilling).Prepared(true).
		Select(billingColumns...).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entries := []*entities.BillingEntry{}
	if err := a.client.DBx().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get billing entries by ids", err)
	}
	return entries, nil
}

// UpdatePayment writes the payment fields and result link. The amount column is never part of the SET.
func (a *BillingAdapter) UpdatePayment(ctx context.Context, entry *entities.BillingEntry) error {
	record := goqu.Record{
		"status":     entry.Status,
		"or_number":  entry.ORNumber,
		"date_paid":  nullTime(entry.DatePaid),
		"result_id":  entry.ResultID,
		"updated_at": entry.UpdatedAt,
	}

	query, args, err := a.db.Update(tableBilling).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": entry.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.execAffectingOne(ctx, query, args, "failed to update billing entry",
		fmt.Sprintf("billing entry with id %s not found", entry.ID))
}

// Delete deletes a billing entry
func (a *BillingAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(tableBilling).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return a.execAffectingOne(ctx, query, args, "failed to delete billing entry",
		fmt.Sprintf("billing entry with id %s not found", id))
}

// List retrieves billing entries, newest first
func (a *BillingAdapter) List(ctx context.Context, filter repositories.BillingFilter) ([]*entities.BillingEntry, error) {
	ds := a.db.From(tableBilling).Prepared(true).Select(billingColumns...)

	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.PatientName != "" {
		ds = ds.Where(goqu.Ex{"patient_name": filter.PatientName})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}

	query, args, err := paginate(ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()), filter.Limit, filter.Offset).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	entries := []*entities.BillingEntry{}
	if err := a.client.DBx().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list billing entries", err)
	}
	return entries, nil
}
