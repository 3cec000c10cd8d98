package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

var testResultColumns = columns(
	"id", "patient_id", "patient_name", "section", "test_name", "result_value", "reference_range",
	"unit", "status", "billing_entry_id", "parent_test", "created_at", "updated_at",
)

// TestResultAdapter implements TestResultRepository on Postgres
type TestResultAdapter struct {
	base
}

// NewTestResultAdapter creates a new test result adapter
func NewTestResultAdapter(client *postgres.Client) *TestResultAdapter {
	return &TestResultAdapter{base: newBase(client)}
}

var _ repositories.TestResultRepository = (*TestResultAdapter)(nil)

// Create inserts a test result
func (a *TestResultAdapter) Create(ctx context.Context, result *entities.TestResult) error {
	record := goqu.Record{
		"id":               result.ID,
		"patient_id":       result.PatientID,
		"patient_name":     result.PatientName,
		"section":          result.Section,
		"test_name":        result.TestName,
		"result_value":     result.ResultValue,
		"reference_range":  result.ReferenceRange,
		"unit":             result.Unit,
		"status":           result.Status,
		"billing_entry_id": result.BillingEntryID,
		"parent_test":      result.ParentTest,
		"created_at":       result.CreatedAt,
		"updated_at":       result.UpdatedAt,
	}

	query, args, err := a.db.Insert(tableTestResults).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build test result insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(fmt.Sprintf("test result %s already exists", result.ID), "failed to create test result", err)
	}
	return nil
}

// GetByID retrieves a test result by ID
func (a *TestResultAdapter) GetByID(ctx context.Context, id string) (*entities.TestResult, error) {
	query, args, err := a.db.From(tableTestResults).Prepared(true).
		Select(testResultColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var result entities.TestResult
	err = a.client.DBx().GetContext(ctx, &result, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("test result with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get test result", err)
	}
	return &result, nil
}

// Update writes the editable fields of a test result, provided it is still in
// result.Status. Status itself only moves through UpdateStatus.
func (a *TestResultAdapter) Update(ctx context.Context, result *entities.TestResult) error {
	record := goqu.Record{
		"patient_id":       result.PatientID,
		"patient_name":     result.PatientName,
		"result_value":     result.ResultValue,
		"reference_range":  result.ReferenceRange,
		"unit":             result.Unit,
		"billing_entry_id": result.BillingEntryID,
		"updated_at":       result.UpdatedAt,
	}

	query, args, err := a.db.Update(tableTestResults).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": result.ID, "status": result.Status}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	res, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update test result", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		current, getErr := a.GetByID(ctx, result.ID)
		if getErr != nil {
			return getErr
		}
		return apperrors.NewConflictError(fmt.Sprintf("test result %s is %s, not %s", result.ID, current.Status, result.Status))
	}
	return nil
}

// UpdateStatus moves a result from one status to another in a single conditional UPDATE
func (a *TestResultAdapter) UpdateStatus(ctx context.Context, id string, from, to entities.ResultStatus) (*entities.TestResult, error) {
	query, args, err := a.db.Update(tableTestResults).Prepared(true).
		Set(goqu.Record{"status": to, "updated_at": time.Now().UTC()}).
		Where(goqu.Ex{"id": id, "status": from}).
		Returning(testResultColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build status update query", err)
	}

	var result entities.TestResult
	err = a.client.DBx().GetContext(ctx, &result, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the row is gone or another writer moved it first.
		current, getErr := a.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.NewConflictError(fmt.Sprintf("test result %s is %s, not %s", id, current.Status, from))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update test result status", err)
	}
	return &result, nil
}

// Delete deletes a test result
func (a *TestResultAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(tableTestResults).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return a.execAffectingOne(ctx, query, args, "failed to delete test result",
		fmt.Sprintf("test result with id %s not found", id))
}

// List retrieves test results, newest first
func (a *TestResultAdapter) List(ctx context.Context, filter repositories.TestResultFilter) ([]*entities.TestResult, error) {
	ds := a.db.From(tableTestResults).Prepared(true).Select(testResultColumns...)

	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.PatientName != "" {
		ds = ds.Where(goqu.Ex{"patient_name": filter.PatientName})
	}
	if filter.Section != "" {
		ds = ds.Where(goqu.Func("UPPER", goqu.C("section")).Eq(goqu.Func("UPPER", filter.Section)))
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}

	query, args, err := paginate(ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()), filter.Limit, filter.Offset).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	results := []*entities.TestResult{}
	if err := a.client.DBx().SelectContext(ctx, &results, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list test results", err)
	}
	return results, nil
}
