package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

var patientColumns = columns(
	"id", "patient_id_no", "first_name", "middle_name", "last_name", "age", "birthdate", "sex",
	"contact_number", "address", "medical_history", "medications", "allergies",
	"demographics_complete", "created_at", "updated_at",
)

// PatientAdapter implements PatientRepository on Postgres
type PatientAdapter struct {
	base
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) *PatientAdapter {
	return &PatientAdapter{base: newBase(client)}
}

var _ repositories.PatientRepository = (*PatientAdapter)(nil)

func patientRecord(p *entities.Patient) goqu.Record {
	return goqu.Record{
		"first_name":            p.FirstName,
		"middle_name":           p.MiddleName,
		"last_name":             p.LastName,
		"age":                   p.Age,
		"birthdate":             nullTime(p.Birthdate),
		"sex":                   p.Sex,
		"contact_number":        p.ContactNumber,
		"address":               p.Address,
		"medical_history":       p.MedicalHistory,
		"medications":           p.Medications,
		"allergies":             p.Allergies,
		"demographics_complete": p.DemographicsComplete,
		"updated_at":            p.UpdatedAt,
	}
}

// Create inserts a patient
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	record := patientRecord(patient)
	record["id"] = patient.ID
	record["patient_id_no"] = patient.PatientIDNo
	record["created_at"] = patient.CreatedAt

	query, args, err := a.db.Insert(tablePatients).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build patient insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(
			fmt.Sprintf("patient ID no. %s is already registered", patient.PatientIDNo),
			"failed to create patient", err)
	}
	return nil
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	return a.getBy(ctx, "id", id)
}

// GetByPatientIDNo retrieves a patient by business key
func (a *PatientAdapter) GetByPatientIDNo(ctx context.Context, patientIDNo string) (*entities.Patient, error) {
	return a.getBy(ctx, "patient_id_no", patientIDNo)
}

func (a *PatientAdapter) getBy(ctx context.Context, field, value string) (*entities.Patient, error) {
	query, args, err := a.db.From(tablePatients).Prepared(true).
		Select(patientColumns...).
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var patient entities.Patient
	err = a.client.DBx().GetContext(ctx, &patient, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with %s %s not found", field, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return &patient, nil
}

// GetByIDs retrieves multiple patients by their IDs
func (a *PatientAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Patient, error) {
	if len(ids) == 0 {
		return []*entities.Patient{}, nil
	}

	query, args, err := a.db.From(tablePatients).Prepared(true).
		Select(patientColumns...).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patients := []*entities.Patient{}
	if err := a.client.DBx().SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get patients by ids", err)
	}
	return patients, nil
}

// Update writes the demographic fields of a patient
func (a *PatientAdapter) Update(ctx context.Context, patient *entities.Patient) error {
	query, args, err := a.db.Update(tablePatients).Prepared(true).
		Set(patientRecord(patient)).
		Where(goqu.Ex{"id": patient.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.execAffectingOne(ctx, query, args, "failed to update patient",
		fmt.Sprintf("patient with id %s not found", patient.ID))
}

// Delete deletes a patient
func (a *PatientAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(tablePatients).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return a.execAffectingOne(ctx, query, args, "failed to delete patient",
		fmt.Sprintf("patient with id %s not found", id))
}

// List retrieves patients, newest registration first
func (a *PatientAdapter) List(ctx context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	ds := a.db.From(tablePatients).Prepared(true).Select(patientColumns...)

	if name := strings.TrimSpace(filter.Name); name != "" {
		pattern := "%" + name + "%"
		ds = ds.Where(goqu.Or(
			goqu.L("concat_ws(' ', NULLIF(first_name, ''), NULLIF(middle_name, ''), NULLIF(last_name, '')) ILIKE ?", pattern),
			goqu.C("patient_id_no").ILike(pattern),
		))
	}

	query, args, err := paginate(ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()), filter.Limit, filter.Offset).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patients := []*entities.Patient{}
	if err := a.client.DBx().SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	return patients, nil
}

func (b base) execAffectingOne(ctx context.Context, query string, args []interface{}, failure, notFound string) error {
	result, err := b.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError(failure, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(notFound)
	}
	return nil
}
