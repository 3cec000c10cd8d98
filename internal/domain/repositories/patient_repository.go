package repositories

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations
type PatientRepository interface {
	// Create creates a new patient. A duplicate patient_id_no is a CONFLICT error.
	Create(ctx context.Context, patient *entities.Patient) error

	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id string) (*entities.Patient, error)

	// GetByIDs retrieves multiple patients by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Patient, error)

	// GetByPatientIDNo retrieves a patient by business key
	GetByPatientIDNo(ctx context.Context, patientIDNo string) (*entities.Patient, error)

	// Update updates a patient's demographic fields
	Update(ctx context.Context, patient *entities.Patient) error

	// Delete deletes a patient
	Delete(ctx context.Context, id string) error

	// List retrieves patients, newest registration first
	List(ctx context.Context, filter PatientFilter) ([]*entities.Patient, error)
}

// PatientFilter defines filters for listing patients
type PatientFilter struct {
	// Name matches any name part, case-insensitively
	Name   string
	Limit  int
	Offset int
}
