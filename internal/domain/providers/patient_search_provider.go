package providers

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// PatientSearchProvider maintains a full-text index of registered patients
type PatientSearchProvider interface {
	// Index upserts a patient document
	Index(ctx context.Context, patient *entities.Patient) error

	// Remove deletes a patient document
	Remove(ctx context.Context, id string) error

	// Search returns the IDs of patients matching query, best match first
	Search(ctx context.Context, query string, limit int) ([]string, error)
}
