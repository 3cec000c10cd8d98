package repositories

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// BillingRepository defines the interface for billing ledger data operations
type BillingRepository interface {
	// Create creates a new billing entry
	Create(ctx context.Context, entry *entities.BillingEntry) error

	// GetByID retrieves a billing entry by ID
	GetByID(ctx context.Context, id string) (*entities.BillingEntry, error)

	// GetByIDs retrieves multiple billing entries by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.BillingEntry, error)

	// FindByPatientAndTest returns the newest entry for an exact (patient name, test name) pair
	FindByPatientAndTest(ctx context.Context, patientName, testName string) (*entities.BillingEntry, error)

	// UpdatePayment writes status, OR number, date paid and result link. Amount is never written.
	UpdatePayment(ctx context.Context, entry *entities.BillingEntry) error

	// Delete deletes a billing entry
	Delete(ctx context.Context, id string) error

	// List retrieves billing entries, newest first
	List(ctx context.Context, filter BillingFilter) ([]*entities.BillingEntry, error)
}

// BillingFilter defines filters for listing billing entries
type BillingFilter struct {
	PatientID   string
	PatientName string
	Status      entities.BillingStatus
	Limit       int
	Offset      int
}
