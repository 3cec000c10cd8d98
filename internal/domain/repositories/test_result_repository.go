package repositories

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// TestResultRepository defines the interface for test result data operations
type TestResultRepository interface {
	// Create creates a new test result
	Create(ctx context.Context, result *entities.TestResult) error

	// GetByID retrieves a test result by ID
	GetByID(ctx context.Context, id string) (*entities.TestResult, error)

	// Update writes the editable fields of a test result if it is still in result.Status,
	// otherwise it yields a CONFLICT error. It never changes the status.
	Update(ctx context.Context, result *entities.TestResult) error

	// UpdateStatus moves a result from one status to another only if it is still in from.
	// A result that left from in the meantime yields a CONFLICT error.
	UpdateStatus(ctx context.Context, id string, from, to entities.ResultStatus) (*entities.TestResult, error)

	// Delete deletes a test result
	Delete(ctx context.Context, id string) error

	// List retrieves test results, newest first
	List(ctx context.Context, filter TestResultFilter) ([]*entities.TestResult, error)
}

// TestResultFilter defines filters for listing test results
type TestResultFilter struct {
	PatientID   string
	PatientName string
	Section     string
	Status      entities.ResultStatus
	Limit       int
	Offset      int
}
