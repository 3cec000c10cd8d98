package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

// BillingInput describes a new charge
type BillingInput struct {
	PatientID   string  `json:"patient_id,omitempty"`
	PatientName string  `json:"patient_name"`
	ResultID    string  `json:"result_id,omitempty"`
	TestName    string  `json:"test_name"`
	Section     string  `json:"section"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// BillingService is the billing ledger
type BillingService struct {
	repo    repositories.BillingRepository
	audit   *AuditService
	metrics *observability.Metrics
	now     func() time.Time
}

// NewBillingService creates a new billing service
func NewBillingService(repo repositories.BillingRepository, audit *AuditService, metrics *observability.Metrics) *BillingService {
	return &BillingService{
		repo:    repo,
		audit:   audit,
		metrics: metrics,
		now:     time.Now,
	}
}

// Create adds an unpaid charge and records it in the audit trail
func (s *BillingService) Create(ctx context.Context, in BillingInput, actor entities.Actor) (*entities.BillingEntry, error) {
	entry, err := s.newEntry(in)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, entry); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, entities.AuditActionEdit, entry.TestName, entities.ResourceTypeBilling,
		fmt.Sprintf("Billed %s for %s: %s (%s)", entry.TestName, entry.PatientName, peso(entry.Amount), entry.Status))
	return entry, nil
}

// newEntry validates in and builds an unpaid entry with a fresh id
func (s *BillingService) newEntry(in BillingInput) (*entities.BillingEntry, error) {
	if err := required(map[string]string{"patient_name": in.PatientName, "test_name": in.TestName}); err != nil {
		return nil, err
	}
	if in.Amount < 0 {
		return nil, apperrors.NewValidationError("amount must not be negative")
	}

	description := in.Description
	if description == "" {
		description = strings.TrimSpace(in.Section + " - " + in.TestName)
	}
	return &entities.BillingEntry{
		ID:          uuid.NewString(),
		PatientID:   in.PatientID,
		PatientName: strings.TrimSpace(in.PatientName),
		ResultID:    in.ResultID,
		TestName:    strings.TrimSpace(in.TestName),
		Section:     strings.TrimSpace(in.Section),
		Amount:      in.Amount,
		Status:      entities.BillingStatusUnpaid,
		Description: description,
	}, nil
}

// insert stores entry without auditing; callers that bill as a side effect audit the whole operation
func (s *BillingService) insert(ctx context.Context, entry *entities.BillingEntry) error {
	now := s.now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := s.repo.Create(ctx, entry); err != nil {
		return storeError("failed to create billing entry", err)
	}
	return nil
}

// SetStatus marks an entry paid or unpaid. Paying records the receipt, defaulting the
// paid date to now; unpaying clears it. Re-marking a paid entry without a receipt keeps
// the stored one and writes nothing. The amount is never touched.
func (s *BillingService) SetStatus(ctx context.Context, id string, status entities.BillingStatus, receipt *entities.Receipt, actor entities.Actor) (*entities.BillingEntry, error) {
	if !status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown billing status %q", status))
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load billing entry", err)
	}
	old := entry.Status
	if old == status && (status == entities.BillingStatusUnpaid || receipt == nil) {
		return entry, nil
	}

	now := s.now().UTC()
	entry.Status = status
	entry.UpdatedAt = now
	switch status {
	case entities.BillingStatusPaid:
		entry.ORNumber = ""
		entry.DatePaid = &now
		if receipt != nil {
			entry.ORNumber = strings.TrimSpace(receipt.ORNumber)
			if receipt.DatePaid != nil {
				paid := receipt.DatePaid.UTC()
				entry.DatePaid = &paid
			}
		}
	case entities.BillingStatusUnpaid:
		entry.ORNumber = ""
		entry.DatePaid = nil
	}

	if err := s.repo.UpdatePayment(ctx, entry); err != nil {
		return nil, storeError("failed to update billing entry", err)
	}
	s.metrics.RecordBillingTransition(ctx, string(status))

	description := fmt.Sprintf("Billing %s for %s status: %s → %s (%s)", entry.TestName, entry.PatientName, old, status, peso(entry.Amount))
	if entry.ORNumber != "" {
		description += ", OR " + entry.ORNumber
	}
	s.audit.Record(ctx, actor, entities.AuditActionEdit, entry.TestName, entities.ResourceTypeBilling, description)
	return entry, nil
}

// Delete removes an entry
func (s *BillingService) Delete(ctx context.Context, id string, actor entities.Actor) error {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeError("failed to load billing entry", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError("failed to delete billing entry", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionDelete, entry.TestName, entities.ResourceTypeBilling,
		fmt.Sprintf("Deleted billing %s for %s (%s, %s)", entry.TestName, entry.PatientName, entry.Status, peso(entry.Amount)))
	return nil
}

// Get returns one entry
func (s *BillingService) Get(ctx context.Context, id string) (*entities.BillingEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load billing entry", err)
	}
	return entry, nil
}

// GetByIDs returns the entries that still exist among ids
func (s *BillingService) GetByIDs(ctx context.Context, ids []string) ([]*entities.BillingEntry, error) {
	entries, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeError("failed to load billing entries", err)
	}
	return entries, nil
}

// List returns entries newest first
func (s *BillingService) List(ctx context.Context, filter repositories.BillingFilter) ([]*entities.BillingEntry, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown billing status %q", filter.Status))
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError("failed to list billing entries", err)
	}
	return entries, nil
}

// Aggregate sums the current ledger by status. Nothing is cached between calls.
func (s *BillingService) Aggregate(ctx context.Context) (entities.BillingSummary, error) {
	entries, err := s.List(ctx, repositories.BillingFilter{})
	if err != nil {
		return entities.BillingSummary{}, err
	}
	return entities.SummarizeBilling(entries), nil
}

// FindForTest resolves the billing line covering testName for a patient. The surrogate
// patient id is tried first, then exact (patient name, test name) equality.
func (s *BillingService) FindForTest(ctx context.Context, patientID, patientName, testName string) (*entities.BillingEntry, error) {
	if patientID != "" {
		entries, err := s.repo.List(ctx, repositories.BillingFilter{PatientID: patientID})
		if err != nil {
			return nil, storeError("failed to list billing entries", err)
		}
		for _, entry := range entries {
			if entry.TestName == testName {
				return entry, nil
			}
		}
	}

	entry, err := s.repo.FindByPatientAndTest(ctx, patientName, testName)
	if err != nil {
		return nil, storeError("failed to find billing entry", err)
	}
	return entry, nil
}
