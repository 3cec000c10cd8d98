package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/lims/internal/domain/catalog"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

const defaultSearchLimit = 20

// Registration is the outcome of registering a patient
type Registration struct {
	Patient *entities.Patient      `json:"patient"`
	Billing *entities.BillingEntry `json:"billing"`
}

// PatientService handles patient registration and demographics
type PatientService struct {
	patients repositories.PatientRepository
	results  repositories.TestResultRepository
	billing  *BillingService
	audit    *AuditService
	search   providers.PatientSearchProvider
	catalog  catalog.Catalog
	now      func() time.Time
}

// NewPatientService creates a new patient service. search may be nil.
func NewPatientService(
	patients repositories.PatientRepository,
	results repositories.TestResultRepository,
	billing *BillingService,
	audit *AuditService,
	search providers.PatientSearchProvider,
	cat catalog.Catalog,
) *PatientService {
	return &PatientService{
		patients: patients,
		results:  results,
		billing:  billing,
		audit:    audit,
		search:   search,
		catalog:  cat,
		now:      time.Now,
	}
}

// Register creates a patient and bills the flat registration/consultation fee.
// The registration is recorded as a single audit entry.
func (s *PatientService) Register(ctx context.Context, patient *entities.Patient, actor entities.Actor) (*Registration, error) {
	if err := validatePatient(patient); err != nil {
		return nil, err
	}

	patient.PatientIDNo = strings.TrimSpace(patient.PatientIDNo)
	if patient.PatientIDNo == "" {
		patient.PatientIDNo = "P-" + strings.ToUpper(uuid.NewString()[:8])
	} else if _, err := s.patients.GetByPatientIDNo(ctx, patient.PatientIDNo); err == nil {
		return nil, apperrors.NewConflictError(fmt.Sprintf("patient id %s is already registered", patient.PatientIDNo))
	} else if !apperrors.IsNotFound(err) {
		return nil, storeError("failed to check patient id", err)
	}

	now := s.now().UTC()
	patient.ID = uuid.NewString()
	patient.DemographicsComplete = patient.HasCompleteDemographics()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, storeError("failed to register patient", err)
	}

	fee := s.catalog.RegistrationFee()
	entry, err := s.billing.newEntry(BillingInput{
		PatientID:   patient.ID,
		PatientName: patient.FullName(),
		TestName:    catalog.RegistrationTestName,
		Section:     catalog.RegistrationSection,
		Amount:      fee,
	})
	if err == nil {
		err = s.billing.insert(ctx, entry)
	}
	if err != nil {
		if delErr := s.patients.Delete(ctx, patient.ID); delErr != nil {
			observability.LoggerFromContext(ctx).Error().
				Err(delErr).
				Str("patient_id", patient.ID).
				Msg("failed to remove unbilled patient")
		}
		return nil, err
	}

	s.audit.Record(ctx, actor, entities.AuditActionEdit, patient.FullName(), entities.ResourceTypePatient,
		fmt.Sprintf("Registered patient %s (%s), %s billed %s", patient.FullName(), patient.PatientIDNo, catalog.RegistrationTestName, peso(fee)))
	s.index(ctx, patient)

	return &Registration{Patient: patient, Billing: entry}, nil
}

func validatePatient(p *entities.Patient) error {
	if err := required(map[string]string{"first_name": p.FirstName, "last_name": p.LastName}); err != nil {
		return err
	}
	if p.Age < 0 {
		return apperrors.NewValidationError("age must not be negative")
	}
	return nil
}

// Update changes demographic fields. Identity fields are never written.
func (s *PatientService) Update(ctx context.Context, id string, update entities.PatientUpdate, actor entities.Actor) (*entities.Patient, error) {
	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load patient", err)
	}

	update.Apply(patient)
	if err := validatePatient(patient); err != nil {
		return nil, err
	}
	patient.DemographicsComplete = patient.HasCompleteDemographics()
	patient.UpdatedAt = s.now().UTC()

	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, storeError("failed to update patient", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionEdit, patient.FullName(), entities.ResourceTypePatient,
		fmt.Sprintf("Updated demographics of %s (%s)", patient.FullName(), patient.PatientIDNo))
	s.index(ctx, patient)
	return patient, nil
}

// Delete removes a patient that has no test results and no billing entries left.
// Rows are matched by patient id and by exact full name.
func (s *PatientService) Delete(ctx context.Context, id string, actor entities.Actor) error {
	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return storeError("failed to load patient", err)
	}

	name := patient.FullName()
	for _, filter := range []repositories.TestResultFilter{{PatientID: id, Limit: 1}, {PatientName: name, Limit: 1}} {
		results, err := s.results.List(ctx, filter)
		if err != nil {
			return storeError("failed to check patient results", err)
		}
		if len(results) > 0 {
			return apperrors.NewBusinessRuleError(fmt.Sprintf("%s still has test results and cannot be deleted", name))
		}
	}
	for _, filter := range []repositories.BillingFilter{{PatientID: id, Limit: 1}, {PatientName: name, Limit: 1}} {
		entries, err := s.billing.List(ctx, filter)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return apperrors.NewBusinessRuleError(fmt.Sprintf("%s still has billing entries and cannot be deleted", name))
		}
	}

	if err := s.patients.Delete(ctx, id); err != nil {
		return storeError("failed to delete patient", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionDelete, name, entities.ResourceTypePatient,
		fmt.Sprintf("Deleted patient %s (%s)", name, patient.PatientIDNo))
	if s.search != nil {
		if err := s.search.Remove(ctx, id); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("patient_id", id).Msg("failed to remove patient from search index")
		}
	}
	return nil
}

// Get returns one patient
func (s *PatientService) Get(ctx context.Context, id string) (*entities.Patient, error) {
	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load patient", err)
	}
	return patient, nil
}

// List returns patients, newest registration first
func (s *PatientService) List(ctx context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	patients, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, storeError("failed to list patients", err)
	}
	return patients, nil
}

// Search finds patients by name or patient id. The search index is used when
// configured; if it is absent or failing the repository name match is used.
func (s *PatientService) Search(ctx context.Context, query string, limit int) ([]*entities.Patient, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if s.search != nil {
		ids, err := s.search.Search(ctx, query, limit)
		if err == nil {
			return s.byIDs(ctx, ids)
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("query", query).Msg("patient search index unavailable, falling back to store")
	}

	if patient, err := s.patients.GetByPatientIDNo(ctx, query); err == nil {
		return []*entities.Patient{patient}, nil
	}
	return s.List(ctx, repositories.PatientFilter{Name: query, Limit: limit})
}

// byIDs loads patients keeping the order of ids
func (s *PatientService) byIDs(ctx context.Context, ids []string) ([]*entities.Patient, error) {
	if len(ids) == 0 {
		return []*entities.Patient{}, nil
	}
	patients, err := s.patients.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeError("failed to load patients", err)
	}

	byID := make(map[string]*entities.Patient, len(patients))
	for _, p := range patients {
		byID[p.ID] = p
	}
	out := make([]*entities.Patient, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// index pushes a patient to the search index, best effort
func (s *PatientService) index(ctx context.Context, patient *entities.Patient) {
	if s.search == nil {
		return
	}
	if err := s.search.Index(ctx, patient); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("patient_id", patient.ID).Msg("failed to index patient")
	}
}

// Reindex pushes every patient to the search index
func (s *PatientService) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, apperrors.NewValidationError("patient search is not configured")
	}
	patients, err := s.List(ctx, repositories.PatientFilter{})
	if err != nil {
		return 0, err
	}
	for _, patient := range patients {
		if err := s.search.Index(ctx, patient); err != nil {
			return 0, apperrors.NewExternalError("failed to index patient "+patient.ID, err)
		}
	}
	return len(patients), nil
}
