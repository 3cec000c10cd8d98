package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/lims/internal/domain/catalog"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

// ResultInput describes a test result to enter
type ResultInput struct {
	PatientID      string `json:"patient_id,omitempty"`
	PatientName    string `json:"patient_name"`
	Section        string `json:"section"`
	TestName       string `json:"test_name"`
	ResultValue    string `json:"result_value"`
	ReferenceRange string `json:"reference_range"`
	Unit           string `json:"unit"`
}

// PanelComponent is one measured component of a panel
type PanelComponent struct {
	TestName    string `json:"test_name"`
	ResultValue string `json:"result_value"`
}

// PanelInput orders a parent test with its components. An empty component
// list orders every component the catalog registers under the parent.
type PanelInput struct {
	PatientID   string           `json:"patient_id,omitempty"`
	PatientName string           `json:"patient_name"`
	Section     string           `json:"section"`
	ParentTest  string           `json:"parent_test"`
	Components  []PanelComponent `json:"components"`
}

// Panel is the outcome of ordering a panel
type Panel struct {
	Billing *entities.BillingEntry `json:"billing"`
	Results []*entities.TestResult `json:"results"`
}

// ResultService runs the result pipeline and its billing and audit side effects
type ResultService struct {
	results  repositories.TestResultRepository
	patients repositories.PatientRepository
	billing  *BillingService
	audit    *AuditService
	catalog  catalog.Catalog
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewResultService creates a new result service
func NewResultService(
	results repositories.TestResultRepository,
	patients repositories.PatientRepository,
	billing *BillingService,
	audit *AuditService,
	cat catalog.Catalog,
	metrics *observability.Metrics,
) *ResultService {
	return &ResultService{
		results:  results,
		patients: patients,
		billing:  billing,
		audit:    audit,
		catalog:  cat,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Create enters a pending result. A regular test is billed from the catalog and the
// two rows are linked both ways. A component is not billed; it is linked to the
// patient's existing parent line when there is one.
func (s *ResultService) Create(ctx context.Context, in ResultInput, actor entities.Actor) (*entities.TestResult, error) {
	result, err := s.newResult(ctx, in)
	if err != nil {
		return nil, err
	}

	if parent, ok := s.catalog.ParentOf(result.Section, result.TestName); ok {
		return s.createComponent(ctx, result, parent, actor)
	}

	amount := catalog.PriceOrDefault(s.catalog, result.Section, result.TestName)
	entry, err := s.billing.newEntry(BillingInput{
		PatientID:   result.PatientID,
		PatientName: result.PatientName,
		ResultID:    result.ID,
		TestName:    result.TestName,
		Section:     result.Section,
		Amount:      amount,
	})
	if err != nil {
		return nil, err
	}
	result.BillingEntryID = entry.ID

	if err := s.results.Create(ctx, result); err != nil {
		return nil, storeError("failed to create test result", err)
	}
	if err := s.billing.insert(ctx, entry); err != nil {
		s.rollbackCreate(ctx, result.ID)
		return nil, err
	}

	s.metrics.RecordResultCreated(ctx, result.Section, false)
	s.audit.Record(ctx, actor, entities.AuditActionEdit, result.TestName, entities.ResourceTypeTestResult,
		fmt.Sprintf("Added %s (%s) for %s, auto-billed %s", result.TestName, result.Section, result.PatientName, peso(amount)))
	return result, nil
}

func (s *ResultService) createComponent(ctx context.Context, result *entities.TestResult, parent string, actor entities.Actor) (*entities.TestResult, error) {
	result.ParentTest = parent

	billedUnder := "no parent billing line yet"
	line, err := s.billing.FindForTest(ctx, result.PatientID, result.PatientName, parent)
	switch {
	case err == nil:
		result.BillingEntryID = line.ID
		billedUnder = "billed under " + parent
	case !apperrors.IsNotFound(err):
		return nil, err
	}

	if err := s.results.Create(ctx, result); err != nil {
		return nil, storeError("failed to create test result", err)
	}

	s.metrics.RecordResultCreated(ctx, result.Section, true)
	s.audit.Record(ctx, actor, entities.AuditActionEdit, result.TestName, entities.ResourceTypeTestResult,
		fmt.Sprintf("Added %s (%s) for %s, component of %s, %s", result.TestName, result.Section, result.PatientName, parent, billedUnder))
	return result, nil
}

// rollbackCreate removes a result whose billing line could not be stored
func (s *ResultService) rollbackCreate(ctx context.Context, id string) {
	if err := s.results.Delete(ctx, id); err != nil {
		observability.LoggerFromContext(ctx).Error().
			Err(err).
			Str("result_id", id).
			Msg("failed to remove unbilled test result")
	}
}

// newResult validates in and fills catalog defaults
func (s *ResultService) newResult(ctx context.Context, in ResultInput) (*entities.TestResult, error) {
	patientName := strings.TrimSpace(in.PatientName)
	if in.PatientID != "" {
		patient, err := s.patients.GetByID(ctx, in.PatientID)
		if err != nil {
			return nil, storeError("failed to load patient", err)
		}
		if patientName == "" {
			patientName = patient.FullName()
		}
	}
	if err := required(map[string]string{"patient_name": patientName, "section": in.Section, "test_name": in.TestName}); err != nil {
		return nil, err
	}

	result := &entities.TestResult{
		ID:             uuid.NewString(),
		PatientID:      in.PatientID,
		PatientName:    patientName,
		Section:        strings.ToUpper(strings.TrimSpace(in.Section)),
		TestName:       strings.TrimSpace(in.TestName),
		ResultValue:    strings.TrimSpace(in.ResultValue),
		ReferenceRange: strings.TrimSpace(in.ReferenceRange),
		Unit:           strings.TrimSpace(in.Unit),
		Status:         entities.ResultStatusPending,
	}
	if r, ok := s.catalog.Range(result.Section, result.TestName); ok {
		if result.ReferenceRange == "" {
			result.ReferenceRange = r.String()
		}
		if result.Unit == "" {
			result.Unit = r.Unit
		}
	}

	now := s.now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now
	return result, nil
}

// CreatePanel orders a parent test and its components under a single billing line.
// An existing line for the same patient and parent is reused rather than billed twice.
// If a component cannot be stored the panel is rolled back: the components already
// added are removed, as is the billing line when this call created it.
func (s *ResultService) CreatePanel(ctx context.Context, in PanelInput, actor entities.Actor) (*Panel, error) {
	section := strings.ToUpper(strings.TrimSpace(in.Section))
	parent := strings.TrimSpace(in.ParentTest)
	known := s.catalog.Components(section, parent)
	if len(known) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s is not a panel in %s", parent, section))
	}

	components := in.Components
	if len(components) == 0 {
		for _, name := range known {
			components = append(components, PanelComponent{TestName: name})
		}
	}
	for _, c := range components {
		if p, ok := s.catalog.ParentOf(section, c.TestName); !ok || p != parent {
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s is not a component of %s", c.TestName, parent))
		}
	}

	patientName := strings.TrimSpace(in.PatientName)
	if in.PatientID != "" && patientName == "" {
		patient, err := s.patients.GetByID(ctx, in.PatientID)
		if err != nil {
			return nil, storeError("failed to load patient", err)
		}
		patientName = patient.FullName()
	}
	if patientName == "" {
		return nil, apperrors.NewValidationError("missing required fields: patient_name")
	}

	billed := false
	line, err := s.billing.FindForTest(ctx, in.PatientID, patientName, parent)
	if apperrors.IsNotFound(err) {
		amount := catalog.PriceOrDefault(s.catalog, section, parent)
		line, err = s.billing.newEntry(BillingInput{
			PatientID:   in.PatientID,
			PatientName: patientName,
			TestName:    parent,
			Section:     section,
			Amount:      amount,
		})
		if err != nil {
			return nil, err
		}
		if err := s.billing.insert(ctx, line); err != nil {
			return nil, err
		}
		billed = true
		s.audit.Record(ctx, actor, entities.AuditActionEdit, parent, entities.ResourceTypeBilling,
			fmt.Sprintf("Ordered %s panel (%d components) for %s, auto-billed %s", parent, len(components), patientName, peso(amount)))
	} else if err != nil {
		return nil, err
	}

	panel := &Panel{Billing: line}
	for _, c := range components {
		result, err := s.Create(ctx, ResultInput{
			PatientID:   in.PatientID,
			PatientName: patientName,
			Section:     section,
			TestName:    c.TestName,
			ResultValue: c.ResultValue,
		}, actor)
		if err != nil {
			s.rollbackPanel(ctx, panel, patientName, billed, actor)
			return nil, err
		}
		panel.Results = append(panel.Results, result)
	}
	return panel, nil
}

// rollbackPanel removes what a failed CreatePanel stored and records one audit entry for it
func (s *ResultService) rollbackPanel(ctx context.Context, panel *Panel, patientName string, billed bool, actor entities.Actor) {
	for _, result := range panel.Results {
		s.rollbackCreate(ctx, result.ID)
	}

	billing := "billing line kept"
	if billed {
		billing = "billing line removed"
		if err := s.billing.repo.Delete(ctx, panel.Billing.ID); err != nil {
			billing = "billing line could not be removed"
			observability.LoggerFromContext(ctx).Error().
				Err(err).
				Str("billing_id", panel.Billing.ID).
				Msg("failed to remove billing line of rolled back panel")
		}
	}

	s.audit.Record(ctx, actor, entities.AuditActionDelete, panel.Billing.TestName, entities.ResourceTypeTestResult,
		fmt.Sprintf("Rolled back %s panel for %s after %d component(s) were added, %s",
			panel.Billing.TestName, patientName, len(panel.Results), billing))
}

// Advance moves a result to the next pipeline stage. Released results are rejected, and
// a status outside the stage list fails closed. The store applies the move only if the
// result is still in the stage it was read in, so a concurrent advance yields CONFLICT.
func (s *ResultService) Advance(ctx context.Context, id string, actor entities.Actor) (*entities.TestResult, error) {
	current, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load test result", err)
	}

	next, err := nextStage(current)
	if err != nil {
		return nil, err
	}

	updated, err := s.results.UpdateStatus(ctx, id, current.Status, next)
	if err != nil {
		return nil, storeError("failed to advance test result", err)
	}

	s.metrics.RecordStatusTransition(ctx, string(next))
	s.audit.Record(ctx, actor, entities.AuditActionEdit, updated.TestName, entities.ResourceTypeTestResult,
		fmt.Sprintf("%s for %s status: %s → %s", updated.TestName, updated.PatientName, current.Status, next))
	return updated, nil
}

func nextStage(result *entities.TestResult) (entities.ResultStatus, error) {
	if result.Status.IsTerminal() {
		return "", apperrors.NewConflictError(fmt.Sprintf("test result %s is already released", result.ID))
	}
	next, ok := entities.NextStatus(result.Status)
	if !ok {
		return "", apperrors.NewInternalError(fmt.Sprintf("test result %s has unknown status %q", result.ID, result.Status), nil)
	}
	return next, nil
}

// Update applies a partial update. A status change must be the next stage and is
// logged like Advance. Released results cannot be changed. Field edits are written only
// while the result is still in the stage it was read in, so an edit racing an advance
// fails with CONFLICT instead of reverting the status.
func (s *ResultService) Update(ctx context.Context, id string, update entities.ResultUpdate, actor entities.Actor) (*entities.TestResult, error) {
	current, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load test result", err)
	}
	if current.Status.IsTerminal() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("test result %s is released and cannot be changed", id))
	}

	var target entities.ResultStatus
	if update.Status != nil && *update.Status != current.Status {
		if !update.Status.IsValid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown result status %q", *update.Status))
		}
		next, err := nextStage(current)
		if err != nil {
			return nil, err
		}
		if *update.Status != next {
			return nil, apperrors.NewValidationError(fmt.Sprintf("status can only move from %s to %s", current.Status, next))
		}
		target = next
	}

	var changed []string
	edited := *current
	if update.ResultValue != nil && strings.TrimSpace(*update.ResultValue) != current.ResultValue {
		edited.ResultValue = strings.TrimSpace(*update.ResultValue)
		changed = append(changed, "result value")
	}
	if update.ReferenceRange != nil && strings.TrimSpace(*update.ReferenceRange) != current.ReferenceRange {
		edited.ReferenceRange = strings.TrimSpace(*update.ReferenceRange)
		changed = append(changed, "reference range")
	}
	if update.Unit != nil && strings.TrimSpace(*update.Unit) != current.Unit {
		edited.Unit = strings.TrimSpace(*update.Unit)
		changed = append(changed, "unit")
	}

	if len(changed) == 0 && target == "" {
		return current, nil
	}

	result := current
	if len(changed) > 0 {
		edited.UpdatedAt = s.now().UTC()
		if err := s.results.Update(ctx, &edited); err != nil {
			return nil, storeError("failed to update test result", err)
		}
		result = &edited
	}
	if target != "" {
		result, err = s.results.UpdateStatus(ctx, id, current.Status, target)
		if err != nil {
			return nil, storeError("failed to update test result status", err)
		}
		s.metrics.RecordStatusTransition(ctx, string(target))
	}

	parts := make([]string, 0, 2)
	if len(changed) > 0 {
		parts = append(parts, "updated "+strings.Join(changed, ", "))
	}
	if target != "" {
		parts = append(parts, fmt.Sprintf("status: %s → %s", current.Status, target))
	}
	s.audit.Record(ctx, actor, entities.AuditActionEdit, result.TestName, entities.ResourceTypeTestResult,
		fmt.Sprintf("%s for %s %s", result.TestName, result.PatientName, strings.Join(parts, "; ")))
	return result, nil
}

// Delete removes a result. Its billing line stays in the ledger.
func (s *ResultService) Delete(ctx context.Context, id string, actor entities.Actor) error {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		return storeError("failed to load test result", err)
	}
	if err := s.results.Delete(ctx, id); err != nil {
		return storeError("failed to delete test result", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionDelete, result.TestName, entities.ResourceTypeTestResult,
		fmt.Sprintf("Deleted %s (%s) for %s at status %s", result.TestName, result.Section, result.PatientName, result.Status))
	return nil
}

// Get returns one result with its abnormal-value flag
func (s *ResultService) Get(ctx context.Context, id string) (*entities.ResultView, error) {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load test result", err)
	}
	return s.view(result), nil
}

// List returns results newest first, each with its abnormal-value flag
func (s *ResultService) List(ctx context.Context, filter repositories.TestResultFilter) ([]*entities.ResultView, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown result status %q", filter.Status))
	}
	results, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, storeError("failed to list test results", err)
	}

	views := make([]*entities.ResultView, len(results))
	for i, result := range results {
		views[i] = s.view(result)
	}
	return views, nil
}

func (s *ResultService) view(result *entities.TestResult) *entities.ResultView {
	return &entities.ResultView{
		TestResult: result,
		Flag:       catalog.Classify(s.catalog, result.ResultValue, result.TestName, result.Section),
	}
}
