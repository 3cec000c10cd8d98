package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/catalog"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

func createResult(t *testing.T, env *testEnv, section, test, value string) *entities.TestResult {
	t.Helper()
	result, err := env.results.Create(context.Background(), services.ResultInput{
		PatientName: "Juan Dela Cruz",
		Section:     section,
		TestName:    test,
		ResultValue: value,
	}, medtech)
	require.NoError(t, err)
	return result
}

func TestResultService_CreateBillsRegularTests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "95")

	assert.Equal(t, entities.ResultStatusPending, result.Status)
	assert.Equal(t, "70-100 mg/dL", result.ReferenceRange)
	assert.Equal(t, "mg/dL", result.Unit)

	entries := env.billingEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, 150.0, entries[0].Amount)
	assert.Equal(t, entities.BillingStatusUnpaid, entries[0].Status)
	assert.Equal(t, result.ID, entries[0].ResultID)
	assert.Equal(t, entries[0].ID, result.BillingEntryID)

	logs := env.auditEntries(t)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Description, "auto-billed ₱150.00")

	stored, err := env.results.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, stored.BillingEntryID)
}

func TestResultService_CreateUsesDefaultPriceForUnknownTests(t *testing.T) {
	env := newTestEnv(t)

	createResult(t, env, "SEROLOGY", "Widal Test", "1:80")

	entries := env.billingEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, catalog.DefaultTestPrice, entries[0].Amount)
}

func TestResultService_ComponentIsNotBilled(t *testing.T) {
	env := newTestEnv(t)

	result := createResult(t, env, "HEMATOLOGY", "Neutrophils", "62")

	assert.Equal(t, "CBC", result.ParentTest)
	assert.Empty(t, result.BillingEntryID)
	assert.Empty(t, env.billingEntries(t))

	logs := env.auditEntries(t)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Description, "component of CBC")
}

func TestResultService_ComponentLinksToParentLine(t *testing.T) {
	env := newTestEnv(t)

	parent := createResult(t, env, "HEMATOLOGY", "CBC", "")
	component := createResult(t, env, "HEMATOLOGY", "Lymphocytes", "30")

	assert.Equal(t, parent.BillingEntryID, component.BillingEntryID)
	assert.Len(t, env.billingEntries(t), 1)
}

func TestResultService_CreateValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.results.Create(ctx, services.ResultInput{Section: "HEMATOLOGY", TestName: "ESR"}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = env.results.Create(ctx, services.ResultInput{PatientName: "Juan Dela Cruz", TestName: "ESR"}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = env.results.Create(ctx, services.ResultInput{PatientID: "missing", Section: "HEMATOLOGY", TestName: "ESR"}, medtech)
	assert.True(t, apperrors.IsNotFound(err))

	assert.Empty(t, env.billingEntries(t))
}

func TestResultService_CreateRemovesResultWhenBillingFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	billingRepo := &MockBillingRepository{BillingRepository: store.Billing()}
	billingRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	audit := services.NewAuditService(store.AuditLogs(), nil, nil)
	billing := services.NewBillingService(billingRepo, audit, nil)
	results := services.NewResultService(store.TestResults(), store.Patients(), billing, audit, catalog.Default(), nil)

	_, err := results.Create(ctx, services.ResultInput{PatientName: "Juan Dela Cruz", Section: "HEMATOLOGY", TestName: "ESR"}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))

	remaining, err := store.TestResults().List(ctx, repositories.TestResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	billingRepo.AssertExpectations(t)
}

func TestResultService_AdvanceWalksThePipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "95")

	want := []entities.ResultStatus{
		entities.ResultStatusEncoding,
		entities.ResultStatusForVerification,
		entities.ResultStatusApproved,
		entities.ResultStatusReleased,
	}
	previous := entities.ResultStatusPending
	for _, status := range want {
		advanced, err := env.results.Advance(ctx, result.ID, medtech)
		require.NoError(t, err)
		assert.Equal(t, status, advanced.Status)

		latest := env.auditEntries(t)[0]
		assert.Contains(t, latest.Description, "status: "+string(previous)+" → "+string(status))
		previous = status
	}
	assert.Len(t, env.auditEntries(t), 1+len(want))

	_, err := env.results.Advance(ctx, result.ID, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Len(t, env.auditEntries(t), 1+len(want))

	_, err = env.results.Advance(ctx, "missing", medtech)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResultService_AdvanceFailsClosedOnUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	corrupt := &entities.TestResult{ID: "r-corrupt", PatientName: "Juan Dela Cruz", Section: "HEMATOLOGY", TestName: "ESR", Status: "on_hold"}
	require.NoError(t, env.store.TestResults().Create(ctx, corrupt))

	_, err := env.results.Advance(ctx, corrupt.ID, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))

	stored, err := env.store.TestResults().GetByID(ctx, corrupt.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ResultStatus("on_hold"), stored.Status)
	assert.Empty(t, env.auditEntries(t))
}

func TestResultService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "95")
	status := func(s entities.ResultStatus) *entities.ResultStatus { return &s }
	text := func(s string) *string { return &s }

	t.Run("skipping a stage is rejected", func(t *testing.T) {
		_, err := env.results.Update(ctx, result.ID, entities.ResultUpdate{Status: status(entities.ResultStatusApproved)}, medtech)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

		_, err = env.results.Update(ctx, result.ID, entities.ResultUpdate{Status: status("cancelled")}, medtech)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("value and next status are applied and logged once", func(t *testing.T) {
		before := len(env.auditEntries(t))
		updated, err := env.results.Update(ctx, result.ID, entities.ResultUpdate{
			ResultValue: text("120"),
			Status:      status(entities.ResultStatusEncoding),
		}, medtech)
		require.NoError(t, err)
		assert.Equal(t, "120", updated.ResultValue)
		assert.Equal(t, entities.ResultStatusEncoding, updated.Status)

		logs := env.auditEntries(t)
		require.Len(t, logs, before+1)
		assert.Contains(t, logs[0].Description, "status: pending → encoding")
		assert.Contains(t, logs[0].Description, "result value")
	})

	t.Run("no change writes nothing", func(t *testing.T) {
		before := len(env.auditEntries(t))
		_, err := env.results.Update(ctx, result.ID, entities.ResultUpdate{ResultValue: text("120")}, medtech)
		require.NoError(t, err)
		assert.Len(t, env.auditEntries(t), before)
	})

	t.Run("released results are immutable", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := env.results.Advance(ctx, result.ID, medtech)
			require.NoError(t, err)
		}
		_, err := env.results.Update(ctx, result.ID, entities.ResultUpdate{ResultValue: text("99")}, medtech)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

// interleavingResultRepository runs beforeUpdate once, between the service's read and its write
type interleavingResultRepository struct {
	repositories.TestResultRepository
	beforeUpdate func()
}

func (r *interleavingResultRepository) Update(ctx context.Context, result *entities.TestResult) error {
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook()
	}
	return r.TestResultRepository.Update(ctx, result)
}

func TestResultService_UpdateNeverRevertsConcurrentAdvance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "95")

	repo := &interleavingResultRepository{TestResultRepository: env.store.TestResults()}
	editor := services.NewResultService(repo, env.store.Patients(), env.billing, env.audit, catalog.Default(), nil)
	repo.beforeUpdate = func() {
		_, err := env.results.Advance(ctx, result.ID, medtech)
		require.NoError(t, err)
	}

	value := "120"
	_, err := editor.Update(ctx, result.ID, entities.ResultUpdate{ResultValue: &value}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "got %v", err)

	stored, err := env.store.TestResults().GetByID(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ResultStatusEncoding, stored.Status)
	assert.Equal(t, "95", stored.ResultValue)
	assert.Contains(t, env.auditEntries(t)[0].Description, "status: pending → encoding")
}

func TestResultService_UpdateCannotLandOnConcurrentRelease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "95")
	for i := 0; i < 3; i++ {
		_, err := env.results.Advance(ctx, result.ID, medtech)
		require.NoError(t, err)
	}

	repo := &interleavingResultRepository{TestResultRepository: env.store.TestResults()}
	editor := services.NewResultService(repo, env.store.Patients(), env.billing, env.audit, catalog.Default(), nil)
	repo.beforeUpdate = func() {
		released, err := env.results.Advance(ctx, result.ID, medtech)
		require.NoError(t, err)
		require.Equal(t, entities.ResultStatusReleased, released.Status)
	}

	value := "99"
	_, err := editor.Update(ctx, result.ID, entities.ResultUpdate{ResultValue: &value}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "got %v", err)

	stored, err := env.store.TestResults().GetByID(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, "95", stored.ResultValue)
}

func TestResultService_DeleteKeepsBilling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "95")

	require.NoError(t, env.results.Delete(ctx, result.ID, medtech))

	_, err := env.results.Get(ctx, result.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Len(t, env.billingEntries(t), 1)
	assert.Equal(t, entities.AuditActionDelete, env.auditEntries(t)[0].Action)
}

func TestResultService_ListClassifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createResult(t, env, "CLINICAL CHEMISTRY", "Blood Glucose", "120")
	createResult(t, env, "CLINICAL CHEMISTRY", "Creatinine", "0.4")
	createResult(t, env, "SEROLOGY", "Dengue Test", "Negative")

	views, err := env.results.List(ctx, repositories.TestResultFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)

	flags := map[string]entities.Flag{}
	for _, v := range views {
		flags[v.TestName] = v.Flag
	}
	assert.Equal(t, map[string]entities.Flag{
		"Blood Glucose": entities.FlagHigh,
		"Creatinine":    entities.FlagLow,
		"Dengue Test":   entities.FlagNormal,
	}, flags)

	serology, err := env.results.List(ctx, repositories.TestResultFilter{Section: "serology"})
	require.NoError(t, err)
	assert.Len(t, serology, 1)

	_, err = env.results.List(ctx, repositories.TestResultFilter{Status: "done"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestResultService_CreatePanel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	panel, err := env.results.CreatePanel(ctx, services.PanelInput{
		PatientName: "Juan Dela Cruz",
		Section:     "HEMATOLOGY",
		ParentTest:  "CBC",
		Components: []services.PanelComponent{
			{TestName: "Hemoglobin", ResultValue: "13.5"},
			{TestName: "Neutrophils", ResultValue: "75"},
		},
	}, medtech)
	require.NoError(t, err)

	entries := env.billingEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "CBC", entries[0].TestName)
	assert.Equal(t, 350.0, entries[0].Amount)
	require.Len(t, panel.Results, 2)
	for _, r := range panel.Results {
		assert.Equal(t, panel.Billing.ID, r.BillingEntryID)
		assert.Equal(t, "CBC", r.ParentTest)
	}

	again, err := env.results.CreatePanel(ctx, services.PanelInput{PatientName: "Juan Dela Cruz", Section: "HEMATOLOGY", ParentTest: "CBC"}, medtech)
	require.NoError(t, err)
	assert.Equal(t, panel.Billing.ID, again.Billing.ID)
	assert.Len(t, again.Results, len(catalog.Default().Components("HEMATOLOGY", "CBC")))
	assert.Len(t, env.billingEntries(t), 1)
}

// flakyResultRepository stores the first okCreates results and fails every Create after that
type flakyResultRepository struct {
	repositories.TestResultRepository
	okCreates int
}

func (r *flakyResultRepository) Create(ctx context.Context, result *entities.TestResult) error {
	if r.okCreates == 0 {
		return errors.New("connection reset by peer")
	}
	r.okCreates--
	return r.TestResultRepository.Create(ctx, result)
}

func TestResultService_CreatePanelRollsBackOnComponentFailure(t *testing.T) {
	input := services.PanelInput{
		PatientName: "Juan Dela Cruz",
		Section:     "HEMATOLOGY",
		ParentTest:  "CBC",
		Components: []services.PanelComponent{
			{TestName: "Hemoglobin", ResultValue: "13.5"},
			{TestName: "Hematocrit", ResultValue: "41"},
		},
	}

	t.Run("line billed by the panel is removed", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		repo := &flakyResultRepository{TestResultRepository: env.store.TestResults(), okCreates: 1}
		results := services.NewResultService(repo, env.store.Patients(), env.billing, env.audit, catalog.Default(), nil)

		panel, err := results.CreatePanel(ctx, input, medtech)
		require.Error(t, err)
		assert.Nil(t, panel)

		stored, err := env.store.TestResults().List(ctx, repositories.TestResultFilter{})
		require.NoError(t, err)
		assert.Empty(t, stored)
		assert.Empty(t, env.billingEntries(t))

		logs := env.auditEntries(t)
		require.Len(t, logs, 3)
		assert.Equal(t, entities.AuditActionDelete, logs[0].Action)
		assert.Contains(t, logs[0].Description, "Rolled back CBC panel for Juan Dela Cruz after 1 component(s) were added, billing line removed")
	})

	t.Run("existing line is kept", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		existing := createCharge(t, env, "Juan Dela Cruz", "CBC", 350)
		repo := &flakyResultRepository{TestResultRepository: env.store.TestResults(), okCreates: 1}
		results := services.NewResultService(repo, env.store.Patients(), env.billing, env.audit, catalog.Default(), nil)

		_, err := results.CreatePanel(ctx, input, medtech)
		require.Error(t, err)

		entries := env.billingEntries(t)
		require.Len(t, entries, 1)
		assert.Equal(t, existing.ID, entries[0].ID)
		assert.Contains(t, env.auditEntries(t)[0].Description, "billing line kept")
	})
}

func TestResultService_CreatePanelValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.results.CreatePanel(ctx, services.PanelInput{PatientName: "Juan Dela Cruz", Section: "HEMATOLOGY", ParentTest: "ESR"}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = env.results.CreatePanel(ctx, services.PanelInput{
		PatientName: "Juan Dela Cruz", Section: "HEMATOLOGY", ParentTest: "CBC",
		Components: []services.PanelComponent{{TestName: "Blood Glucose"}},
	}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = env.results.CreatePanel(ctx, services.PanelInput{Section: "HEMATOLOGY", ParentTest: "CBC"}, medtech)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	assert.Empty(t, env.billingEntries(t))
}
