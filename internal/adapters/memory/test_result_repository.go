package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

type testResultRepo struct{ s *Store }

var _ repositories.TestResultRepository = (*testResultRepo)(nil)

func cloneResult(r *entities.TestResult) *entities.TestResult {
	c := *r
	return &c
}

func (r *testResultRepo) Create(_ context.Context, result *entities.TestResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&result.ID, &result.CreatedAt, &result.UpdatedAt)
	if _, exists := r.s.results[result.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("test result %s already exists", result.ID))
	}
	r.s.results[result.ID] = cloneResult(result)
	return nil
}

func (r *testResultRepo) GetByID(_ context.Context, id string) (*entities.TestResult, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result, ok := r.s.results[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("test result not found: %s", id))
	}
	return cloneResult(result), nil
}

func (r *testResultRepo) Update(_ context.Context, result *entities.TestResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.results[result.ID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("test result not found: %s", result.ID))
	}
	if existing.Status != result.Status {
		return apperrors.NewConflictError(fmt.Sprintf("test result %s is %s, not %s", result.ID, existing.Status, result.Status))
	}
	updated := cloneResult(result)
	updated.CreatedAt = existing.CreatedAt
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = r.s.now()
	}
	r.s.results[result.ID] = updated
	return nil
}

func (r *testResultRepo) UpdateStatus(_ context.Context, id string, from, to entities.ResultStatus) (*entities.TestResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.results[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("test result not found: %s", id))
	}
	if existing.Status != from {
		return nil, apperrors.NewConflictError(fmt.Sprintf("test result %s is %s, not %s", id, existing.Status, from))
	}
	existing.Status = to
	existing.UpdatedAt = r.s.now()
	return cloneResult(existing), nil
}

func (r *testResultRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.results[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("test result not found: %s", id))
	}
	delete(r.s.results, id)
	return nil
}

func (r *testResultRepo) List(_ context.Context, filter repositories.TestResultFilter) ([]*entities.TestResult, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.TestResult, 0, len(r.s.results))
	for _, result := range r.s.results {
		if filter.PatientID != "" && result.PatientID != filter.PatientID {
			continue
		}
		if filter.PatientName != "" && result.PatientName != filter.PatientName {
			continue
		}
		if filter.Section != "" && !strings.EqualFold(result.Section, filter.Section) {
			continue
		}
		if filter.Status != "" && result.Status != filter.Status {
			continue
		}
		out = append(out, cloneResult(result))
	}
	newestFirst(out,
		func(r *entities.TestResult) time.Time { return r.CreatedAt },
		func(r *entities.TestResult) string { return r.ID })
	return page(out, filter.Limit, filter.Offset), nil
}
