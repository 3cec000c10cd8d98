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

type patientRepo struct{ s *Store }

var _ repositories.PatientRepository = (*patientRepo)(nil)

func clonePatient(p *entities.Patient) *entities.Patient {
	c := *p
	if p.Birthdate != nil {
		b := *p.Birthdate
		c.Birthdate = &b
	}
	return &c
}

func (r *patientRepo) Create(_ context.Context, patient *entities.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&patient.ID, &patient.CreatedAt, &patient.UpdatedAt)
	if _, exists := r.s.patients[patient.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("patient %s already exists", patient.ID))
	}
	for _, existing := range r.s.patients {
		if patient.PatientIDNo != "" && existing.PatientIDNo == patient.PatientIDNo {
			return apperrors.NewConflictError(fmt.Sprintf("patient ID no. %s is already registered", patient.PatientIDNo))
		}
	}
	r.s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (r *patientRepo) GetByID(_ context.Context, id string) (*entities.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient not found: %s", id))
	}
	return clonePatient(p), nil
}

func (r *patientRepo) GetByIDs(_ context.Context, ids []string) ([]*entities.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.Patient, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.patients[id]; ok {
			out = append(out, clonePatient(p))
		}
	}
	return out, nil
}

func (r *patientRepo) GetByPatientIDNo(_ context.Context, patientIDNo string) (*entities.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.patients {
		if p.PatientIDNo == patientIDNo {
			return clonePatient(p), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient not found: %s", patientIDNo))
}

func (r *patientRepo) Update(_ context.Context, patient *entities.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.patients[patient.ID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient not found: %s", patient.ID))
	}
	updated := clonePatient(patient)
	updated.PatientIDNo = existing.PatientIDNo
	updated.CreatedAt = existing.CreatedAt
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = r.s.now()
	}
	r.s.patients[patient.ID] = updated
	return nil
}

func (r *patientRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("patient not found: %s", id))
	}
	delete(r.s.patients, id)
	return nil
}

func (r *patientRepo) List(_ context.Context, filter repositories.PatientFilter) ([]*entities.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	name := strings.TrimSpace(filter.Name)
	out := make([]*entities.Patient, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		if name != "" && !containsFold(p.FullName(), name) && !containsFold(p.PatientIDNo, name) {
			continue
		}
		out = append(out, clonePatient(p))
	}
	newestFirst(out,
		func(p *entities.Patient) time.Time { return p.CreatedAt },
		func(p *entities.Patient) string { return p.ID })
	return page(out, filter.Limit, filter.Offset), nil
}
