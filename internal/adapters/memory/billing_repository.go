package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

type billingRepo struct{ s *Store }

var _ repositories.BillingRepository = (*billingRepo)(nil)

func cloneBilling(b *entities.BillingEntry) *entities.BillingEntry {
	c := *b
	if b.DatePaid != nil {
		d := *b.DatePaid
		c.DatePaid = &d
	}
	return &c
}

func (r *billingRepo) Create(_ context.Context, entry *entities.BillingEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if _, exists := r.s.billing[entry.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("billing entry %s already exists", entry.ID))
	}
	r.s.billing[entry.ID] = cloneBilling(entry)
	return nil
}

func (r *billingRepo) GetByID(_ context.Context, id string) (*entities.BillingEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entry, ok := r.s.billing[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("billing entry not found: %s", id))
	}
	return cloneBilling(entry), nil
}

func (r *billingRepo) GetByIDs(_ context.Context, ids []string) ([]*entities.BillingEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.BillingEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := r.s.billing[id]; ok {
			out = append(out, cloneBilling(entry))
		}
	}
	return out, nil
}

func (r *billingRepo) FindByPatientAndTest(_ context.Context, patientName, testName string) (*entities.BillingEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *entities.BillingEntry
	for _, entry := range r.s.billing {
		if entry.PatientName != patientName || entry.TestName != testName {
			continue
		}
		if found == nil || entry.CreatedAt.After(found.CreatedAt) ||
			(entry.CreatedAt.Equal(found.CreatedAt) && entry.ID > found.ID) {
			found = entry
		}
	}
	if found == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no billing entry for %s / %s", patientName, testName))
	}
	return cloneBilling(found), nil
}

func (r *billingRepo) UpdatePayment(_ context.Context, entry *entities.BillingEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.billing[entry.ID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("billing entry not found: %s", entry.ID))
	}
	existing.Status = entry.Status
	existing.ORNumber = entry.ORNumber
	existing.DatePaid = nil
	if entry.DatePaid != nil {
		d := *entry.DatePaid
		existing.DatePaid = &d
	}
	existing.ResultID = entry.ResultID
	existing.UpdatedAt = entry.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = r.s.now()
	}
	return nil
}

func (r *billingRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.billing[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("billing entry not found: %s", id))
	}
	delete(r.s.billing, id)
	return nil
}

func (r *billingRepo) List(_ context.Context, filter repositories.BillingFilter) ([]*entities.BillingEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.BillingEntry, 0, len(r.s.billing))
	for _, entry := range r.s.billing {
		if filter.PatientID != "" && entry.PatientID != filter.PatientID {
			continue
		}
		if filter.PatientName != "" && entry.PatientName != filter.PatientName {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, cloneBilling(entry))
	}
	newestFirst(out,
		func(b *entities.BillingEntry) time.Time { return b.CreatedAt },
		func(b *entities.BillingEntry) string { return b.ID })
	return page(out, filter.Limit, filter.Offset), nil
}
