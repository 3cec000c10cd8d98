// Package memory is an in-process implementation of every repository, used for
// demos, the labctl CLI and service tests. It has the same read/write shapes as
// the Postgres adapters.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
)

// Store holds every table behind a single lock.
type Store struct {
	mu       sync.RWMutex
	patients map[string]*entities.Patient
	results  map[string]*entities.TestResult
	billing  map[string]*entities.BillingEntry
	audit    []*entities.AuditLogEntry
	users    map[string]*entities.User
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the timestamp source used when a row arrives without one
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		patients: make(map[string]*entities.Patient),
		results:  make(map[string]*entities.TestResult),
		billing:  make(map[string]*entities.BillingEntry),
		users:    make(map[string]*entities.User),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Patients returns the patient repository view of the store
func (s *Store) Patients() repositories.PatientRepository { return &patientRepo{s} }

// TestResults returns the test result repository view of the store
func (s *Store) TestResults() repositories.TestResultRepository { return &testResultRepo{s} }

// Billing returns the billing repository view of the store
func (s *Store) Billing() repositories.BillingRepository { return &billingRepo{s} }

// AuditLogs returns the audit log repository view of the store
func (s *Store) AuditLogs() repositories.AuditLogRepository { return &auditLogRepo{s} }

// Users returns the user repository view of the store
func (s *Store) Users() repositories.UserRepository { return &userRepo{s} }

func (s *Store) stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := s.now()
	if created.IsZero() {
		*created = now
	}
	if updated != nil && updated.IsZero() {
		*updated = *created
	}
}

// page applies offset/limit to an already sorted slice. A non-positive limit means no limit.
func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// newestFirst orders by created_at descending, breaking ties on id for stable output
func newestFirst[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) > id(items[j])
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
