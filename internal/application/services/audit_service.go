package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

// AuditInput is one audit entry to append
type AuditInput struct {
	Actor        entities.Actor
	Action       entities.AuditAction
	Resource     string
	ResourceType string
	Description  string
}

// AuditService owns the append-only audit trail and its live subscriptions
type AuditService struct {
	repo    repositories.AuditLogRepository
	bus     providers.EventBus
	metrics *observability.Metrics
	now     func() time.Time

	// mu serializes append+publish so subscribers observe append order
	mu sync.Mutex
}

// NewAuditService creates a new audit service. bus may be nil, which disables live delivery.
func NewAuditService(repo repositories.AuditLogRepository, bus providers.EventBus, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		repo:    repo,
		bus:     bus,
		metrics: metrics,
		now:     time.Now,
	}
}

// Append stores an entry and publishes it to live subscribers.
// A publish failure is logged; the stored entry is still returned.
func (s *AuditService) Append(ctx context.Context, in AuditInput) (*entities.AuditLogEntry, error) {
	if !in.Action.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown audit action %q", in.Action))
	}
	if strings.TrimSpace(in.Actor.Name) == "" {
		return nil, apperrors.NewValidationError("audit entry needs an actor name")
	}

	entry := &entities.AuditLogEntry{
		ID:            uuid.NewString(),
		UserName:      in.Actor.Name,
		EncryptionKey: in.Actor.EncryptionKey,
		Action:        in.Action,
		Resource:      in.Resource,
		ResourceType:  in.ResourceType,
		Description:   in.Description,
	}
	if in.Actor.UserID != "" {
		id := in.Actor.UserID
		entry.UserID = &id
	}
	if in.Actor.IPAddress != "" {
		ip := in.Actor.IPAddress
		entry.IPAddress = &ip
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.CreatedAt = s.now().UTC()
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, storeError("failed to append audit entry", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, providers.EventChannelAuditLogs, entry); err != nil {
			s.metrics.RecordAuditFailure(ctx, "publish")
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("audit_id", entry.ID).
				Msg("failed to publish audit entry")
		}
	}

	return entry, nil
}

// Record appends an entry on behalf of a business operation. Failures are logged
// and counted but never returned, so they cannot change the operation's outcome.
func (s *AuditService) Record(ctx context.Context, actor entities.Actor, action entities.AuditAction, resource, resourceType, description string) {
	_, err := s.Append(ctx, AuditInput{
		Actor:        actor,
		Action:       action,
		Resource:     resource,
		ResourceType: resourceType,
		Description:  description,
	})
	if err != nil {
		s.metrics.RecordAuditFailure(ctx, "append")
		observability.LoggerFromContext(ctx).Error().
			Err(err).
			Str("action", string(action)).
			Str("resource", resource).
			Msg("audit entry dropped")
	}
}

// List returns entries most recent first
func (s *AuditService) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLogEntry, error) {
	if filter.Action != "" && !filter.Action.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown audit action %q", filter.Action))
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError("failed to list audit entries", err)
	}
	return entries, nil
}

// Subscribe calls onInsert once for every entry appended after it returns, in append order.
// Historical entries are not replayed. The subscription ends when ctx is done or when the
// returned unsubscribe is called; unsubscribe may be called any number of times and waits
// for an in-flight callback, so it must not be called from inside onInsert.
func (s *AuditService) Subscribe(ctx context.Context, onInsert func(*entities.AuditLogEntry)) (unsubscribe func(), err error) {
	if s.bus == nil {
		return nil, apperrors.NewInternalError("audit subscriptions are not configured", nil)
	}

	subCtx, cancel := context.WithCancel(ctx)
	entries, err := s.bus.Subscribe(subCtx, providers.EventChannelAuditLogs)
	if err != nil {
		cancel()
		return nil, apperrors.NewExternalError("failed to subscribe to audit entries", err)
	}
	s.metrics.RecordAuditSubscribers(ctx, 1)

	var stopped atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer s.metrics.RecordAuditSubscribers(context.WithoutCancel(ctx), -1)
		for entry := range entries {
			if stopped.Load() {
				continue
			}
			onInsert(entry)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
			<-done
		})
	}, nil
}
