package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

const minPasswordLength = 8

// PasswordHasher turns a plaintext password into the stored hash
type PasswordHasher func(password string) (string, error)

// UserInput describes a new account
type UserInput struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Role       entities.UserRole `json:"role"`
	Department string            `json:"department"`
	Password   string            `json:"password"`
}

// UserUpdate is a partial account update. Nil fields are left unchanged.
type UserUpdate struct {
	Name       *string              `json:"name,omitempty"`
	Email      *string              `json:"email,omitempty"`
	Role       *entities.UserRole   `json:"role,omitempty"`
	Department *string              `json:"department,omitempty"`
	Status     *entities.UserStatus `json:"status,omitempty"`
	Password   *string              `json:"password,omitempty"`
}

// UserService manages staff accounts and enforces the role caps
type UserService struct {
	repo  repositories.UserRepository
	audit *AuditService
	hash  PasswordHasher
	now   func() time.Time
}

// NewUserService creates a new user service
func NewUserService(repo repositories.UserRepository, audit *AuditService, hash PasswordHasher) *UserService {
	return &UserService{
		repo:  repo,
		audit: audit,
		hash:  hash,
		now:   time.Now,
	}
}

// NewEncryptionKey returns an opaque per-user audit identifier
func NewEncryptionKey() string {
	return "ENC-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Create adds an account. A full role is rejected before anything is written.
func (s *UserService) Create(ctx context.Context, in UserInput, actor entities.Actor) (*entities.User, error) {
	if err := required(map[string]string{"name": in.Name, "email": in.Email}); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !in.Role.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown role %q", in.Role))
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if err := s.checkCap(ctx, in.Role); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	now := s.now().UTC()
	user := &entities.User{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(in.Name),
		Email:         email,
		Role:          in.Role,
		Department:    strings.TrimSpace(in.Department),
		Status:        entities.UserStatusActive,
		EncryptionKey: NewEncryptionKey(),
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeError("failed to create user", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionEdit, user.Name, entities.ResourceTypeUser,
		fmt.Sprintf("Created %s account for %s (%s)", user.Role, user.Name, user.Email))
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid email %q", raw))
	}
	return strings.ToLower(addr.Address), nil
}

func (s *UserService) checkCap(ctx context.Context, role entities.UserRole) error {
	count, err := s.repo.CountByRole(ctx, role)
	if err != nil {
		return storeError("failed to count users", err)
	}
	if count >= role.Cap() {
		return apperrors.NewBusinessRuleError(fmt.Sprintf("at most %d %s account(s) may exist", role.Cap(), role))
	}
	return nil
}

// Update changes an account. Moving into a full role is rejected before anything is written.
func (s *UserService) Update(ctx context.Context, id string, update UserUpdate, actor entities.Actor) (*entities.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load user", err)
	}

	var changed []string
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name must not be empty")
		}
		if name != user.Name {
			user.Name = name
			changed = append(changed, "name")
		}
	}
	if update.Email != nil {
		email, err := normalizeEmail(*update.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			user.Email = email
			changed = append(changed, "email")
		}
	}
	if update.Department != nil && strings.TrimSpace(*update.Department) != user.Department {
		user.Department = strings.TrimSpace(*update.Department)
		changed = append(changed, "department")
	}
	if update.Status != nil && *update.Status != user.Status {
		if *update.Status != entities.UserStatusActive && *update.Status != entities.UserStatusInactive {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", *update.Status))
		}
		user.Status = *update.Status
		changed = append(changed, "status "+string(user.Status))
	}
	if update.Role != nil && *update.Role != user.Role {
		if !update.Role.IsValid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown role %q", *update.Role))
		}
		if err := s.checkCap(ctx, *update.Role); err != nil {
			return nil, err
		}
		changed = append(changed, fmt.Sprintf("role %s → %s", user.Role, *update.Role))
		user.Role = *update.Role
	}
	if update.Password != nil {
		if len(*update.Password) < minPasswordLength {
			return nil, apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		hash, err := s.hash(*update.Password)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to hash password", err)
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}

	if len(changed) == 0 {
		return user, nil
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, storeError("failed to update user", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionEdit, user.Name, entities.ResourceTypeUser,
		fmt.Sprintf("Updated account %s: %s", user.Email, strings.Join(changed, ", ")))
	return user, nil
}

// Delete removes an account. Users cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id string, actor entities.Actor) error {
	if actor.UserID == id {
		return apperrors.NewBusinessRuleError("you cannot delete your own account")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeError("failed to load user", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError("failed to delete user", err)
	}

	s.audit.Record(ctx, actor, entities.AuditActionDelete, user.Name, entities.ResourceTypeUser,
		fmt.Sprintf("Deleted %s account %s (%s)", user.Role, user.Name, user.Email))
	return nil
}

// Get returns one account
func (s *UserService) Get(ctx context.Context, id string) (*entities.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to load user", err)
	}
	return user, nil
}

// List returns every account ordered by name
func (s *UserService) List(ctx context.Context) ([]*entities.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeError("failed to list users", err)
	}
	return users, nil
}
