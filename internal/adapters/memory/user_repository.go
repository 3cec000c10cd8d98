package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

type userRepo struct{ s *Store }

var _ repositories.UserRepository = (*userRepo)(nil)

func cloneUser(u *entities.User) *entities.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func (r *userRepo) emailTaken(email, exceptID string) bool {
	for _, u := range r.s.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(_ context.Context, user *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if _, exists := r.s.users[user.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("user %s already exists", user.ID))
	}
	if r.emailTaken(user.Email, "") {
		return apperrors.NewConflictError(fmt.Sprintf("email %s is already in use", user.Email))
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: %s", id))
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: %s", email))
}

func (r *userRepo) Update(_ context.Context, user *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[user.ID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("user not found: %s", user.ID))
	}
	if r.emailTaken(user.Email, user.ID) {
		return apperrors.NewConflictError(fmt.Sprintf("email %s is already in use", user.Email))
	}
	updated := cloneUser(user)
	updated.CreatedAt = existing.CreatedAt
	if updated.UpdatedAt.IsZero() {
		updated.UpdatedAt = r.s.now()
	}
	r.s.users[user.ID] = updated
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("user not found: %s", id))
	}
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) List(_ context.Context) ([]*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *userRepo) CountByRole(_ context.Context, role entities.UserRole) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
