package repositories

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// Update updates a user
	Update(ctx context.Context, user *entities.User) error

	// Delete deletes a user
	Delete(ctx context.Context, id string) error

	// List retrieves all users ordered by name
	List(ctx context.Context) ([]*entities.User, error)

	// CountByRole counts users holding role
	CountByRole(ctx context.Context, role entities.UserRole) (int, error)
}
