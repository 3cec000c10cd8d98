package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

var userColumns = columns(
	"id", "name", "email", "role", "department", "status", "encryption_key", "password_hash",
	"last_login_at", "created_at", "updated_at",
)

// UserAdapter implements UserRepository on Postgres
type UserAdapter struct {
	base
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) *UserAdapter {
	return &UserAdapter{base: newBase(client)}
}

var _ repositories.UserRepository = (*UserAdapter)(nil)

func userRecord(u *entities.User) goqu.Record {
	return goqu.Record{
		"name":           u.Name,
		"email":          u.Email,
		"role":           u.Role,
		"department":     u.Department,
		"status":         u.Status,
		"encryption_key": u.EncryptionKey,
		"password_hash":  u.PasswordHash,
		"last_login_at":  nullTime(u.LastLoginAt),
		"updated_at":     u.UpdatedAt,
	}
}

// Create inserts a user
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	record := userRecord(user)
	record["id"] = user.ID
	record["created_at"] = user.CreatedAt

	query, args, err := a.db.Insert(tableUsers).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return writeError(fmt.Sprintf("email %s is already in use", user.Email), "failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("user with id %s not found", id))
}

// GetByEmail retrieves a user by email, ignoring case
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.getOne(ctx, goqu.Func("LOWER", goqu.C("email")).Eq(goqu.Func("LOWER", email)),
		fmt.Sprintf("user with email %s not found", email))
}

func (a *UserAdapter) getOne(ctx context.Context, where exp.Expression, notFound string) (*entities.User, error) {
	query, args, err := a.db.From(tableUsers).Prepared(true).
		Select(userColumns...).
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var user entities.User
	err = a.client.DBx().GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	return &user, nil
}

// Update updates a user
func (a *UserAdapter) Update(ctx context.Context, user *entities.User) error {
	query, args, err := a.db.Update(tableUsers).Prepared(true).
		Set(userRecord(user)).
		Where(goqu.Ex{"id": user.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(fmt.Sprintf("email %s is already in use", user.Email), "failed to update user", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", user.ID))
	}
	return nil
}

// Delete deletes a user
func (a *UserAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(tableUsers).Prepared(true).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	return a.execAffectingOne(ctx, query, args, "failed to delete user",
		fmt.Sprintf("user with id %s not found", id))
}

// List retrieves all users ordered by name
func (a *UserAdapter) List(ctx context.Context) ([]*entities.User, error) {
	query, args, err := a.db.From(tableUsers).Prepared(true).
		Select(userColumns...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	users := []*entities.User{}
	if err := a.client.DBx().SelectContext(ctx, &users, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list users", err)
	}
	return users, nil
}

// CountByRole counts users holding role
func (a *UserAdapter) CountByRole(ctx context.Context, role entities.UserRole) (int, error) {
	query, args, err := a.db.From(tableUsers).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"role": role}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count users", err)
	}
	return count, nil
}
