package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/adapters/memory"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

func fakeHash(password string) (string, error) {
	return "hashed:" + password, nil
}

func newUserService(t *testing.T) (*services.UserService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	audit := services.NewAuditService(store.AuditLogs(), nil, nil)
	return services.NewUserService(store.Users(), audit, fakeHash), store
}

func memberInput(i int) services.UserInput {
	return services.UserInput{
		Name:     fmt.Sprintf("Medtech %d", i),
		Email:    fmt.Sprintf("medtech%d@labtrack.local", i),
		Role:     entities.UserRoleMember,
		Password: "correct horse",
	}
}

func TestUserService_CreateEnforcesRoleCaps(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)

	director, err := svc.Create(ctx, services.UserInput{
		Name: "Dr. Maria Santos", Email: " Director@LabTrack.local ", Role: entities.UserRoleFaculty, Password: "correct horse",
	}, entities.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, "director@labtrack.local", director.Email)
	assert.Regexp(t, `^ENC-[0-9a-f]{8}$`, director.EncryptionKey)
	assert.Equal(t, "hashed:correct horse", director.PasswordHash)
	assert.Equal(t, entities.UserStatusActive, director.Status)

	_, err = svc.Create(ctx, services.UserInput{
		Name: "Dr. Jose Reyes", Email: "reyes@labtrack.local", Role: entities.UserRoleFaculty, Password: "correct horse",
	}, entities.SystemActor)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusinessRule))

	for i := 1; i <= entities.MaxMemberUsers; i++ {
		_, err := svc.Create(ctx, memberInput(i), entities.SystemActor)
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, memberInput(9), entities.SystemActor)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusinessRule))

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1+entities.MaxMemberUsers)

	count, err := store.Users().CountByRole(ctx, entities.UserRoleFaculty)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUserService_CreateValidates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService(t)

	cases := map[string]services.UserInput{
		"missing name":   {Email: "a@labtrack.local", Role: entities.UserRoleMember, Password: "correct horse"},
		"bad email":      {Name: "A", Email: "not-an-email", Role: entities.UserRoleMember, Password: "correct horse"},
		"unknown role":   {Name: "A", Email: "a@labtrack.local", Role: "admin", Password: "correct horse"},
		"short password": {Name: "A", Email: "a@labtrack.local", Role: entities.UserRoleMember, Password: "short"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in, entities.SystemActor)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		})
	}

	_, err := svc.Create(ctx, memberInput(1), entities.SystemActor)
	require.NoError(t, err)
	_, err = svc.Create(ctx, memberInput(1), entities.SystemActor)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestUserService_UpdateChecksTargetRoleCap(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)

	_, err := svc.Create(ctx, services.UserInput{
		Name: "Dr. Maria Santos", Email: "director@labtrack.local", Role: entities.UserRoleFaculty, Password: "correct horse",
	}, entities.SystemActor)
	require.NoError(t, err)
	member, err := svc.Create(ctx, memberInput(1), entities.SystemActor)
	require.NoError(t, err)

	faculty := entities.UserRoleFaculty
	_, err = svc.Update(ctx, member.ID, services.UserUpdate{Role: &faculty}, entities.SystemActor)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusinessRule))

	stored, err := store.Users().GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleMember, stored.Role)

	inactive := entities.UserStatusInactive
	dept := "Hematology"
	updated, err := svc.Update(ctx, member.ID, services.UserUpdate{Status: &inactive, Department: &dept}, entities.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, entities.UserStatusInactive, updated.Status)
	assert.Equal(t, "Hematology", updated.Department)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	member, err := svc.Create(ctx, memberInput(1), entities.SystemActor)
	require.NoError(t, err)

	err = svc.Delete(ctx, member.ID, member.Actor(""))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBusinessRule))

	require.NoError(t, svc.Delete(ctx, member.ID, entities.SystemActor))
	_, err = svc.Get(ctx, member.ID)
	assert.True(t, apperrors.IsNotFound(err))

	logs, err := store.AuditLogs().List(ctx, repositoriesAuditAll)
	require.NoError(t, err)
	assert.Equal(t, entities.AuditActionDelete, logs[0].Action)
}
