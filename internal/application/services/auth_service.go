package services

import (
	"context"
	"time"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
)

// AuthService signs staff in and out and attributes requests to them
type AuthService struct {
	provider providers.AuthProvider
	users    repositories.UserRepository
	audit    *AuditService
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(provider providers.AuthProvider, users repositories.UserRepository, audit *AuditService) *AuthService {
	return &AuthService{
		provider: provider,
		users:    users,
		audit:    audit,
		now:      time.Now,
	}
}

// Login verifies credentials, stamps the last login time and audits the sign-in
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*entities.Session, error) {
	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user := session.User
	loginAt := s.now().UTC()
	user.LastLoginAt = &loginAt
	if err := s.users.Update(ctx, user); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	s.audit.Record(ctx, user.Actor(ip), entities.AuditActionLogin, user.Email, entities.ResourceTypeSession, "Signed in")
	return session, nil
}

// Logout revokes the session and audits the sign-out
func (s *AuthService) Logout(ctx context.Context, accessToken, ip string) error {
	session, err := s.provider.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return err
	}

	s.audit.Record(ctx, session.User.Actor(ip), entities.AuditActionLogout, session.User.Email, entities.ResourceTypeSession, "Signed out")
	return nil
}

// Session resolves an access token
func (s *AuthService) Session(ctx context.Context, accessToken string) (*entities.Session, error) {
	return s.provider.GetSession(ctx, accessToken)
}
