package providers

import (
	"context"

	"github.com/labtrack/lims/internal/domain/entities"
)

// AuthProvider issues and verifies email/password sessions.
// The workflow engine only consumes the identity a session resolves to.
type AuthProvider interface {
	// SignInWithPassword verifies credentials and issues a session
	SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error)

	// GetSession resolves an access token to its session
	GetSession(ctx context.Context, accessToken string) (*entities.Session, error)

	// SignOut revokes an access token
	SignOut(ctx context.Context, accessToken string) error

	// OnAuthStateChange registers a listener for sign-in and sign-out events.
	// The returned function removes the listener and is safe to call more than once.
	OnAuthStateChange(listener func(entities.AuthEvent)) (unsubscribe func())
}
