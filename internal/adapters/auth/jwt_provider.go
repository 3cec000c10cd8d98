package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	"github.com/labtrack/lims/internal/domain/repositories"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

const revokedKeyPrefix = "auth:revoked:"

var errInvalidCredentials = apperrors.NewUnauthorizedError("invalid email or password")

// Claims are the session token claims
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTConfig configures token issuance
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// JWTProvider implements AuthProvider with HS256 session tokens.
// Revoked token IDs are kept in the cache provider until the token would have expired anyway.
type JWTProvider struct {
	users   repositories.UserRepository
	revoked providers.CacheProvider
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	listeners map[uint64]func(entities.AuthEvent)
	nextID    uint64
}

var _ providers.AuthProvider = (*JWTProvider)(nil)

// NewJWTProvider creates a token provider backed by users and the revocation cache
func NewJWTProvider(cfg JWTConfig, users repositories.UserRepository, revoked providers.CacheProvider) (*JWTProvider, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &JWTProvider{
		users:     users,
		revoked:   revoked,
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		now:       time.Now,
		listeners: make(map[uint64]func(entities.AuthEvent)),
	}, nil
}

// HashPassword returns the bcrypt hash stored for a password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// SignInWithPassword verifies credentials and issues a session
func (p *JWTProvider) SignInWithPassword(ctx context.Context, email, password string) (*entities.Session, error) {
	user, err := p.users.GetByEmail(ctx, strings.TrimSpace(email))
	if apperrors.IsNotFound(err) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Status != entities.UserStatusActive || user.PasswordHash == "" {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	now := p.now()
	tokenID := uuid.NewString()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign session token", err)
	}

	session := &entities.Session{
		AccessToken: signed,
		TokenID:     tokenID,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}
	p.emit(entities.AuthEvent{Type: entities.AuthEventSignedIn, Session: session})
	return session, nil
}

// GetSession resolves an access token to its session
func (p *JWTProvider) GetSession(ctx context.Context, accessToken string) (*entities.Session, error) {
	claims, err := p.parse(accessToken)
	if err != nil {
		return nil, err
	}

	revoked, err := p.revoked.Exists(ctx, revokedKeyPrefix+claims.ID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to check session revocation", err)
	}
	if revoked {
		return nil, apperrors.NewUnauthorizedError("session has been signed out")
	}

	user, err := p.users.GetByID(ctx, claims.Subject)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NewUnauthorizedError("session user no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if user.Status != entities.UserStatusActive {
		return nil, apperrors.NewUnauthorizedError("account is inactive")
	}

	return &entities.Session{
		AccessToken: accessToken,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// SignOut revokes an access token for the rest of its lifetime
func (p *JWTProvider) SignOut(ctx context.Context, accessToken string) error {
	session, err := p.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}

	remaining := int(session.ExpiresAt.Sub(p.now()).Seconds()) + 1
	if err := p.revoked.Set(ctx, revokedKeyPrefix+session.TokenID, []byte("1"), remaining); err != nil {
		return apperrors.NewExternalError("failed to revoke session", err)
	}

	p.emit(entities.AuthEvent{Type: entities.AuthEventSignedOut, Session: session})
	return nil
}

// OnAuthStateChange registers a listener for sign-in and sign-out events
func (p *JWTProvider) OnAuthStateChange(listener func(entities.AuthEvent)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *JWTProvider) emit(event entities.AuthEvent) {
	p.mu.Lock()
	listeners := make([]func(entities.AuthEvent), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

func (p *JWTProvider) parse(accessToken string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.NewUnauthorizedError("session has expired")
		}
		return nil, apperrors.NewUnauthorizedError("invalid session token")
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, apperrors.NewUnauthorizedError("invalid session token")
	}
	return claims, nil
}
