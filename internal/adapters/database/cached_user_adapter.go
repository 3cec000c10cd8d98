package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
)

// userByIDTTL bounds how long a cached account can lag a write made outside this wrapper
const userByIDTTL = 60

// CachedUserAdapter wraps a UserRepository with a read-through cache for GetByID,
// which session resolution calls on every authenticated request.
type CachedUserAdapter struct {
	repositories.UserRepository
	cache providers.CacheProvider
}

// NewCachedUserAdapter creates a new cached user adapter
func NewCachedUserAdapter(adapter repositories.UserRepository, cache providers.CacheProvider) *CachedUserAdapter {
	return &CachedUserAdapter{
		UserRepository: adapter,
		cache:          cache,
	}
}

var _ repositories.UserRepository = (*CachedUserAdapter)(nil)

func userCacheKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

// cachedUser keeps the password hash, which the public JSON form drops
type cachedUser struct {
	entities.User
	PasswordHash string `json:"password_hash"`
}

// GetByID retrieves a user by ID with caching
func (a *CachedUserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	cacheKey := userCacheKey(id)
	logger := observability.LoggerFromContext(ctx)

	if data, err := a.cache.Get(ctx, cacheKey); err == nil {
		var cached cachedUser
		if err := json.Unmarshal(data, &cached); err == nil {
			user := cached.User
			user.PasswordHash = cached.PasswordHash
			return &user, nil
		}
		logger.Warn().Err(err).Str("user_id", id).Msg("failed to decode cached user")
	}

	user, err := a.UserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cachedUser{User: *user, PasswordHash: user.PasswordHash}); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, userByIDTTL); err != nil {
			logger.Warn().Err(err).Str("user_id", id).Msg("failed to cache user")
		}
	}
	return user, nil
}

// Update updates the user and drops its cached copy
func (a *CachedUserAdapter) Update(ctx context.Context, user *entities.User) error {
	if err := a.UserRepository.Update(ctx, user); err != nil {
		return err
	}
	a.invalidate(ctx, user.ID)
	return nil
}

// Delete deletes the user and drops its cached copy
func (a *CachedUserAdapter) Delete(ctx context.Context, id string) error {
	if err := a.UserRepository.Delete(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

func (a *CachedUserAdapter) invalidate(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, userCacheKey(id)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("user_id", id).Msg("failed to invalidate cached user")
	}
}
