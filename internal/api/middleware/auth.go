package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

// SessionResolver resolves a bearer token to a live session
type SessionResolver interface {
	Session(ctx context.Context, accessToken string) (*entities.Session, error)
}

type sessionKey struct{}

// WithSession stores session in ctx
func WithSession(ctx context.Context, session *entities.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session attached by RequireAuth, or nil
func SessionFromContext(ctx context.Context) *entities.Session {
	session, _ := ctx.Value(sessionKey{}).(*entities.Session)
	return session
}

// ActorFromRequest returns the audit attribution for the signed-in user
func ActorFromRequest(r *http.Request) entities.Actor {
	session := SessionFromContext(r.Context())
	if session == nil || session.User == nil {
		return entities.Actor{IPAddress: ClientIP(r)}
	}
	return session.User.Actor(ClientIP(r))
}

// BearerToken extracts the access token from the Authorization header. EventSource
// clients cannot set headers, so the access_token query parameter is accepted too.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}

// ClientIP returns the caller address, preferring the first X-Forwarded-For hop
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireAuth rejects requests without a valid session and attaches the session otherwise
func RequireAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "missing access token")
				return
			}

			session, err := resolver.Session(r.Context(), token)
			if err != nil {
				if !apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) {
					observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("failed to resolve session")
				}
				unauthorized(w, "invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
