package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/domain/entities"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

type stubResolver struct {
	sessions map[string]*entities.Session
}

func (s stubResolver) Session(_ context.Context, token string) (*entities.Session, error) {
	if session, ok := s.sessions[token]; ok {
		return session, nil
	}
	return nil, apperrors.NewUnauthorizedError("invalid session")
}

func TestRequireAuth(t *testing.T) {
	user := &entities.User{ID: "u1", Name: "Maria Santos", EncryptionKey: "ENC-1a2b3c4d"}
	resolver := stubResolver{sessions: map[string]*entities.Session{"good": {AccessToken: "good", User: user}}}

	var got entities.Actor
	handler := RequireAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromRequest(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing access token"}`, rec.Body.String())
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid header token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		req.Header.Set("Authorization", "Bearer good")
		req.Header.Set("X-Forwarded-For", "10.0.0.7, 172.16.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, entities.Actor{UserID: "u1", Name: "Maria Santos", EncryptionKey: "ENC-1a2b3c4d", IPAddress: "10.0.0.7"}, got)
	})

	t.Run("query token for event streams", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stream/audit-logs?access_token=good", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.20:53311"
	assert.Equal(t, "192.168.1.20", ClientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("listed origin is echoed", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://lab.example.org"})(next)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://lab.example.org")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "https://lab.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("unlisted origin gets no allow header", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://lab.example.org"})(next)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short circuits", func(t *testing.T) {
		called := false
		handler := CORSMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		req := httptest.NewRequest(http.MethodOptions, "/api/results", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.False(t, called)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/patients/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	route := new(string)
	req := httptest.NewRequest(http.MethodGet, "/api/patients/0f9c", nil)
	req = req.WithContext(context.WithValue(req.Context(), routeKey{}, route))
	rec := httptest.NewRecorder()

	RoutePattern(mux).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET /api/patients/{id}", *route)
}

func TestObservabilityMiddlewareWithoutMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ObservabilityMiddleware(nil)(RoutePattern(mux))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
