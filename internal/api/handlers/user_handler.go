package handlers

import (
	"net/http"

	"github.com/labtrack/lims/internal/api/middleware"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
)

// UserHandler handles staff account management
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// requireFaculty lets only the faculty account manage users
func requireFaculty(w http.ResponseWriter, r *http.Request) bool {
	session := middleware.SessionFromContext(r.Context())
	if session == nil || session.User == nil || session.User.Role != entities.UserRoleFaculty {
		respondWithError(w, http.StatusForbidden, "only faculty can manage accounts")
		return false
	}
	return true
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if !requireFaculty(w, r) {
		return
	}
	var in services.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := h.users.Create(r.Context(), in, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// UpdateUser handles PATCH /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if !requireFaculty(w, r) {
		return
	}
	var update services.UserUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), r.PathValue("id"), update, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if !requireFaculty(w, r) {
		return
	}
	if err := h.users.Delete(r.Context(), r.PathValue("id"), middleware.ActorFromRequest(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
