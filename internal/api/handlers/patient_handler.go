package handlers

import (
	"net/http"

	"github.com/labtrack/lims/internal/api/middleware"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
)

// PatientHandler handles patient registration and lookup
type PatientHandler struct {
	patients *services.PatientService
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(patients *services.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

// ListPatients handles GET /api/patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	patients, err := h.patients.List(r.Context(), repositories.PatientFilter{
		Name:   r.URL.Query().Get("name"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"patients": patients,
		"count":    len(patients),
	})
}

// RegisterPatient handles POST /api/patients
func (h *PatientHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var patient entities.Patient
	if err := decodeJSON(w, r, &patient); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	registration, err := h.patients.Register(r.Context(), &patient, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, registration)
}

// SearchPatients handles GET /api/patients/search?q=
func (h *PatientHandler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	patients, err := h.patients.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"patients": patients,
		"count":    len(patients),
	})
}

// GetPatient handles GET /api/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.patients.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, patient)
}

// UpdatePatient handles PATCH /api/patients/{id}
func (h *PatientHandler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	var update entities.PatientUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	patient, err := h.patients.Update(r.Context(), r.PathValue("id"), update, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, patient)
}

// DeletePatient handles DELETE /api/patients/{id}
func (h *PatientHandler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	if err := h.patients.Delete(r.Context(), r.PathValue("id"), middleware.ActorFromRequest(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
