package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/labtrack/lims/internal/api/loaders"
	"github.com/labtrack/lims/internal/api/middleware"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

// ResultHandler handles the result pipeline endpoints
type ResultHandler struct {
	results *services.ResultService
}

// NewResultHandler creates a new result handler
func NewResultHandler(results *services.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// resultResponse is a classified result with the billing line it is charged on
type resultResponse struct {
	*entities.ResultView
	Billing *entities.BillingEntry `json:"billing,omitempty"`
}

// ListResults handles GET /api/results
func (h *ResultHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	query := r.URL.Query()
	filter := repositories.TestResultFilter{
		PatientID:   query.Get("patient_id"),
		PatientName: query.Get("patient_name"),
		Section:     strings.ToUpper(query.Get("section")),
		Status:      entities.ResultStatus(query.Get("status")),
		Limit:       limit,
		Offset:      offset,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		respondWithError(w, http.StatusBadRequest, "unknown status "+string(filter.Status))
		return
	}

	views, err := h.results.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	response := withBilling(r.Context(), views)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": response,
		"count":   len(response),
	})
}

// withBilling attaches billing lines through the request's dataloader so a page
// of results costs one billing query
func withBilling(ctx context.Context, views []*entities.ResultView) []resultResponse {
	out := make([]resultResponse, len(views))
	l := loaders.For(ctx)
	if l == nil {
		for i, v := range views {
			out[i] = resultResponse{ResultView: v}
		}
		return out
	}

	thunks := make([]func() (*entities.BillingEntry, error), len(views))
	for i, v := range views {
		if v.BillingEntryID != "" {
			thunks[i] = l.BillingLoader.Load(ctx, v.BillingEntryID)
		}
	}
	for i, v := range views {
		out[i] = resultResponse{ResultView: v}
		if thunks[i] == nil {
			continue
		}
		entry, err := thunks[i]()
		if err != nil {
			if !apperrors.IsNotFound(err) {
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("result_id", v.ID).Msg("failed to load billing line")
			}
			continue
		}
		out[i].Billing = entry
	}
	return out
}

// CreateResult handles POST /api/results
func (h *ResultHandler) CreateResult(w http.ResponseWriter, r *http.Request) {
	var in services.ResultInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.results.Create(r.Context(), in, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// CreatePanel handles POST /api/results/panels
func (h *ResultHandler) CreatePanel(w http.ResponseWriter, r *http.Request) {
	var in services.PanelInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	panel, err := h.results.CreatePanel(r.Context(), in, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, panel)
}

// GetResult handles GET /api/results/{id}
func (h *ResultHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	view, err := h.results.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, withBilling(r.Context(), []*entities.ResultView{view})[0])
}

// UpdateResult handles PATCH /api/results/{id}
func (h *ResultHandler) UpdateResult(w http.ResponseWriter, r *http.Request) {
	var update entities.ResultUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.results.Update(r.Context(), r.PathValue("id"), update, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// AdvanceResult handles POST /api/results/{id}/advance
func (h *ResultHandler) AdvanceResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.results.Advance(r.Context(), r.PathValue("id"), middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// DeleteResult handles DELETE /api/results/{id}
func (h *ResultHandler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := h.results.Delete(r.Context(), r.PathValue("id"), middleware.ActorFromRequest(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
