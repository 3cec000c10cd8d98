package handlers

import (
	"net/http"
	"time"

	"github.com/labtrack/lims/internal/api/middleware"
	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
)

// BillingHandler handles the billing ledger endpoints
type BillingHandler struct {
	billing *services.BillingService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billing *services.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// ListBilling handles GET /api/billing
func (h *BillingHandler) ListBilling(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r, 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	query := r.URL.Query()

	entries, err := h.billing.List(r.Context(), repositories.BillingFilter{
		PatientID:   query.Get("patient_id"),
		PatientName: query.Get("patient_name"),
		Status:      entities.BillingStatus(query.Get("status")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// CreateBilling handles POST /api/billing for charges entered by hand
func (h *BillingHandler) CreateBilling(w http.ResponseWriter, r *http.Request) {
	var in services.BillingInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	entry, err := h.billing.Create(r.Context(), in, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

// Summary handles GET /api/billing/summary
func (h *BillingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.billing.Aggregate(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

type billingStatusRequest struct {
	Status   entities.BillingStatus `json:"status"`
	ORNumber string                 `json:"or_number,omitempty"`
	DatePaid *time.Time             `json:"date_paid,omitempty"`
}

// SetStatus handles PATCH /api/billing/{id}/status
func (h *BillingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req billingStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var receipt *entities.Receipt
	if req.ORNumber != "" || req.DatePaid != nil {
		receipt = &entities.Receipt{ORNumber: req.ORNumber, DatePaid: req.DatePaid}
	}

	entry, err := h.billing.SetStatus(r.Context(), r.PathValue("id"), req.Status, receipt, middleware.ActorFromRequest(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// DeleteBilling handles DELETE /api/billing/{id}
func (h *BillingHandler) DeleteBilling(w http.ResponseWriter, r *http.Request) {
	if err := h.billing.Delete(r.Context(), r.PathValue("id"), middleware.ActorFromRequest(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
