package handlers

import (
	"net/http"
	"strings"

	"github.com/labtrack/lims/internal/domain/catalog"
)

// CatalogHandler exposes the reference catalog and the classifier
type CatalogHandler struct {
	catalog catalog.Catalog
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(c catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// GetCatalog handles GET /api/catalog
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"registration_fee": h.catalog.RegistrationFee(),
		"sections":         h.catalog.Sections(),
	})
}

// Classify handles GET /api/catalog/classify?value=&test=&section=
func (h *CatalogHandler) Classify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	value := query.Get("value")
	testName := query.Get("test")
	section := strings.ToUpper(query.Get("section"))
	if testName == "" {
		respondWithError(w, http.StatusBadRequest, "test parameter is required")
		return
	}

	response := map[string]interface{}{
		"value":   value,
		"test":    testName,
		"section": section,
		"flag":    catalog.Classify(h.catalog, value, testName, section),
	}
	if rng, ok := h.catalog.Range(section, testName); ok {
		response["reference_range"] = rng.String()
	}
	respondWithJSON(w, http.StatusOK, response)
}
