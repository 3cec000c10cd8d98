package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	tsclient "github.com/labtrack/lims/internal/infrastructure/clients/typesense"
)

const defaultSearchLimit = 20

// TypesenseAdapter implements patient search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.PatientSearchProvider = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a patient document
func (a *TypesenseAdapter) Index(ctx context.Context, patient *entities.Patient) error {
	_, err := a.client.Client().Collection(tsclient.PatientsCollection).Documents().Upsert(ctx, patientDocument(patient))
	if err != nil {
		return fmt.Errorf("failed to index patient: %w", err)
	}
	return nil
}

// Remove deletes a patient document. A document that was never indexed is not an error.
func (a *TypesenseAdapter) Remove(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.PatientsCollection).Document(id).Delete(ctx)
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == 404 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove patient from index: %w", err)
	}
	return nil
}

// Search returns the IDs of matching patients, best match first
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]string, error) {
	result, err := a.client.Client().Collection(tsclient.PatientsCollection).Documents().Search(ctx, searchParams(query, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func patientDocument(p *entities.Patient) map[string]interface{} {
	return map[string]interface{}{
		"id":             p.ID,
		"patient_id_no":  p.PatientIDNo,
		"first_name":     strings.TrimSpace(p.FirstName),
		"middle_name":    strings.TrimSpace(p.MiddleName),
		"last_name":      strings.TrimSpace(p.LastName),
		"full_name":      p.FullName(),
		"sex":            p.Sex,
		"contact_number": p.ContactNumber,
		"created_at":     p.CreatedAt.Unix(),
	}
}

func searchParams(query string, limit int) *api.SearchCollectionParams {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.TrimSpace(query)
	if q == "" {
		q = "*"
	}
	return &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("full_name,last_name,first_name,patient_id_no,contact_number"),
		SortBy:  pointer.String("_text_match:desc,created_at:desc"),
		PerPage: pointer.Int(limit),
		Page:    pointer.Int(1),
	}
}
