//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/adapters/search"
	"github.com/labtrack/lims/internal/domain/entities"
)

func TestTypesenseAdapter_IndexSearchRemove(t *testing.T) {
	adapter := search.NewTypesenseAdapter(newTestTypesenseClient(t))
	ctx := context.Background()

	patient := &entities.Patient{
		ID: "10000000-0000-4000-8000-0000000000aa", PatientIDNo: "P-IT-0001",
		FirstName: "Juan", LastName: "Dela Cruz", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, adapter.Index(ctx, patient))
	defer adapter.Remove(ctx, patient.ID)

	ids, err := adapter.Search(ctx, "dela cruz", 5)
	require.NoError(t, err)
	assert.Contains(t, ids, patient.ID)

	ids, err = adapter.Search(ctx, "P-IT-0001", 5)
	require.NoError(t, err)
	assert.Contains(t, ids, patient.ID)

	require.NoError(t, adapter.Remove(ctx, patient.ID))
	ids, err = adapter.Search(ctx, "dela cruz", 5)
	require.NoError(t, err)
	assert.NotContains(t, ids, patient.ID)
}
