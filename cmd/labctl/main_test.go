package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	t.Setenv("CATALOG_PATH", "")

	out, err := execute(t, "classify", "--section", "clinical chemistry", "--test", "Blood Glucose", "120")
	require.NoError(t, err)
	assert.Equal(t, "high (reference 70-100 mg/dL)\n", out)

	out, err = execute(t, "classify", "--section", "SEROLOGY", "--test", "Dengue Test", "Negative")
	require.NoError(t, err)
	assert.Equal(t, "normal (reference Negative)\n", out)

	out, err = execute(t, "classify", "--test", "Unknown Test", "7")
	require.NoError(t, err)
	assert.Equal(t, "normal (no reference range)\n", out)
}

func TestClassifyCommand_RequiresTest(t *testing.T) {
	_, err := execute(t, "classify", "120")
	assert.Error(t, err)
}

func TestCatalogShow(t *testing.T) {
	t.Setenv("CATALOG_PATH", "")

	out, err := execute(t, "catalog", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration/Consultation  ₱150.00")
	assert.Contains(t, out, "CBC  ₱350.00")
	assert.Contains(t, out, "Neutrophils (component of CBC)  [50-70 %]")

	_, err = execute(t, "catalog", "show", "--format", "xml")
	assert.Error(t, err)
}

func TestCatalogShow_RoundTripsThroughCatalogFile(t *testing.T) {
	t.Setenv("CATALOG_PATH", "")
	yamlOut, err := execute(t, "catalog", "show", "--format", "yaml")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlOut), 0o600))

	out, err := execute(t, "--catalog", path, "classify", "--section", "HEMATOLOGY", "--test", "Hemoglobin", "11.2")
	require.NoError(t, err)
	assert.Equal(t, "low (reference 12-16 g/dL)\n", out)
}

func TestSeedRequiresPostgres(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	_, err := execute(t, "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND=postgres")
}
