package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/domain/entities"
)

func TestClassify_BloodGlucose(t *testing.T) {
	c := Default()

	tests := []struct {
		value string
		want  entities.Flag
	}{
		{"95", entities.FlagNormal},
		{"120", entities.FlagHigh},
		{"50", entities.FlagLow},
		{"70", entities.FlagNormal},
		{"100", entities.FlagNormal},
		{" 100.5 ", entities.FlagHigh},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(c, tt.value, "Blood Glucose", "CLINICAL CHEMISTRY"))
		})
	}
}

func TestClassify_QualitativeResults(t *testing.T) {
	c := Default()

	assert.Equal(t, entities.FlagNormal, Classify(c, "Negative", "Dengue Test", "SEROLOGY"))
	assert.Equal(t, entities.FlagNormal, Classify(c, "NEGATIVE", "Dengue Test", "SEROLOGY"))
	assert.Equal(t, entities.FlagNormal, Classify(c, "no growth", "Urine Culture", "MICROBIOLOGY"))
	assert.Equal(t, entities.FlagNormal, Classify(c, "Compatible", "Crossmatching", "BLOOD BANK"))
	// Unrecognised text is never flagged high or low.
	assert.Equal(t, entities.FlagNormal, Classify(c, "Positive", "Dengue Test", "SEROLOGY"))
}

func TestClassify_OpenBoundsAndMisses(t *testing.T) {
	c := Default()

	assert.Equal(t, entities.FlagHigh, Classify(c, "240", "Total Cholesterol", "CLINICAL CHEMISTRY"))
	assert.Equal(t, entities.FlagNormal, Classify(c, "10", "Total Cholesterol", "CLINICAL CHEMISTRY"))
	assert.Equal(t, entities.FlagLow, Classify(c, "35", "HDL Cholesterol", "CLINICAL CHEMISTRY"))
	assert.Equal(t, entities.FlagNormal, Classify(c, "999", "Unknown Test", "CLINICAL CHEMISTRY"))
	assert.Equal(t, entities.FlagNormal, Classify(c, "12 mg/dL", "Blood Glucose", "CLINICAL CHEMISTRY"))
}

func TestClassify_IsRepeatable(t *testing.T) {
	c := Default()
	first := Classify(c, "120", "Blood Glucose", "CLINICAL CHEMISTRY")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(c, "120", "Blood Glucose", "CLINICAL CHEMISTRY"))
	}
}

func TestPriceOrDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, 150.0, PriceOrDefault(c, "CLINICAL CHEMISTRY", "Blood Glucose"))
	assert.Equal(t, 150.0, PriceOrDefault(c, "clinical chemistry", "Blood Glucose"))
	assert.Equal(t, DefaultTestPrice, PriceOrDefault(c, "SEROLOGY", "Widal Test"))
	assert.Equal(t, DefaultTestPrice, PriceOrDefault(c, "HEMATOLOGY", "Neutrophils"))
}

func TestParentOf(t *testing.T) {
	c := Default()

	parent, ok := c.ParentOf("HEMATOLOGY", "Neutrophils")
	assert.True(t, ok)
	assert.Equal(t, "CBC", parent)

	_, ok = c.ParentOf("HEMATOLOGY", "CBC")
	assert.False(t, ok)

	assert.Contains(t, c.Components("HEMATOLOGY", "CBC"), "Neutrophils")
	assert.Len(t, c.Components("CLINICAL CHEMISTRY", "Lipid Profile"), 4)
}

func TestRangeString(t *testing.T) {
	c := Default()

	r, ok := c.Range("CLINICAL CHEMISTRY", "Blood Glucose")
	require.True(t, ok)
	assert.Equal(t, "70-100 mg/dL", r.String())

	r, _ = c.Range("CLINICAL CHEMISTRY", "Total Cholesterol")
	assert.Equal(t, "<200 mg/dL", r.String())

	r, _ = c.Range("SEROLOGY", "Dengue Test")
	assert.Equal(t, "Negative", r.String())
}

func TestNew_RejectsBrokenCatalogs(t *testing.T) {
	_, err := New([]Section{{Name: "HEMATOLOGY", Tests: []Test{{Name: "Neutrophils", Parent: "CBC"}}}}, 150)
	assert.ErrorContains(t, err, "unknown parent")

	_, err = New([]Section{{Name: "HEMATOLOGY", Tests: []Test{{Name: "ESR"}, {Name: "ESR"}}}}, 150)
	assert.ErrorContains(t, err, "duplicate test")

	_, err = New([]Section{{Name: "HEMATOLOGY", Tests: []Test{{Name: "ESR", Range: between(20, 0, "mm/hr")}}}}, 150)
	assert.ErrorContains(t, err, "min above max")
}

func TestLoad_YAML(t *testing.T) {
	doc := `
registration_fee: 200
sections:
  - name: SEROLOGY
    tests:
      - name: Dengue Test
        price: 1100
        range:
          normal_text: Negative
      - name: Widal Test
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 200.0, c.RegistrationFee())
	assert.Equal(t, 1100.0, PriceOrDefault(c, "SEROLOGY", "Dengue Test"))
	assert.Equal(t, DefaultTestPrice, PriceOrDefault(c, "SEROLOGY", "Widal Test"))
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("sections:\n  - name: SEROLOGY\n    tests: []\n    colour: red\n"))
	assert.Error(t, err)
}

func TestEncode_IsLoadable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Default()))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(Default().Sections(), loaded.Sections()); diff != "" {
		t.Errorf("catalog changed after encode/load (-want +got):\n%s", diff)
	}
	assert.Equal(t, DefaultRegistrationFee, loaded.RegistrationFee())
}
