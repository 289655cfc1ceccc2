package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/claimflow/pkg/extraction"
)

func TestExtractDiagnosisCodes(t *testing.T) {
	s := New()
	in := extraction.Input{
		Text: "Primary diagnosis E11.9, secondary I10. Follow-up for E11.9 documented.",
	}

	entities, err := s.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"E11.9", "I10"}, entities.DiagnosisCodes)
	assert.Equal(t, Method, entities.ExtractionMethod)
}

func TestExtractProcedureCodes(t *testing.T) {
	s := New()
	in := extraction.Input{
		Text: "CPT: 99213 billed for office visit. Code 93000 covers the ECG procedure performed on site.",
	}

	entities, err := s.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"99213", "93000"}, entities.ProcedureCodes)
}

func TestExtractMedications(t *testing.T) {
	s := New()
	in := extraction.Input{
		Text: "Patient continues Metformin and Propranolol. Started Adalimumab last month.",
	}

	entities, err := s.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Metformin", "Propranolol", "Adalimumab"}, entities.Medications)
}

func TestMedicationsCapped(t *testing.T) {
	s := New()
	text := "Metformin Atorvastatin Furosemide Rituximab Imatinib Propranolol " +
		"Glipizide Warfarin Insulin Tramadol Timolol Finasteride"
	entities, err := s.Extract(context.Background(), extraction.Input{Text: text})
	require.NoError(t, err)
	assert.Len(t, entities.Medications, 10)
}

func TestKeyValuePairsCopied(t *testing.T) {
	s := New()
	in := extraction.Input{
		KeyValuePairs: map[string]string{
			"patient_name":  "Jane Roe",
			"patient_id":    "P-1001",
			"patient_age":   "42",
			"total_charge":  "1,250.00",
			"provider_name": "Dr. Smith",
		},
	}

	entities, err := s.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "Jane Roe", entities.Patient.Name)
	assert.Equal(t, "P-1001", entities.Patient.ID)
	assert.Equal(t, "42", entities.Patient.Age)
	assert.Equal(t, "1,250.00", entities.ClaimAmount)
	assert.Equal(t, "Dr. Smith", entities.Provider.Name)
}

func TestEmptyInputNeverFails(t *testing.T) {
	s := New()
	entities, err := s.Extract(context.Background(), extraction.Input{})
	require.NoError(t, err)
	assert.Empty(t, entities.DiagnosisCodes)
	assert.Empty(t, entities.ProcedureCodes)
	assert.Empty(t, entities.Medications)
}
