package deepmodel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/claimflow/pkg/extraction"
)

func TestNewRequiresEndpoint(t *testing.T) {
	assert.Nil(t, New(Config{}))
	assert.NotNil(t, New(Config{Endpoint: "http://localhost:8500"}))
}

func TestExtractMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"claim_id": "u1/claim.pdf",
			"entities": [{"entity": "B-DIAGNOSIS", "word": "E11.9", "score": 0.94}],
			"detailed_analysis": {
				"diagnoses": [
					{"text": "E11.9", "confidence": 0.94},
					{"text": "I10", "confidence": 0.91}
				],
				"procedures": [{"text": "99213", "confidence": 0.88}],
				"medications": [{"text": "Metformin", "confidence": 0.9}],
				"risk_factors": ["Diabetes", "E11.9"],
				"confidence_scores": {"overall": 0.91, "diagnosis": 0.94},
				"recommendations": ["Risk factors present: Diabetes"],
				"processing_time_seconds": 0.21
			},
			"gpu_used": true,
			"model_name": "Bio_ClinicalBERT"
		}`))
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	entities, err := s.Extract(context.Background(), extraction.Input{
		Text: "clinical note",
		KeyValuePairs: map[string]string{
			"patient_name": "Jane Roe",
			"total_charge": "900.00",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"E11.9", "I10"}, entities.DiagnosisCodes)
	assert.Equal(t, []string{"99213"}, entities.ProcedureCodes)
	assert.Equal(t, []string{"Metformin"}, entities.Medications)
	// Risk factors already listed as diagnoses are not duplicated.
	assert.Equal(t, []string{"Diabetes"}, entities.Conditions)
	assert.Equal(t, Method, entities.ExtractionMethod)
	assert.Equal(t, "Jane Roe", entities.Patient.Name)
	assert.Equal(t, "900.00", entities.ClaimAmount)

	require.Contains(t, entities.ConfidenceScores, "diagnosis")
	f, _ := entities.ConfidenceScores["diagnosis"].Float64()
	assert.InDelta(t, 0.94, f, 0.0001)
}

func TestExtractEmptyAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"claim_id": "u1/claim.pdf",
			"entities": [],
			"detailed_analysis": {
				"diagnoses": [],
				"procedures": [],
				"medications": [],
				"risk_factors": [],
				"confidence_scores": {},
				"recommendations": [],
				"processing_time_seconds": 0.01
			},
			"gpu_used": false,
			"model_name": "Bio_ClinicalBERT"
		}`))
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	entities, err := s.Extract(context.Background(), extraction.Input{Text: "note"})
	require.NoError(t, err)

	assert.NotNil(t, entities.DiagnosisCodes)
	assert.NotNil(t, entities.ProcedureCodes)
	assert.NotNil(t, entities.Medications)
	assert.NotNil(t, entities.Conditions)
	assert.Empty(t, entities.DiagnosisCodes)
	assert.Empty(t, entities.Conditions)
	assert.Equal(t, Method, entities.ExtractionMethod)
}

func TestExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	_, err := s.Extract(context.Background(), extraction.Input{Text: "note"})
	require.Error(t, err)
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL})
	assert.True(t, s.Healthy(context.Background()))

	srv.Close()
	assert.False(t, s.Healthy(context.Background()))
}
