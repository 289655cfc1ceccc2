// Package deepmodel implements the GPU-enhanced extraction strategy. It
// calls a self-hosted model inference service over HTTP and maps its
// response onto the shared entity model. It is only attempted for
// pro-tier claims and degrades to the next strategy on any failure.
package deepmodel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/extraction"
	"github.com/kart-io/claimflow/pkg/utils/errors"
)

// Method is the audit tag recorded on deepmodel-extracted entities.
const Method = "gpu_enhanced"

const (
	defaultTimeout     = 25 * time.Second
	defaultHealthProbe = 3 * time.Second
)

// Config holds the inference service connection settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Strategy calls the inference service's /analyze endpoint.
type Strategy struct {
	client *resty.Client
}

// analyzeRequest is the inference service request body.
type analyzeRequest struct {
	ClaimID      string `json:"claim_id"`
	Text         string `json:"text"`
	AnalysisTier string `json:"analysis_tier"`
}

// scoredEntity is one recognized term with its model confidence.
type scoredEntity struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// detailedAnalysis is the entity block nested inside the service response.
type detailedAnalysis struct {
	Diagnoses        []scoredEntity     `json:"diagnoses"`
	Procedures       []scoredEntity     `json:"procedures"`
	Medications      []scoredEntity     `json:"medications"`
	RiskFactors      []string           `json:"risk_factors"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// analyzeResponse mirrors the inference service response schema. The raw
// token-level entities and GPU telemetry fields are not decoded.
type analyzeResponse struct {
	ClaimID          string           `json:"claim_id"`
	DetailedAnalysis detailedAnalysis `json:"detailed_analysis"`
	ModelName        string           `json:"model_name"`
}

// New creates the deepmodel strategy. A nil return means the strategy is
// not configured and must be left out of the chain.
func New(cfg Config) *Strategy {
	if cfg.Endpoint == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Strategy{client: client}
}

// Name implements extraction.Strategy.
func (s *Strategy) Name() string {
	return Method
}

// Healthy probes the inference service health endpoint.
func (s *Strategy) Healthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, defaultHealthProbe)
	defer cancel()

	resp, err := s.client.R().SetContext(probeCtx).Get("/health")
	return err == nil && resp.IsSuccess()
}

// Extract sends the claim text to the inference service and maps the
// response onto the entity model. Administrative fields come from the
// key-value pairs since the model only sees clinical text.
func (s *Strategy) Extract(ctx context.Context, in extraction.Input) (*model.MedicalEntities, error) {
	var out analyzeResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(analyzeRequest{ClaimID: in.ClaimID, Text: in.Text, AnalysisTier: string(in.Tier)}).
		SetResult(&out).
		Post("/analyze")
	if err != nil {
		return nil, errors.ErrExternalService.WithCause(err)
	}
	if !resp.IsSuccess() {
		return nil, errors.ErrExternalService.WithMessagef(
			"inference service returned %d: %s", resp.StatusCode(), truncateBody(resp.String()))
	}

	da := out.DetailedAnalysis
	entities := &model.MedicalEntities{
		DiagnosisCodes:   texts(da.Diagnoses),
		ProcedureCodes:   texts(da.Procedures),
		Medications:      texts(da.Medications),
		ExtractionMethod: Method,
	}
	entities.Conditions = mergeConditions(entities.DiagnosisCodes, da.RiskFactors)
	if len(da.ConfidenceScores) > 0 {
		entities.ConfidenceScores = make(map[string]decimal.Decimal, len(da.ConfidenceScores))
		for k, v := range da.ConfidenceScores {
			entities.ConfidenceScores[k] = decimal.NewFromFloat(v)
		}
	}
	if kv := in.KeyValuePairs; kv != nil {
		entities.Patient = model.Patient{
			Name:   kv["patient_name"],
			ID:     kv["patient_id"],
			Age:    kv["patient_age"],
			Gender: kv["patient_gender"],
		}
		entities.ClaimAmount = kv["total_charge"]
		entities.Provider.Name = kv["provider_name"]
	}
	return entities, nil
}

// texts flattens scored entities into their terms, dropping blank ones.
// The result is never nil so downstream consumers see empty lists, not null.
func texts(items []scoredEntity) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// mergeConditions appends risk factors to the condition list without
// duplicating entries already present as diagnoses.
func mergeConditions(diagnoses, riskFactors []string) []string {
	seen := make(map[string]struct{}, len(diagnoses)+len(riskFactors))
	out := make([]string, 0, len(riskFactors))
	for _, d := range diagnoses {
		seen[strings.ToLower(d)] = struct{}{}
	}
	for _, rf := range riskFactors {
		key := strings.ToLower(strings.TrimSpace(rf))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(rf))
	}
	return out
}

func truncateBody(body string) string {
	const max = 256
	if len(body) > max {
		return fmt.Sprintf("%s...", body[:max])
	}
	return body
}
