// Package pattern implements the deterministic rule-based extraction
// strategy. It is the correctness backstop of the fallback chain: pure,
// dependency-free, and it never fails and never calls an external service.
package pattern

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/extraction"
)

// Method is the audit tag recorded on pattern-extracted entities.
const Method = "rule_based"

// maxMedications caps the extracted medication list.
const maxMedications = 10

var (
	// ICD-10-like shape: one letter, two digits, optional decimal with up to
	// four trailing digits.
	icdPattern = regexp.MustCompile(`\b[A-Z]\d{2}\.?\d{0,4}\b`)

	// CPT codes: five digits either explicitly labeled or contextually
	// followed by the word "procedure".
	cptLabeledPattern = regexp.MustCompile(`(?i)\bCPT[:\s]*(\d{5})\b`)
	cptContextPattern = regexp.MustCompile(`(?i)\b(\d{5})\b[^\n]*procedure`)

	// Capitalized tokens with common pharmacological suffixes.
	medicationPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:in|ol|ide|mab|tinib))\b`)
)

// Strategy is the deterministic pattern extractor.
type Strategy struct{}

// New creates the pattern strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name implements extraction.Strategy.
func (s *Strategy) Name() string {
	return Method
}

// Extract applies the fixed patterns to the text and copies administrative
// fields from the already-extracted key-value pairs. It always succeeds,
// possibly with empty fields.
func (s *Strategy) Extract(_ context.Context, in extraction.Input) (*model.MedicalEntities, error) {
	entities := &model.MedicalEntities{
		DiagnosisCodes:   dedupe(icdPattern.FindAllString(in.Text, -1)),
		ProcedureCodes:   extractProcedureCodes(in.Text),
		Medications:      capList(dedupe(medicationMatches(in.Text)), maxMedications),
		Conditions:       []string{},
		ExtractionMethod: Method,
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

func extractProcedureCodes(text string) []string {
	var codes []string
	for _, m := range cptLabeledPattern.FindAllStringSubmatch(text, -1) {
		codes = append(codes, m[1])
	}
	for _, m := range cptContextPattern.FindAllStringSubmatch(text, -1) {
		codes = append(codes, m[1])
	}
	return dedupe(codes)
}

func medicationMatches(text string) []string {
	var meds []string
	for _, m := range medicationPattern.FindAllStringSubmatch(text, -1) {
		meds = append(meds, m[1])
	}
	return meds
}

// dedupe removes duplicates and sorts for deterministic output.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
