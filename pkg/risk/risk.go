// Package risk implements the deterministic rule-based scoring engine.
// Score is a pure function: identical input always produces identical
// output (modulo the timestamp), with no I/O and no external calls.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kart-io/claimflow/internal/model"
)

// ProcessingMethod is the audit tag recorded on every assessment.
const ProcessingMethod = "rule_based_scoring_v1"

// Machine-readable flags attached by triggered rules.
const (
	FlagIncompleteData        = "INCOMPLETE_DATA"
	FlagHighAmount            = "HIGH_AMOUNT"
	FlagElevatedAmount        = "ELEVATED_AMOUNT"
	FlagMultipleProcedures    = "MULTIPLE_PROCEDURES"
	FlagComplexCase           = "COMPLEX_CASE"
	FlagIncompletePatientInfo = "INCOMPLETE_PATIENT_INFO"
	FlagNoDiagnosis           = "NO_DIAGNOSIS"
	FlagNoProcedures          = "NO_PROCEDURES"
)

// Rule severities.
const (
	severityLow    = "LOW"
	severityMedium = "MEDIUM"
	severityHigh   = "HIGH"
)

// totalPossiblePoints is the normalization denominator for the confidence
// score. Rules can in principle stack past it; the score itself is not
// capped.
const totalPossiblePoints = 100

// Amount thresholds in USD.
var (
	highAmountThreshold     = decimal.NewFromInt(10000)
	elevatedAmountThreshold = decimal.NewFromInt(5000)
	aboveAverageThreshold   = decimal.NewFromInt(2000)
)

// requiredFields are the administrative key-value fields whose absence
// counts toward the missing-information rule.
var requiredFields = []string{"patient_name", "date_of_service", "diagnosis", "procedure"}

// Input carries the scored claim data. Nil or zero fields are legal and
// score as missing; malformed input must not make scoring fail.
type Input struct {
	ClaimID         string
	MedicalEntities *model.MedicalEntities
	KeyValuePairs   map[string]string
}

// Engine is the rule evaluator. It is stateless; the zero value is not
// usable, construct with New.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a scoring engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score evaluates all rules against the claim and returns the assessment.
func (e *Engine) Score(in Input) *model.RiskAnalysis {
	entities := in.MedicalEntities
	if entities == nil {
		entities = &model.MedicalEntities{}
	}
	kv := in.KeyValuePairs
	if kv == nil {
		kv = map[string]string{}
	}

	score := 0
	var breakdown []model.RiskBreakdownEntry
	var flags []string

	add := func(entry model.RiskBreakdownEntry, flag string) {
		score += entry.Points
		breakdown = append(breakdown, entry)
		if flag != "" {
			flags = append(flags, flag)
		}
	}

	// Rule 1: missing critical information, 4 points per missing field.
	var missing []string
	for _, field := range requiredFields {
		if kv[field] == "" && entities.Patient.Name == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		add(model.RiskBreakdownEntry{
			Category: "Missing Information",
			Points:   len(missing) * 4,
			Severity: severityMedium,
			Details:  "Missing: " + strings.Join(missing, ", "),
		}, FlagIncompleteData)
	}

	// Rule 2: claim amount thresholds, highest bracket wins.
	amount := parseAmount(kv["total_charge"], entities.ClaimAmount)
	switch {
	case amount.GreaterThan(highAmountThreshold):
		add(model.RiskBreakdownEntry{
			Category: "High Claim Amount",
			Points:   25,
			Severity: severityHigh,
			Details:  fmt.Sprintf("$%s exceeds $10,000 threshold", formatAmount(amount)),
		}, FlagHighAmount)
	case amount.GreaterThan(elevatedAmountThreshold):
		add(model.RiskBreakdownEntry{
			Category: "Elevated Claim Amount",
			Points:   15,
			Severity: severityMedium,
			Details:  fmt.Sprintf("$%s exceeds $5,000 threshold", formatAmount(amount)),
		}, FlagElevatedAmount)
	case amount.GreaterThan(aboveAverageThreshold):
		add(model.RiskBreakdownEntry{
			Category: "Above Average Amount",
			Points:   8,
			Severity: severityLow,
			Details:  fmt.Sprintf("$%s above typical claim", formatAmount(amount)),
		}, "")
	}

	// Rule 3: procedure count.
	procedures := len(entities.ProcedureCodes)
	switch {
	case procedures > 5:
		add(model.RiskBreakdownEntry{
			Category: "Multiple Procedures",
			Points:   20,
			Severity: severityHigh,
			Details:  fmt.Sprintf("%d procedures performed", procedures),
		}, FlagMultipleProcedures)
	case procedures > 3:
		add(model.RiskBreakdownEntry{
			Category: "Several Procedures",
			Points:   10,
			Severity: severityMedium,
			Details:  fmt.Sprintf("%d procedures", procedures),
		}, "")
	}

	// Rule 4: diagnosis plus condition count.
	totalDiagnoses := len(entities.DiagnosisCodes) + len(entities.Conditions)
	switch {
	case totalDiagnoses > 4:
		add(model.RiskBreakdownEntry{
			Category: "Multiple Diagnoses",
			Points:   15,
			Severity: severityMedium,
			Details:  fmt.Sprintf("%d diagnoses/conditions listed", totalDiagnoses),
		}, FlagComplexCase)
	case totalDiagnoses > 2:
		add(model.RiskBreakdownEntry{
			Category: "Several Diagnoses",
			Points:   8,
			Severity: severityLow,
			Details:  fmt.Sprintf("%d diagnoses", totalDiagnoses),
		}, "")
	}

	// Rule 5: incomplete patient sub-record.
	missingPatient := countEmpty(
		entities.Patient.Name,
		entities.Patient.ID,
		entities.Patient.Age,
		entities.Patient.Gender,
	)
	switch {
	case missingPatient > 2:
		add(model.RiskBreakdownEntry{
			Category: "Incomplete Patient Data",
			Points:   15,
			Severity: severityMedium,
			Details:  fmt.Sprintf("%d patient fields missing", missingPatient),
		}, FlagIncompletePatientInfo)
	case missingPatient > 0:
		add(model.RiskBreakdownEntry{
			Category: "Some Patient Data Missing",
			Points:   7,
			Severity: severityLow,
			Details:  fmt.Sprintf("%d fields missing", missingPatient),
		}, "")
	}

	// Rule 6: no diagnosis codes or conditions at all.
	if totalDiagnoses == 0 {
		add(model.RiskBreakdownEntry{
			Category: "Missing Diagnosis",
			Points:   10,
			Severity: severityMedium,
			Details:  "No diagnosis codes found",
		}, FlagNoDiagnosis)
	}

	// Rule 7: no procedure codes at all.
	if procedures == 0 {
		add(model.RiskBreakdownEntry{
			Category: "Missing Procedures",
			Points:   10,
			Severity: severityMedium,
			Details:  "No procedure codes found",
		}, FlagNoProcedures)
	}

	level, action, color := classify(score)

	if flags == nil {
		flags = []string{}
	}
	if breakdown == nil {
		breakdown = []model.RiskBreakdownEntry{}
	}

	return &model.RiskAnalysis{
		ClaimID:           in.ClaimID,
		Score:             score,
		Level:             level,
		RecommendedAction: action,
		ConfidenceScore:   confidence(score),
		ColorIndicator:    color,
		Flags:             flags,
		Breakdown:         breakdown,
		Statistics: model.RiskStatistics{
			TotalDiagnoses:   totalDiagnoses,
			TotalProcedures:  procedures,
			TotalMedications: len(entities.Medications),
			ClaimAmount:      amount,
		},
		Timestamp:        e.now().UTC(),
		ProcessingMethod: ProcessingMethod,
	}
}

func classify(score int) (level, action, color string) {
	switch {
	case score <= 20:
		return model.RiskLevelLow, model.ActionAutoApprove, "green"
	case score <= 50:
		return model.RiskLevelMedium, model.ActionManualReview, "yellow"
	default:
		return model.RiskLevelHigh, model.ActionDetailedInvestigation, "red"
	}
}

// confidence is (1 - score/100) * 100, clamped to [0, 100]. The clamp
// matters because stacked rules can push the score past 100.
func confidence(score int) decimal.Decimal {
	c := decimal.NewFromInt(100).Sub(decimal.NewFromInt(int64(score)))
	if c.IsNegative() {
		return decimal.Zero
	}
	if c.GreaterThan(decimal.NewFromInt(totalPossiblePoints)) {
		return decimal.NewFromInt(totalPossiblePoints)
	}
	return c
}

// parseAmount reads the claim amount from the key-value pairs, falling
// back to the extracted entity field. Unparsable input scores as zero.
func parseAmount(kvAmount, entityAmount string) decimal.Decimal {
	raw := kvAmount
	if raw == "" {
		raw = entityAmount
	}
	raw = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", ""))
	if raw == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// formatAmount renders the amount with thousands separators and two
// decimal places, matching the detail strings in stored assessments.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

func countEmpty(fields ...string) int {
	n := 0
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			n++
		}
	}
	return n
}
