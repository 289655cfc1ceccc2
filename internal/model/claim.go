// Package model defines the claim record and its nested value types.
package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the claim processing state. Transitions are strictly forward:
// UPLOADED -> TEXT_EXTRACTED -> MEDICAL_ANALYSIS_COMPLETE -> SCORING_COMPLETE,
// with FAILED as an absorbing state reachable from any non-terminal state.
type Status string

const (
	StatusUploaded                Status = "UPLOADED"
	StatusTextExtracted           Status = "TEXT_EXTRACTED"
	StatusMedicalAnalysisComplete Status = "MEDICAL_ANALYSIS_COMPLETE"
	StatusScoringComplete         Status = "SCORING_COMPLETE"
	StatusFailed                  Status = "FAILED"
)

// Terminal reports whether no further stage may run on the claim.
func (s Status) Terminal() bool {
	return s == StatusScoringComplete || s == StatusFailed
}

// Tier selects which extraction strategy is attempted first.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	return t == TierStandard || t == TierPro
}

// Patient is the patient sub-record of extracted medical entities.
type Patient struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Age    string `json:"age"`
	Gender string `json:"gender"`
}

// Provider is the provider sub-record of extracted medical entities.
type Provider struct {
	Name string `json:"name"`
	NPI  string `json:"npi"`
}

// ExtractionCost records token usage of a language-model extraction.
type ExtractionCost struct {
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	EstimatedUSD decimal.Decimal `json:"estimated_usd"`
}

// MedicalEntities is the canonical shape every extraction strategy maps into.
// ExtractionMethod records which strategy actually produced the value.
type MedicalEntities struct {
	Patient          Patient                    `json:"patient"`
	DiagnosisCodes   []string                   `json:"diagnosis_codes"`
	ProcedureCodes   []string                   `json:"procedure_codes"`
	Medications      []string                   `json:"medications"`
	Conditions       []string                   `json:"conditions"`
	Provider         Provider                   `json:"provider"`
	ClaimAmount      string                     `json:"claim_amount"`
	ExtractionMethod string                     `json:"extraction_method"`
	Cost             *ExtractionCost            `json:"cost,omitempty"`
	ConfidenceScores map[string]decimal.Decimal `json:"confidence_scores,omitempty"`
}

// Risk levels and recommended actions.
const (
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"

	ActionAutoApprove           = "AUTO_APPROVE"
	ActionManualReview          = "MANUAL_REVIEW"
	ActionDetailedInvestigation = "DETAILED_INVESTIGATION"
)

// RiskBreakdownEntry is one itemized scoring rule result.
type RiskBreakdownEntry struct {
	Category string `json:"category"`
	Points   int    `json:"points"`
	Severity string `json:"severity"`
	Details  string `json:"details"`
}

// RiskStatistics summarizes the scored claim.
type RiskStatistics struct {
	TotalDiagnoses   int             `json:"total_diagnoses"`
	TotalProcedures  int             `json:"total_procedures"`
	TotalMedications int             `json:"total_medications"`
	ClaimAmount      decimal.Decimal `json:"claim_amount"`
}

// RiskAnalysis is the output of the scoring engine.
type RiskAnalysis struct {
	ClaimID           string               `json:"claim_id"`
	Score             int                  `json:"risk_score"`
	Level             string               `json:"risk_level"`
	RecommendedAction string               `json:"recommended_action"`
	ConfidenceScore   decimal.Decimal      `json:"confidence_score"`
	ColorIndicator    string               `json:"color_indicator"`
	Flags             []string             `json:"flags"`
	Breakdown         []RiskBreakdownEntry `json:"risk_breakdown"`
	Statistics        RiskStatistics       `json:"statistics"`
	Timestamp         time.Time            `json:"timestamp"`
	ProcessingMethod  string               `json:"processing_method"`
}

// Claim is the durable per-claim record tracked through the pipeline.
// claim_id is derived from the upload object key and immutable; each stage
// owns exactly one field group and writes it exactly once.
type Claim struct {
	ClaimID   string `gorm:"column:claim_id;primaryKey" json:"claim_id"`
	UserID    string `gorm:"column:user_id;index" json:"user_id"`
	Status    Status `gorm:"column:status;index" json:"status"`
	Bucket    string `gorm:"column:s3_bucket" json:"s3_bucket"`
	ObjectKey string `gorm:"column:s3_key" json:"s3_key"`
	FileSize  int64  `gorm:"column:file_size" json:"file_size"`

	AnalysisTier Tier `gorm:"column:analysis_tier" json:"analysis_tier"`

	ExtractedText string                                `gorm:"column:extracted_text;type:text" json:"extracted_text,omitempty"`
	PageCount     int                                   `gorm:"column:page_count" json:"page_count,omitempty"`
	KeyValuePairs datatypes.JSONType[map[string]string] `gorm:"column:key_value_pairs" json:"key_value_pairs"`

	MedicalEntities *MedicalEntities `gorm:"column:medical_entities;serializer:json" json:"medical_entities,omitempty"`
	RiskAnalysis    *RiskAnalysis    `gorm:"column:risk_analysis;serializer:json" json:"risk_analysis,omitempty"`
	FinalScore      int              `gorm:"column:final_score" json:"final_score"`

	ProcessingComplete bool   `gorm:"column:processing_complete" json:"processing_complete"`
	FailureReason      string `gorm:"column:failure_reason" json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName maps the model to the claims table.
func (Claim) TableName() string {
	return "claims"
}
