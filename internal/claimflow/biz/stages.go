package biz

import (
	"context"
	"time"

	"github.com/kart-io/claimflow/internal/claimflow/metrics"
	"github.com/kart-io/claimflow/internal/claimflow/store"
	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/extraction"
	"github.com/kart-io/claimflow/pkg/objstore"
	"github.com/kart-io/claimflow/pkg/risk"
	"github.com/kart-io/claimflow/pkg/textract"
	"github.com/kart-io/claimflow/pkg/utils/errors"
)

// Stage names used for logging and metrics.
const (
	StageTextExtraction    = "text_extraction"
	StageMedicalExtraction = "medical_extraction"
	StageRiskScoring       = "risk_scoring"
)

// StageExecutor runs exactly one pipeline stage against a claim. Stages
// never call each other; only the orchestrator sequences them. Each stage
// writes its own field group through a guarded store update, so a replayed
// stage execution cannot overwrite committed output.
type StageExecutor struct {
	claims  store.ClaimStore
	objects objstore.ObjectStore
	parser  textract.Parser
	chain   *extraction.Chain
	scorer  *risk.Engine
}

// NewStageExecutor creates a stage executor.
func NewStageExecutor(
	claims store.ClaimStore,
	objects objstore.ObjectStore,
	parser textract.Parser,
	chain *extraction.Chain,
	scorer *risk.Engine,
) *StageExecutor {
	return &StageExecutor{
		claims:  claims,
		objects: objects,
		parser:  parser,
		chain:   chain,
		scorer:  scorer,
	}
}

// RunTextExtraction downloads the uploaded document, extracts its text and
// administrative key-value pairs, and commits them.
func (e *StageExecutor) RunTextExtraction(ctx context.Context, claim *model.Claim) error {
	return e.observe(StageTextExtraction, func() error {
		data, err := e.objects.Get(ctx, claim.ObjectKey)
		if err != nil {
			return errors.ErrExternalService.WithCause(err)
		}

		result, err := e.parser.Parse(data)
		if err != nil {
			return errors.ErrStageFailed.WithCause(err)
		}

		return e.claims.ApplyTextExtraction(ctx, claim.ClaimID,
			result.Text, result.PageCount, result.KeyValuePairs)
	})
}

// RunMedicalExtraction runs the tier-based extraction chain and commits
// the resulting entities. The chain's terminal strategy cannot fail, so
// this stage always produces a structurally valid entity record.
func (e *StageExecutor) RunMedicalExtraction(ctx context.Context, claim *model.Claim) error {
	return e.observe(StageMedicalExtraction, func() error {
		entities, err := e.chain.Extract(ctx, extraction.Input{
			ClaimID:       claim.ClaimID,
			Text:          claim.ExtractedText,
			KeyValuePairs: claim.KeyValuePairs.Data(),
			Tier:          claim.AnalysisTier,
		})
		if err != nil {
			return errors.ErrStageFailed.WithCause(err)
		}

		return e.claims.ApplyMedicalEntities(ctx, claim.ClaimID, entities, claim.AnalysisTier)
	})
}

// RunRiskScoring scores the claim and commits the assessment. Scoring is
// pure; the only failure mode is the store write.
func (e *StageExecutor) RunRiskScoring(ctx context.Context, claim *model.Claim) error {
	return e.observe(StageRiskScoring, func() error {
		analysis := e.scorer.Score(risk.Input{
			ClaimID:         claim.ClaimID,
			MedicalEntities: claim.MedicalEntities,
			KeyValuePairs:   claim.KeyValuePairs.Data(),
		})
		return e.claims.ApplyRiskAnalysis(ctx, claim.ClaimID, analysis)
	})
}

func (e *StageExecutor) observe(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(stage, time.Since(start), err)
	return err
}
