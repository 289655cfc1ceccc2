// Package biz contains the claim pipeline business logic: the orchestrator
// that drives a claim through its stages, the per-stage executor, and the
// upload ingest service.
package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/claimflow/internal/claimflow/metrics"
	"github.com/kart-io/claimflow/internal/claimflow/store"
	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/utils/errors"
)

// DefaultConsistencyWait bounds the pause between the text-extraction
// commit and the medical stage read. Kept for stores with read replicas
// that lag the primary; it is a fixed wait, never a spin-retry.
const DefaultConsistencyWait = 2 * time.Second

// Orchestrator drives a claim through the stage sequence to completion or
// terminal failure. Invocation is safe under at-least-once delivery:
// re-invoking on a claim already past a stage skips that stage, and a
// fully processed claim is a no-op.
type Orchestrator struct {
	claims          store.ClaimStore
	stages          *StageExecutor
	consistencyWait time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConsistencyWait overrides the post-text-extraction pause. Tests set
// it to zero.
func WithConsistencyWait(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.consistencyWait = d }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(claims store.ClaimStore, stages *StageExecutor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		claims:          claims,
		stages:          stages,
		consistencyWait: DefaultConsistencyWait,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the claim from its current status to completion. Stage
// calls are blocking; the claim is re-read after every stage so each stage
// observes its predecessor's committed output. On stage failure the status
// is left unchanged and the error is returned to the caller, whose
// re-invocation resumes from the same point.
func (o *Orchestrator) Process(ctx context.Context, claimID string) error {
	for {
		claim, err := o.claims.Get(ctx, claimID)
		if err != nil {
			return err
		}

		if claim.ProcessingComplete {
			return nil
		}

		switch claim.Status {
		case model.StatusUploaded:
			if err := o.stages.RunTextExtraction(ctx, claim); err != nil {
				logger.Errorw("text extraction failed",
					"claim_id", claimID, "error", err.Error())
				o.failClaim(ctx, claimID, err)
				return errors.ErrStageFailed.WithCause(err)
			}
			if err := o.waitForConsistency(ctx); err != nil {
				return err
			}

		case model.StatusTextExtracted:
			if err := o.stages.RunMedicalExtraction(ctx, claim); err != nil {
				logger.Errorw("medical extraction failed",
					"claim_id", claimID, "error", err.Error())
				return errors.ErrStageFailed.WithCause(err)
			}

		case model.StatusMedicalAnalysisComplete:
			if err := o.stages.RunRiskScoring(ctx, claim); err != nil {
				logger.Errorw("risk scoring failed",
					"claim_id", claimID, "error", err.Error())
				return errors.ErrStageFailed.WithCause(err)
			}

		case model.StatusScoringComplete:
			if err := o.claims.MarkComplete(ctx, claimID); err != nil {
				return err
			}
			metrics.ClaimCompleted()
			logger.Infow("claim processing complete", "claim_id", claimID)
			return nil

		case model.StatusFailed:
			return errors.ErrClaimFailed.WithMessagef(
				"claim %s previously failed: %s", claimID, claim.FailureReason)

		default:
			return errors.ErrStageFailed.WithMessagef(
				"claim %s in unknown status %s", claimID, claim.Status)
		}
	}
}

// failClaim marks the claim FAILED. Only the text-extraction stage
// triggers this: a claim whose document cannot be read can never make
// progress. Later stages leave the status unchanged so re-invocation can
// retry them.
func (o *Orchestrator) failClaim(ctx context.Context, claimID string, cause error) {
	if err := o.claims.MarkFailed(ctx, claimID, cause.Error()); err != nil {
		logger.Errorw("marking claim failed",
			"claim_id", claimID, "error", err.Error())
		return
	}
	metrics.ClaimFailed()
}

func (o *Orchestrator) waitForConsistency(ctx context.Context) error {
	if o.consistencyWait <= 0 {
		return nil
	}
	select {
	case <-time.After(o.consistencyWait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
